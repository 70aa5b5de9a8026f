package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/marcopolo/internal/extract"
	"github.com/fyrsmithlabs/marcopolo/internal/match"
)

func groceryRun(t *testing.T) ([]extract.Span, []extract.Unit, []match.Edge, match.Candidates) {
	t.Helper()
	spans := extract.ExtractSpans("- buy milk\n- fix bug in parser\n- write docs")
	units := extract.ExtractUnits("## Thread 1: Errands\n" +
		"SRC: fixed parser bug [ref]\n" +
		"SRC: wrote the docs [ref]\n" +
		"OPEN: what about groceries?\n")
	edges, cands := match.NewMatcher(nil, match.DefaultConfig()).Match(spans, units)
	return spans, units, edges, cands
}

func TestCompute_EndToEndScenario(t *testing.T) {
	spans, units, edges, cands := groceryRun(t)
	a := Compute(spans, units, edges, cands, DefaultParams())

	assert.InDelta(t, 2.0/3.0, a.Coverage, 1e-12)
	assert.Equal(t, []string{"p:T01.open01"}, a.UnsupportedUnits)
	assert.Equal(t, []string{"m:0001"}, a.UnreferencedSpans)
	assert.Empty(t, a.AmbiguousUnits)
	assert.Zero(t, a.PropRatio)
	assert.Less(t, a.Confidence, 1.0)

	want := 0.55*(2.0/3.0) + 0.25*(2.0/3.0) + 0.15 + 0.05
	assert.InDelta(t, want, a.Confidence, 1e-12)
	assert.Equal(t, "medium", a.Label)
	assert.Equal(t, DefaultParams(), a.Params)
}

func TestCompute_DegenerateInputs(t *testing.T) {
	tests := []struct {
		name  string
		spans []extract.Span
		units []extract.Unit
	}{
		{"nothing", nil, nil},
		{"no spans", nil, []extract.Unit{{ID: "p:T00.src01", Kind: extract.UnitSrc, Text: "x"}}},
		{"no units", []extract.Span{{ID: "m:0001", Text: "x"}}, nil},
		{"thread units only", []extract.Span{{ID: "m:0001", Text: "x"}}, []extract.Unit{{ID: "p:T01.thread01", Kind: extract.UnitThread, Text: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Compute(tt.spans, tt.units, nil, nil, DefaultParams())
			assert.Zero(t, a.Coverage)
			assert.GreaterOrEqual(t, a.Confidence, 0.0)
			assert.LessOrEqual(t, a.Confidence, 1.0)
			assert.NotEmpty(t, a.Markdown())
		})
	}
}

func TestCompute_NoTypedUnitsIsNeutral(t *testing.T) {
	a := Compute(nil, nil, nil, nil, DefaultParams())
	assert.Equal(t, 1.0, a.NoveltyScore)
	assert.Equal(t, 1.0, a.AmbiguityScore)
	assert.Zero(t, a.PropRatio)
	assert.InDelta(t, 0.45, a.Confidence, 1e-12)
	assert.Equal(t, "low", a.Label)
}

func TestCompute_AmbiguitySymmetry(t *testing.T) {
	spans := []extract.Span{{ID: "m:0001"}, {ID: "m:0002"}}
	units := []extract.Unit{{ID: "p:T01.src01", Kind: extract.UnitSrc}}
	edges := []match.Edge{{PoloID: "p:T01.src01", MarcoID: "m:0001", Score: 0.50}}
	cands := match.Candidates{"p:T01.src01": {{SpanID: "m:0001", Score: 0.50}, {SpanID: "m:0002", Score: 0.49}}}

	params := DefaultParams()
	a := Compute(spans, units, edges, cands, params)
	assert.Equal(t, []string{"p:T01.src01"}, a.AmbiguousUnits)
	assert.Zero(t, a.AmbiguityScore)

	params.AmbiguityEpsilon = 0.005
	a = Compute(spans, units, edges, cands, params)
	assert.Empty(t, a.AmbiguousUnits)
}

func TestCompute_AmbiguityRequiresThreshold(t *testing.T) {
	units := []extract.Unit{{ID: "u", Kind: extract.UnitOpen}}
	cands := match.Candidates{"u": {{SpanID: "a", Score: 0.20}, {SpanID: "b", Score: 0.20}}}
	a := Compute(nil, units, nil, cands, DefaultParams())
	assert.Empty(t, a.AmbiguousUnits)

	cands = match.Candidates{"u": {{SpanID: "a", Score: 0.9}}}
	a = Compute(nil, units, nil, cands, DefaultParams())
	assert.Empty(t, a.AmbiguousUnits, "single candidate is never ambiguous")
}

func TestCompute_ThreadUnitsExcludedFromRatios(t *testing.T) {
	units := []extract.Unit{
		{ID: "p:T01.thread01", Kind: extract.UnitThread},
		{ID: "p:T01.prop01", Kind: extract.UnitProp},
		{ID: "p:T01.src01", Kind: extract.UnitSrc},
	}
	a := Compute(nil, units, nil, nil, DefaultParams())
	assert.Equal(t, 0.5, a.PropRatio)
	assert.Equal(t, []string{"p:T01.prop01", "p:T01.src01"}, a.UnsupportedUnits)
	assert.Equal(t, 2, a.TypedCount)
}

func TestCompute_ConfidenceClamped(t *testing.T) {
	params := DefaultParams()
	params.Weights = Weights{Coverage: 3, Novelty: 3, Ambiguity: 3, PropRatio: 3}
	spans, units, edges, cands := groceryRun(t)
	a := Compute(spans, units, edges, cands, params)
	assert.Equal(t, 1.0, a.Confidence)
	assert.Equal(t, "high", a.Label)
}

func TestLabelFor(t *testing.T) {
	bands := DefaultBands()
	tests := []struct {
		conf float64
		want string
	}{
		{0, "low"},
		{0.4999, "low"},
		{0.5, "medium"},
		{0.8, "high"},
		{1.0, "high"},
		{-0.1, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelFor(tt.conf, bands), "conf=%v", tt.conf)
	}
	assert.Equal(t, "unknown", LabelFor(0.5, nil))
}

func TestMarkdown(t *testing.T) {
	spans, units, edges, cands := groceryRun(t)
	report, md := Verify(spans, units, edges, cands, DefaultParams())

	assert.Equal(t, "medium", report.Label)
	assert.True(t, strings.HasPrefix(md, "# Verification report\n"))
	assert.Contains(t, md, "- Coverage: 0.667 (2/3)")
	assert.Contains(t, md, "- Ambiguous POLO units: 0 (eps=0.03)")
	assert.Contains(t, md, "- PROP ratio: 0.000 (0/3)")
	assert.Contains(t, md, "## Confidence: 0.733 (medium)")
	assert.Contains(t, md, "- p:T01.open01 [OPEN]: what about groceries?")
	assert.Contains(t, md, "- m:0001 [bullet]: - buy milk")
	assert.Contains(t, md, "## Ambiguities (top-2 candidates)\n- (none)\n")
}

func TestMarkdown_ListsAmbiguities(t *testing.T) {
	units := []extract.Unit{{ID: "u", Kind: extract.UnitSrc, Text: "claim"}}
	edges := []match.Edge{{PoloID: "u", MarcoID: "a", Score: 0.5}}
	cands := match.Candidates{"u": {{SpanID: "a", Score: 0.5}, {SpanID: "b", Score: 0.49}}}
	_, md := Verify([]extract.Span{{ID: "a"}, {ID: "b"}}, units, edges, cands, DefaultParams())

	assert.Contains(t, md, "- u [SRC]: claim\n  - cand1: a score=0.500\n  - cand2: b score=0.490\n")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b", Excerpt("a\nb"))
	long := strings.Repeat("x", 200)
	got := Excerpt(long)
	require.Len(t, got, maxExcerptLen+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
