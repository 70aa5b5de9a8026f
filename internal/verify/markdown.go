package verify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/marcopolo/internal/extract"
	"github.com/fyrsmithlabs/marcopolo/internal/match"
)

const (
	maxUnreferencedListed = 50
	maxExcerptLen         = 140
)

// Verify computes the report and its Markdown rendering.
func Verify(spans []extract.Span, units []extract.Unit, edges []match.Edge, candidates match.Candidates, params Params) (Report, string) {
	a := Compute(spans, units, edges, candidates, params)
	return a.Report, a.Markdown()
}

// Markdown renders the human-readable verification report.
func (a *Analysis) Markdown() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	referenced := len(a.Spans) - len(a.Unreferenced)

	line("# Verification report")
	line("")
	line("- Coverage: %.3f (%d/%d)", a.Coverage, referenced, len(a.Spans))
	line("- Unsupported POLO units: %d", len(a.Unsupported))
	line("- Ambiguous POLO units: %d (eps=%s)", len(a.Ambiguities),
		strconv.FormatFloat(a.Params.AmbiguityEpsilon, 'g', -1, 64))
	line("- PROP ratio: %.3f (%d/%d)", a.PropRatio, a.PropCount, a.TypedCount)
	line("")
	line("## Confidence: %.3f (%s)", a.Confidence, a.Label)
	line("")

	line("## Unsupported units")
	if len(a.Unsupported) == 0 {
		line("- (none)")
	}
	for _, u := range a.Unsupported {
		line("- %s [%s]: %s", u.ID, strings.ToUpper(string(u.Kind)), u.Text)
	}
	line("")

	line("## Unreferenced MARCO spans")
	if len(a.Unreferenced) == 0 {
		line("- (none)")
	}
	for i, sp := range a.Unreferenced {
		if i == maxUnreferencedListed {
			break
		}
		line("- %s [%s]: %s", sp.ID, sp.Kind, Excerpt(sp.Text))
	}
	line("")

	line("## Ambiguities (top-2 candidates)")
	if len(a.Ambiguities) == 0 {
		line("- (none)")
	}
	for _, amb := range a.Ambiguities {
		line("- %s [%s]: %s", amb.Unit.ID, strings.ToUpper(string(amb.Unit.Kind)), amb.Unit.Text)
		line("  - cand1: %s score=%.3f", amb.First.SpanID, amb.First.Score)
		line("  - cand2: %s score=%.3f", amb.Second.SpanID, amb.Second.Score)
	}

	return b.String()
}

// Excerpt flattens text onto one line and truncates it for listing.
func Excerpt(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > maxExcerptLen {
		return text[:maxExcerptLen] + "..."
	}
	return text
}
