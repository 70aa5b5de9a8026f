package verify

import (
	"math"

	"github.com/fyrsmithlabs/marcopolo/internal/extract"
	"github.com/fyrsmithlabs/marcopolo/internal/match"
)

// Report is the aggregate verification result.
type Report struct {
	Coverage          float64  `json:"coverage"`
	UnsupportedUnits  []string `json:"unsupported_units"`
	UnreferencedSpans []string `json:"unreferenced_spans"`
	AmbiguousUnits    []string `json:"ambiguous_units"`
	PropRatio         float64  `json:"prop_ratio"`
	Confidence        float64  `json:"confidence"`
	Label             string   `json:"label"`
	Params            Params   `json:"params"`
}

// Ambiguity describes a unit whose top two candidates are too close.
type Ambiguity struct {
	Unit   extract.Unit
	First  match.Candidate
	Second match.Candidate
}

// Analysis carries the report plus the intermediate values the Markdown
// rendering needs.
type Analysis struct {
	Report

	Spans        []extract.Span
	Referenced   map[string]bool
	TypedCount   int
	PropCount    int
	Unsupported  []extract.Unit
	Unreferenced []extract.Span
	Ambiguities  []Ambiguity

	NoveltyScore   float64
	AmbiguityScore float64
}

// Compute aggregates coverage, novelty, ambiguity and proposal ratio into a
// confidence score. It never fails: empty inputs yield zero coverage and
// neutral factor scores.
func Compute(spans []extract.Span, units []extract.Unit, edges []match.Edge, candidates match.Candidates, params Params) *Analysis {
	a := &Analysis{
		Spans:      spans,
		Referenced: make(map[string]bool),
	}

	edgeByUnit := make(map[string]bool, len(edges))
	for _, e := range edges {
		edgeByUnit[e.PoloID] = true
		if e.Score >= params.MatchMin {
			a.Referenced[e.MarcoID] = true
		}
	}

	var coverage float64
	if len(spans) > 0 {
		coverage = float64(countReferenced(spans, a.Referenced)) / float64(len(spans))
	}

	typed := extract.TypedUnits(units)
	a.TypedCount = len(typed)
	for _, u := range typed {
		if !edgeByUnit[u.ID] {
			a.Unsupported = append(a.Unsupported, u)
		}
		if u.Kind == extract.UnitProp {
			a.PropCount++
		}
		if amb, ok := ambiguity(u, candidates[u.ID], params); ok {
			a.Ambiguities = append(a.Ambiguities, amb)
		}
	}

	a.NoveltyScore = 1 - ratio(len(a.Unsupported), len(typed))
	a.AmbiguityScore = 1 - ratio(len(a.Ambiguities), len(typed))
	propRatio := ratio(a.PropCount, len(typed))

	w := params.Weights
	conf := w.Coverage*coverage +
		w.Novelty*a.NoveltyScore +
		w.Ambiguity*a.AmbiguityScore +
		w.PropRatio*(1-propRatio)
	conf = math.Max(0, math.Min(1, conf))

	for _, sp := range spans {
		if !a.Referenced[sp.ID] {
			a.Unreferenced = append(a.Unreferenced, sp)
		}
	}

	a.Report = Report{
		Coverage:          coverage,
		UnsupportedUnits:  unitIDs(a.Unsupported),
		UnreferencedSpans: spanIDs(a.Unreferenced),
		AmbiguousUnits:    ambiguousIDs(a.Ambiguities),
		PropRatio:         propRatio,
		Confidence:        conf,
		Label:             LabelFor(conf, params.Labels),
		Params:            params,
	}
	return a
}

// ambiguity reports whether a typed unit's top two candidates are within
// epsilon while the best clears the match threshold.
func ambiguity(u extract.Unit, cand []match.Candidate, params Params) (Ambiguity, bool) {
	if len(cand) < 2 || cand[0].Score < params.MatchMin {
		return Ambiguity{}, false
	}
	if math.Abs(cand[0].Score-cand[1].Score) > params.AmbiguityEpsilon {
		return Ambiguity{}, false
	}
	return Ambiguity{Unit: u, First: cand[0], Second: cand[1]}, true
}

// ratio returns n/d, or 0 when d is zero.
func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func countReferenced(spans []extract.Span, referenced map[string]bool) int {
	n := 0
	for _, sp := range spans {
		if referenced[sp.ID] {
			n++
		}
	}
	return n
}

func unitIDs(units []extract.Unit) []string {
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}

func spanIDs(spans []extract.Span) []string {
	ids := make([]string, len(spans))
	for i, sp := range spans {
		ids[i] = sp.ID
	}
	return ids
}

func ambiguousIDs(ambs []Ambiguity) []string {
	ids := make([]string, len(ambs))
	for i, a := range ambs {
		ids[i] = a.Unit.ID
	}
	return ids
}
