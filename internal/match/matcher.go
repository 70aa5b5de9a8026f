package match

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/marcopolo/internal/extract"
)

const (
	// DefaultMatchMin is the minimum best-candidate score for an edge.
	DefaultMatchMin = 0.22

	// DefaultTopK is the candidate list length kept per unit.
	DefaultTopK = 5

	// maxRationaleTokens bounds the shared-token list in a rationale.
	maxRationaleTokens = 6
)

// Relation is the asserted grounding relation of a trace edge.
type Relation string

const (
	RelSupports   Relation = "supports"
	RelUnanswered Relation = "unanswered"
	RelProposes   Relation = "proposes"
	RelMentions   Relation = "mentions"
)

// RelationFor maps a unit kind to its edge relation.
func RelationFor(kind extract.UnitKind) Relation {
	switch kind {
	case extract.UnitSrc:
		return RelSupports
	case extract.UnitOpen:
		return RelUnanswered
	case extract.UnitProp:
		return RelProposes
	default:
		return RelMentions
	}
}

// Edge links a POLO unit to its best-matching MARCO span.
type Edge struct {
	PoloID    string             `json:"polo_id"`
	MarcoID   string             `json:"marco_id"`
	Relation  Relation           `json:"relation"`
	Score     float64            `json:"score"`
	Features  map[string]float64 `json:"features"`
	Rationale string             `json:"rationale"`
}

// Candidate is one ranked span for a unit.
type Candidate struct {
	SpanID string  `json:"span_id"`
	Score  float64 `json:"score"`
}

// Candidates maps unit ids to their ranked candidate lists.
type Candidates map[string][]Candidate

// Config holds matcher thresholds.
type Config struct {
	MatchMin float64
	TopK     int
}

// DefaultConfig returns the default matcher configuration.
func DefaultConfig() Config {
	return Config{MatchMin: DefaultMatchMin, TopK: DefaultTopK}
}

// Matcher ranks spans for each unit using a Scorer.
type Matcher struct {
	scorer   Scorer
	matchMin float64
	topK     int
}

// NewMatcher creates a matcher. A nil scorer selects TF-IDF cosine and a
// non-positive TopK selects DefaultTopK.
func NewMatcher(scorer Scorer, cfg Config) *Matcher {
	if scorer == nil {
		scorer = NewTFIDF()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Matcher{
		scorer:   scorer,
		matchMin: cfg.MatchMin,
		topK:     topK,
	}
}

// Match ranks every span against every unit.
//
// Candidates are kept for every unit even when below threshold. An edge is
// emitted only when the best candidate reaches the match threshold. Empty
// spans or units yield no edges and an empty candidate map.
func (m *Matcher) Match(spans []extract.Span, units []extract.Unit) ([]Edge, Candidates) {
	edges := []Edge{}
	candidates := Candidates{}
	if len(spans) == 0 || len(units) == 0 {
		return edges, candidates
	}

	corpus := make([]string, len(spans))
	for i, sp := range spans {
		corpus[i] = sp.Text
	}
	queries := make([]string, len(units))
	for i, u := range units {
		queries[i] = u.Text
	}

	sims := m.scorer.Score(corpus, queries)

	for ui, u := range units {
		order := rank(sims[ui])
		if len(order) > m.topK {
			order = order[:m.topK]
		}

		cand := make([]Candidate, len(order))
		for i, si := range order {
			cand[i] = Candidate{SpanID: spans[si].ID, Score: sims[ui][si]}
		}
		candidates[u.ID] = cand

		best := cand[0]
		if best.Score < m.matchMin {
			continue
		}

		edges = append(edges, Edge{
			PoloID:    u.ID,
			MarcoID:   best.SpanID,
			Relation:  RelationFor(u.Kind),
			Score:     best.Score,
			Features:  map[string]float64{m.scorer.Name(): best.Score},
			Rationale: Rationale(u.Text, spans[order[0]].Text),
		})
	}

	return edges, candidates
}

// rank returns column indices ordered by descending score; equal scores
// keep their original order.
func rank(row []float64) []int {
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return row[idx[a]] > row[idx[b]]
	})
	return idx
}

// Rationale explains a match by the alphabetically first shared tokens.
func Rationale(unitText, spanText string) string {
	spanTokens := make(map[string]bool)
	for _, tok := range rationaleTokens(spanText) {
		spanTokens[tok] = true
	}

	seen := make(map[string]bool)
	var shared []string
	for _, tok := range rationaleTokens(unitText) {
		if spanTokens[tok] && !seen[tok] {
			seen[tok] = true
			shared = append(shared, tok)
		}
	}
	sort.Strings(shared)
	if len(shared) > maxRationaleTokens {
		shared = shared[:maxRationaleTokens]
	}

	if len(shared) == 0 {
		return "shared:(none)"
	}
	return "shared:" + strings.Join(shared, ",")
}

// rationaleTokens lowercases text, splits on non-alphanumerics and keeps
// tokens of three or more characters.
func rationaleTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
