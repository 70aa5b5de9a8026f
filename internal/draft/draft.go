package draft

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/marcopolo/internal/extract"
)

// MiscTitle is the bucket for spans no topic claims.
const MiscTitle = "Misc"

var docReference = regexp.MustCompile(`\b(readme|docs/|src/|\.md|\.py)\b`)

// Generator turns MARCO spans into a conservative POLO draft.
type Generator struct {
	topics  []Topic
	markers []string
}

// NewGenerator creates a generator from rules. Keywords and markers are
// matched case-insensitively.
func NewGenerator(rules Rules) *Generator {
	topics := make([]Topic, len(rules.Topics))
	for i, t := range rules.Topics {
		topics[i] = Topic{Title: t.Title, Keywords: lowerAll(t.Keywords)}
	}
	return &Generator{
		topics:  topics,
		markers: lowerAll(rules.QuestionMarkers),
	}
}

// Draft renders a POLO document with one thread per non-empty topic bucket
// and a trailing Misc thread. Every span yields one SRC line carrying a
// [trace:<span id>] reference.
func (g *Generator) Draft(spans []extract.Span) string {
	buckets := make([][]extract.Span, len(g.topics))
	var misc []extract.Span

	for _, sp := range spans {
		if i := g.topicFor(sp.Text); i >= 0 {
			buckets[i] = append(buckets[i], sp)
		} else {
			misc = append(misc, sp)
		}
	}

	var out []string
	thread := 0
	for i, t := range g.topics {
		if len(buckets[i]) == 0 {
			continue
		}
		thread++
		out = append(out, fmt.Sprintf("## Thread %d: %s", thread, t.Title), "")
		for _, sp := range buckets[i] {
			out = append(out, g.lines(sp, true)...)
		}
		out = append(out, "")
	}

	if len(misc) > 0 {
		thread++
		out = append(out, fmt.Sprintf("## Thread %d: %s", thread, MiscTitle), "")
		for _, sp := range misc {
			out = append(out, g.lines(sp, false)...)
		}
		out = append(out, "")
	}

	return strings.TrimSpace(strings.Join(out, "\n")) + "\n"
}

func (g *Generator) lines(sp extract.Span, allowProp bool) []string {
	text := strings.TrimSpace(strings.ReplaceAll(sp.Text, "\n", " "))
	lower := strings.ToLower(sp.Text)

	out := []string{fmt.Sprintf("SRC: %s [trace:%s]", text, sp.ID)}
	if containsAny(lower, g.markers) {
		out = append(out, fmt.Sprintf("OPEN: Clarify decision/question implied by: %s [trace:%s]", sp.ID, sp.ID))
	}
	if allowProp && docReference.MatchString(lower) {
		out = append(out, fmt.Sprintf("PROP: Consider routing this to an appropriate doc surface. [trace:%s]", sp.ID))
	}
	return out
}

func (g *Generator) topicFor(text string) int {
	lower := strings.ToLower(text)
	for i, t := range g.topics {
		if containsAny(lower, t.Keywords) {
			return i
		}
	}
	return -1
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
