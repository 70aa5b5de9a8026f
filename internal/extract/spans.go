package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/marcopolo/internal/airlock"
)

var (
	numberedMarker = regexp.MustCompile(`^\s*\d+[.)]\s`)
	bulletMarker   = regexp.MustCompile(`^\s*[-*+]\s`)
)

// spanState is the open-span state of the MARCO scanner.
type spanState int

const (
	stateNone spanState = iota
	stateNumbered
	stateBullet
	stateBlock
)

func (s spanState) kind() SpanKind {
	switch s {
	case stateNumbered:
		return SpanNumbered
	case stateBullet:
		return SpanBullet
	default:
		return SpanBlock
	}
}

// spanScanner accumulates lines for the currently open span.
type spanScanner struct {
	state spanState
	start int
	end   int
	lines []string
	spans []Span
}

func (s *spanScanner) open(state spanState, lineNo int, line string) {
	s.flush()
	s.state = state
	s.start = lineNo
	s.end = lineNo
	s.lines = append(s.lines[:0], line)
}

func (s *spanScanner) extend(lineNo int, line string) {
	s.end = lineNo
	s.lines = append(s.lines, line)
}

func (s *spanScanner) flush() {
	if s.state == stateNone {
		return
	}
	text := strings.TrimSpace(strings.Join(s.lines, "\n"))
	if text != "" {
		last := s.lines[len(s.lines)-1]
		s.spans = append(s.spans, Span{
			ID:          fmt.Sprintf("m:%04d", len(s.spans)+1),
			Kind:        s.state.kind(),
			LineStart:   s.start,
			LineEnd:     s.end,
			ColStart:    0,
			ColEnd:      len(last),
			Text:        text,
			Fingerprint: Fingerprint(text),
		})
	}
	s.state = stateNone
	s.lines = s.lines[:0]
}

// ExtractSpans segments MARCO text into spans.
//
// Numbered and bullet marker lines always open a new span, closing any span
// that is open. Blank lines close the open span. Any other line continues the
// open span or, when none is open, starts a block.
func ExtractSpans(text string) []Span {
	text = airlock.Normalize(text)
	sc := &spanScanner{}

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		switch {
		case strings.TrimSpace(line) == "":
			sc.flush()
		case numberedMarker.MatchString(line):
			sc.open(stateNumbered, lineNo, line)
		case bulletMarker.MatchString(line):
			sc.open(stateBullet, lineNo, line)
		case sc.state == stateNone:
			sc.open(stateBlock, lineNo, line)
		default:
			sc.extend(lineNo, line)
		}
	}
	sc.flush()

	if sc.spans == nil {
		return []Span{}
	}
	return sc.spans
}
