package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/marcopolo/internal/airlock"
)

// DefaultThreadID is the thread in effect before the first heading.
const DefaultThreadID = "T00"

var (
	threadHeading = regexp.MustCompile(`^\s*##\s+(.*\S)\s*$`)
	directive     = regexp.MustCompile(`(?i)^\s*(SRC|OPEN|PROP)\s*:(.*)$`)

	// Lines that look like they were meant to be recognized but are not.
	colonlessTag = regexp.MustCompile(`^\s*(SRC|OPEN|PROP)\s+\S`)
	unknownTag   = regexp.MustCompile(`^\s*([A-Z]{2,8}):\s`)
	deepHeading  = regexp.MustCompile(`^\s*#{3,}\s+\S`)
	bareHeading  = regexp.MustCompile(`^\s*##[^#\s]`)
)

// NearMiss is a POLO line that was ignored but resembles a heading or a
// typed directive.
type NearMiss struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// UnitExtraction is the result of scanning a POLO document.
type UnitExtraction struct {
	Units      []Unit
	NearMisses []NearMiss
}

// threadState is the scanner position relative to thread headings.
type threadState int

const (
	stateNoThread threadState = iota
	stateInThread
)

// threadCounters is the per-call sequence state for unit ids.
type threadCounters struct {
	state    threadState
	threadID string
	threads  int
	counts   map[UnitKind]int
}

func newThreadCounters() *threadCounters {
	return &threadCounters{
		state:    stateNoThread,
		threadID: DefaultThreadID,
		counts:   make(map[UnitKind]int),
	}
}

func (c *threadCounters) openThread() string {
	c.threads++
	c.state = stateInThread
	c.threadID = fmt.Sprintf("T%02d", c.threads)
	c.counts = make(map[UnitKind]int)
	return c.threadID
}

func (c *threadCounters) next(kind UnitKind) string {
	c.counts[kind]++
	return fmt.Sprintf("p:%s.%s%02d", c.threadID, kind, c.counts[kind])
}

// ExtractUnits segments POLO text into typed units.
func ExtractUnits(text string) []Unit {
	return ExtractUnitsWithDiagnostics(text).Units
}

// ExtractUnitsWithDiagnostics segments POLO text into typed units and
// additionally reports ignored lines that resemble headings or directives.
//
// Unrecognized lines never cause an error; they contribute nothing.
func ExtractUnitsWithDiagnostics(text string) UnitExtraction {
	text = airlock.Normalize(text)
	c := newThreadCounters()
	res := UnitExtraction{Units: []Unit{}}

	for i, line := range strings.Split(text, "\n") {
		if m := threadHeading.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[1])
			tid := c.openThread()
			res.Units = append(res.Units, Unit{
				ID:          c.next(UnitThread),
				Kind:        UnitThread,
				ThreadID:    tid,
				Text:        title,
				Fingerprint: Fingerprint(title),
			})
			continue
		}

		if m := directive.FindStringSubmatch(line); m != nil {
			kind := UnitKind(strings.ToLower(m[1]))
			body := strings.TrimSpace(m[2])
			res.Units = append(res.Units, Unit{
				ID:          c.next(kind),
				Kind:        kind,
				ThreadID:    c.threadID,
				Text:        body,
				Fingerprint: Fingerprint(body),
			})
			continue
		}

		if reason := nearMissReason(line); reason != "" {
			res.NearMisses = append(res.NearMisses, NearMiss{
				Line:   i + 1,
				Text:   line,
				Reason: reason,
			})
		}
	}

	return res
}

func nearMissReason(line string) string {
	switch {
	case colonlessTag.MatchString(line):
		return "directive tag without colon"
	case deepHeading.MatchString(line):
		return "heading deeper than level 2 does not open a thread"
	case bareHeading.MatchString(line):
		return "thread heading missing space after ##"
	}
	if m := unknownTag.FindStringSubmatch(line); m != nil {
		return fmt.Sprintf("unknown directive tag %q", m[1])
	}
	return ""
}
