// Package airlock is the ASCII admission gate applied to MARCO and POLO text
// before any extraction runs on it.
//
// Admission either accepts the text as-is (pure ASCII), accepts a repaired
// copy (only common typographic punctuation present and repair enabled), or
// refuses it with a bounded list of offending characters.
package airlock

import (
	"fmt"
	"strings"
)

// MaxReported bounds the offender list attached to a rejection report.
const MaxReported = 200

// repairTable maps common typographic punctuation to ASCII equivalents.
var repairTable = map[rune]string{
	'\u2018': "'",
	'\u2019': "'",
	'\u201c': `"`,
	'\u201d': `"`,
	'\u2013': "--",
	'\u2014': "--",
	'\u00a0': " ",
	'\u2026': "...",
	'\u2192': "->",
	'\u2190': "<-",
}

// Offender is a single non-ASCII character found in the input.
type Offender struct {
	Pos       int    `json:"pos"`
	Char      string `json:"char,omitempty"`
	Codepoint string `json:"codepoint"`
}

// Repair records one substitution made in repair mode.
type Repair struct {
	Pos  int    `json:"pos"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Report describes the outcome of an admission check.
type Report struct {
	ASCIIOK  bool       `json:"ascii_ok"`
	Repaired bool       `json:"repaired"`
	Repairs  []Repair   `json:"repairs,omitempty"`
	NonASCII []Offender `json:"non_ascii"`
}

// Admit checks text for non-ASCII codepoints.
//
// Positions are codepoint offsets, not byte offsets. In repair mode any
// character missing from the repair table rejects the whole text: partial
// repair is never reported as success.
func Admit(text string, repairCommonPunct bool) (string, Report, bool) {
	offenders := scan(text)
	if len(offenders) == 0 {
		return text, Report{ASCIIOK: true, NonASCII: []Offender{}}, true
	}

	if !repairCommonPunct {
		return "", Report{NonASCII: capOffenders(offenders)}, false
	}

	var b strings.Builder
	b.Grow(len(text))
	var repairs []Repair
	pos := 0
	for _, r := range text {
		if r <= 127 {
			b.WriteRune(r)
			pos++
			continue
		}
		repl, ok := repairTable[r]
		if !ok {
			return "", Report{NonASCII: []Offender{newOffender(pos, r)}}, false
		}
		b.WriteString(repl)
		repairs = append(repairs, Repair{Pos: pos, From: codepoint(r), To: repl})
		pos++
	}

	listed := capOffenders(offenders)
	for i := range listed {
		listed[i].Char = ""
	}
	return b.String(), Report{
		ASCIIOK:  true,
		Repaired: true,
		Repairs:  repairs,
		NonASCII: listed,
	}, true
}

// Normalize converts CRLF and lone CR line endings to LF and strips trailing
// whitespace from every line.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t\v\f")
	}
	return strings.Join(lines, "\n")
}

func scan(text string) []Offender {
	var out []Offender
	pos := 0
	for _, r := range text {
		if r > 127 {
			out = append(out, newOffender(pos, r))
		}
		pos++
	}
	return out
}

func capOffenders(in []Offender) []Offender {
	if len(in) > MaxReported {
		in = in[:MaxReported]
	}
	out := make([]Offender, len(in))
	copy(out, in)
	return out
}

func newOffender(pos int, r rune) Offender {
	return Offender{Pos: pos, Char: string(r), Codepoint: codepoint(r)}
}

func codepoint(r rune) string {
	return fmt.Sprintf("U+%04X", r)
}
