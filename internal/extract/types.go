// Package extract segments MARCO text into spans and POLO text into typed
// units. Both extractors are deterministic: identical normalized input always
// produces identical ids and fingerprints.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
)

// SpanKind classifies a MARCO span by its leading marker.
type SpanKind string

const (
	SpanNumbered SpanKind = "numbered_item"
	SpanBullet   SpanKind = "bullet"
	SpanBlock    SpanKind = "block"
)

// Span is a contiguous addressable region of the MARCO document.
type Span struct {
	ID          string   `json:"id"`
	Kind        SpanKind `json:"kind"`
	LineStart   int      `json:"line_start"`
	LineEnd     int      `json:"line_end"`
	ColStart    int      `json:"col_start"`
	ColEnd      int      `json:"col_end"`
	Text        string   `json:"text"`
	Fingerprint string   `json:"fingerprint"`
}

// UnitKind is the type tag of a POLO unit.
type UnitKind string

const (
	UnitThread UnitKind = "thread"
	UnitSrc    UnitKind = "src"
	UnitOpen   UnitKind = "open"
	UnitProp   UnitKind = "prop"
)

// Typed reports whether the kind is one of the claim kinds (src, open, prop).
func (k UnitKind) Typed() bool {
	return k == UnitSrc || k == UnitOpen || k == UnitProp
}

// Unit is a typed statement inside the POLO document.
type Unit struct {
	ID          string   `json:"id"`
	Kind        UnitKind `json:"kind"`
	ThreadID    string   `json:"thread_id"`
	Text        string   `json:"text"`
	Fingerprint string   `json:"fingerprint"`
}

// Fingerprint returns the SHA-256 hex digest of s.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TypedUnits filters units down to src, open and prop kinds.
func TypedUnits(units []Unit) []Unit {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		if u.Kind.Typed() {
			out = append(out, u)
		}
	}
	return out
}
