// Package match ranks MARCO spans against POLO units and emits trace edges.
package match

// Scorer computes a dense similarity matrix between query texts (POLO units)
// and a corpus (MARCO spans).
//
// Score returns one row per query and one column per corpus entry; every
// value lies in [0, 1]. Implementations must be deterministic and must not
// retain state between calls.
type Scorer interface {
	// Name is the feature key under which edge scores are reported.
	Name() string

	// Score returns the len(queries) x len(corpus) similarity matrix.
	Score(corpus, queries []string) [][]float64
}
