package match

import (
	"math"
	"sort"
	"strings"
)

// TFIDF scores texts by cosine similarity of TF-IDF term vectors.
//
// The vocabulary and document frequencies are fitted on the corpus only;
// query terms outside the vocabulary are dropped. Terms are lowercase runs
// of two or more word characters with English stop words removed. Inverse
// document frequency is smoothed as ln((1+n)/(1+df)) + 1 and each vector is
// L2-normalized, so the dot product is the cosine.
type TFIDF struct{}

// NewTFIDF returns the TF-IDF cosine scorer.
func NewTFIDF() *TFIDF {
	return &TFIDF{}
}

// Name implements Scorer.
func (t *TFIDF) Name() string {
	return "tfidf_cosine"
}

// Score implements Scorer.
func (t *TFIDF) Score(corpus, queries []string) [][]float64 {
	vocab, idf := fitVocabulary(corpus)

	docs := make([][]entry, len(corpus))
	for i, text := range corpus {
		docs[i] = vectorize(text, vocab, idf)
	}

	out := make([][]float64, len(queries))
	for qi, text := range queries {
		q := vectorize(text, vocab, idf)
		row := make([]float64, len(corpus))
		for di, d := range docs {
			row[di] = clamp01(dot(q, d))
		}
		out[qi] = row
	}
	return out
}

// fitVocabulary assigns term indices in first-seen order and computes the
// smoothed idf per term.
func fitVocabulary(corpus []string) (map[string]int, []float64) {
	vocab := make(map[string]int)
	var df []int
	for _, text := range corpus {
		seen := make(map[int]bool)
		for _, term := range terms(text) {
			idx, ok := vocab[term]
			if !ok {
				idx = len(df)
				vocab[term] = idx
				df = append(df, 0)
			}
			if !seen[idx] {
				seen[idx] = true
				df[idx]++
			}
		}
	}

	n := float64(len(corpus))
	idf := make([]float64, len(df))
	for i, d := range df {
		idf[i] = math.Log((1+n)/(1+float64(d))) + 1
	}
	return vocab, idf
}

// entry is one non-zero component of a sparse term vector.
type entry struct {
	idx int
	w   float64
}

// vectorize builds the L2-normalized sparse tf-idf vector of text, ordered
// by term index so that sums are evaluated in a fixed order.
func vectorize(text string, vocab map[string]int, idf []float64) []entry {
	counts := make(map[int]float64)
	for _, term := range terms(text) {
		if idx, ok := vocab[term]; ok {
			counts[idx]++
		}
	}

	vec := make([]entry, 0, len(counts))
	for idx, tf := range counts {
		vec = append(vec, entry{idx: idx, w: tf * idf[idx]})
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].idx < vec[j].idx })

	var norm float64
	for _, e := range vec {
		norm += e.w * e.w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].w /= norm
	}
	return vec
}

// dot merges two index-ordered sparse vectors.
func dot(a, b []entry) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].idx == b[j].idx:
			sum += a[i].w * b[j].w
			i++
			j++
		case a[i].idx < b[j].idx:
			i++
		default:
			j++
		}
	}
	return sum
}

// terms splits text into lowercase word-character runs of length >= 2 and
// drops stop words.
func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordChar(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || IsStopWord(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ensure TFIDF implements Scorer.
var _ Scorer = (*TFIDF)(nil)
