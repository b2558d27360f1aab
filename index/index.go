// Package index holds the ranking rules shared by every SimilarityIndex
// backend, plus an in-process implementation.
//
// All backends rank the same way: cosine similarity over entries that carry
// a vector when a query vector is given, text relevance otherwise, and the
// result is always padded with unranked entries in insertion order until it
// holds min(k, n) entries.
package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/nevindra/docmind"
)

// Cosine returns the cosine similarity of a and b, or 0 when their lengths
// differ or either has zero magnitude.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// HasVectors reports whether any entry carries a vector.
func HasVectors(entries []docmind.IndexEntry) bool {
	for _, e := range entries {
		if len(e.Vector) > 0 {
			return true
		}
	}
	return false
}

// RankByVector scores entries with vectors by cosine similarity to vec
// (stable on ties) and pads with the rest.
func RankByVector(entries []docmind.IndexEntry, vec []float32, k int) []docmind.ScoredEntry {
	var ranked []docmind.ScoredEntry
	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		ranked = append(ranked, docmind.ScoredEntry{IndexEntry: e, Score: Cosine(vec, e.Vector)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return Pad(ranked, entries, k)
}

// RankByText scores entries by TextScore against text, dropping zero scores,
// and pads with the rest.
func RankByText(entries []docmind.IndexEntry, text string, k int) []docmind.ScoredEntry {
	terms := Terms(text)
	var ranked []docmind.ScoredEntry
	for _, e := range entries {
		if s := TextScore(terms, e.Text); s > 0 {
			ranked = append(ranked, docmind.ScoredEntry{IndexEntry: e, Score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return Pad(ranked, entries, k)
}

// Pad truncates ranked to k and, when shorter than min(k, len(all)), appends
// entries of all not already present, in order, with score 0.
func Pad(ranked []docmind.ScoredEntry, all []docmind.IndexEntry, k int) []docmind.ScoredEntry {
	if k <= 0 {
		return nil
	}
	if len(ranked) >= k {
		return ranked[:k]
	}
	seen := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		seen[r.ID] = true
	}
	for _, e := range all {
		if len(ranked) >= k {
			break
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		ranked = append(ranked, docmind.ScoredEntry{IndexEntry: e})
	}
	return ranked
}

// Terms lower-cases text and splits it into letter/digit tokens, dropping
// duplicates and tokens shorter than two runes.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// TextScore is the fraction of query terms present in text.
func TextScore(terms []string, text string) float32 {
	if len(terms) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, t := range Terms(text) {
		have[t] = true
	}
	hits := 0
	for _, t := range terms {
		if have[t] {
			hits++
		}
	}
	return float32(hits) / float32(len(terms))
}
