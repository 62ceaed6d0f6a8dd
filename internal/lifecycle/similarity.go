package lifecycle

import (
	"math"
	"strings"

	"github.com/mnemos-io/mnemos/internal/memory"
)

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either is empty or the dimensions differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// JaccardWords returns the Jaccard index of the two texts' word sets,
// case-insensitive.
func JaccardWords(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for w := range setA {
		if setB[w] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// pairSimilarity compares two memories: cosine when both carry embeddings,
// word-overlap Jaccard otherwise.
func pairSimilarity(a, b *memory.Memory) float64 {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		return CosineSimilarity(a.Embedding, b.Embedding)
	}
	return JaccardWords(a.Content, b.Content)
}
