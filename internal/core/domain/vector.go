package domain

import "math"

// Cosine returns the cosine similarity of two embedding vectors in
// [-1, 1]. ok is false when similarity cannot be determined: either
// vector nil, dimensions mismatched, or a zero vector. The version
// engine treats ok=false as "cannot prove equivalence" and commits a
// new version.
func Cosine(a, b []float32) (similarity float64, ok bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
