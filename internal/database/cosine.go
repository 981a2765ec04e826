package database

import "math"

// CosineDistance computes the cosine distance between two embedding
// vectors: 1 - cosine similarity, so 0 means identical direction and 2
// means opposite. Mismatched or zero-length inputs score the maximum
// distance so they never rank as a match.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp against floating point drift.
	sim = math.Max(-1, math.Min(1, sim))

	return 1 - sim
}
