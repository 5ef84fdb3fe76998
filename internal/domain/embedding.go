package domain

import "math"

// Vector is a fixed-length embedding stored in pgvector.
type Vector []float32

// Valid reports whether the vector has exactly dim finite elements.
// Vectors failing this check are excluded from indexing and search.
func (v Vector) Valid(dim int) bool {
	if len(v) != dim {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Returns 0 for empty, zero-magnitude, or length-mismatched inputs.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
