// Package embedding holds vector helpers and the local hashing embedder.
package embedding

import "math"

// Normalize scales v to unit L2 norm in place and returns it. A zero vector
// is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Normalized returns a unit-length copy of v.
func Normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return Normalize(out)
}

// Dot returns the inner product of a and b, which must have equal length.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
