// Package rotation provides the orthonormal transform P that a quantizer
// applies to a query vector before it reaches the estimator, so the query
// lands in the same frame the stored codes were quantized in. Choosing how
// rotated data gets produced during index construction is out of scope
// (training the quantizer is a non-goal of the estimator core); this
// package supplies a concrete, dependency-free orthonormal matrix so the
// core has something real to consume and round-trip-test against.
package rotation

import (
	"math"
	"math/rand/v2"
)

// Matrix is a D×D orthonormal matrix generated once at construction time
// and shared by reference for the lifetime of a BaseQuantizerData.
type Matrix struct {
	dim int
	// rows[i] is the i-th row of P, flattened row-major.
	rows []float32
}

// NewRandomOrthonormal builds a seeded D×D orthonormal matrix via modified
// Gram-Schmidt over D independent Gaussian vectors. Deterministic for a
// given (dim, seed) pair so index construction is reproducible.
func NewRandomOrthonormal(dim int, seed uint64) *Matrix {
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))

	rows := make([][]float64, dim)
	for i := range rows {
		rows[i] = make([]float64, dim)
		for j := range rows[i] {
			rows[i][j] = rng.NormFloat64()
		}
	}

	// Modified Gram-Schmidt: orthogonalize row i against all previously
	// normalized rows, then normalize row i itself.
	for i := range rows {
		for k := 0; k < i; k++ {
			proj := dotF64(rows[i], rows[k])
			for d := range rows[i] {
				rows[i][d] -= proj * rows[k][d]
			}
		}
		norm := math.Sqrt(dotF64(rows[i], rows[i]))
		if norm == 0 {
			norm = 1
		}
		for d := range rows[i] {
			rows[i][d] /= norm
		}
	}

	flat := make([]float32, dim*dim)
	for i := range rows {
		for j := range rows[i] {
			flat[i*dim+j] = float32(rows[i][j])
		}
	}
	return &Matrix{dim: dim, rows: flat}
}

func dotF64(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Dim returns D.
func (m *Matrix) Dim() int { return m.dim }

// Rotate computes x·P, the rotator applied to a row vector.
func (m *Matrix) Rotate(x []float32) []float32 {
	out := make([]float32, m.dim)
	m.RotateInto(x, out)
	return out
}

// RotateInto writes x·P into out, which must have length Dim().
func (m *Matrix) RotateInto(x, out []float32) {
	d := m.dim
	for j := 0; j < d; j++ {
		var sum float32
		for i := 0; i < d; i++ {
			sum += x[i] * m.rows[i*d+j]
		}
		out[j] = sum
	}
}

// InverseRotate computes x·P^T, the inverse of Rotate since P is
// orthonormal (P^-1 = P^T).
func (m *Matrix) InverseRotate(x []float32) []float32 {
	out := make([]float32, m.dim)
	d := m.dim
	for i := 0; i < d; i++ {
		var sum float32
		row := m.rows[i*d : i*d+d]
		for j := 0; j < d; j++ {
			sum += x[j] * row[j]
		}
		out[i] = sum
	}
	return out
}
