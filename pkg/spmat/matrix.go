// Package spmat provides the sparse-matrix assembly, matvec, and direct LU
// solve the compiler and solver kernels share. It wraps
// github.com/edp1096/sparse behind a triplet-accumulate-then-freeze
// workflow instead of per-element stamping into a fixed CSC layout.
package spmat

import (
	"errors"
	"fmt"

	"github.com/edp1096/sparse"
)

// ErrSingular is returned by Solve/SolveComplex when the matrix is
// numerically singular. Callers must treat this as non-convergence for the
// current iteration, never as a crash.
var ErrSingular = errors.New("spmat: singular matrix")

// Matrix is a square sparse matrix with an attached RHS/solution vector,
// real or complex. It is built by repeated AddElement/AddComplexElement
// calls (triplet accumulation is tolerated by the underlying library's
// expandable configuration) and solved with Solve/SolveComplex.
type Matrix struct {
	Size      int
	isComplex bool

	mat    *sparse.Matrix
	config *sparse.Configuration

	rhs      []float64
	rhsImag  []float64
	solution []float64
	solImag  []float64
}

// New creates a Size x Size sparse matrix. isComplex selects the complex
// configuration (HELM's per-order reduced system); real is used for the
// NR Jacobian and the DC B' matrix.
func New(size int, isComplex bool) (*Matrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 isComplex,
		SeparatedComplexVectors: true,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           false,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("spmat: create matrix: %w", err)
	}

	vecSize := size + 1 // 1-based indexing, matching the underlying sparse library
	return &Matrix{
		Size:      size,
		isComplex: isComplex,
		mat:       mat,
		config:    config,
		rhs:       make([]float64, vecSize),
		rhsImag:   make([]float64, vecSize),
		solution:  make([]float64, vecSize),
		solImag:   make([]float64, vecSize),
	}, nil
}

// AddElement accumulates value into the real part of A[i,j] (1-based).
func (m *Matrix) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return
	}
	m.mat.GetElement(int64(i), int64(j)).Real += value
}

// AddComplexElement accumulates real+j*imag into A[i,j] (1-based).
func (m *Matrix) AddComplexElement(i, j int, real, imag float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return
	}
	el := m.mat.GetElement(int64(i), int64(j))
	el.Real += real
	el.Imag += imag
}

// AddRHS accumulates value into rhs[i] (1-based).
func (m *Matrix) AddRHS(i int, value float64) {
	if i <= 0 || i > m.Size {
		return
	}
	m.rhs[i] += value
}

// AddComplexRHS accumulates real+j*imag into rhs[i] (1-based).
func (m *Matrix) AddComplexRHS(i int, real, imag float64) {
	if i <= 0 || i > m.Size {
		return
	}
	m.rhs[i] += real
	m.rhsImag[i] += imag
}

// Clear zeroes the matrix and RHS vectors for the next assembly pass,
// keeping the allocated sparsity pattern so it isn't rebuilt from scratch
// every iteration.
func (m *Matrix) Clear() {
	m.mat.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
		m.rhsImag[i] = 0
	}
}

// Solve factors and solves Ax=b for the real system, returning
// ErrSingular if A is numerically singular.
func (m *Matrix) Solve() ([]float64, error) {
	if err := m.mat.Factor(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	sol, err := m.mat.Solve(m.rhs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	m.solution = sol
	return m.solution, nil
}

// SolveComplex factors and solves the complex system, returning real and
// imaginary solution vectors.
func (m *Matrix) SolveComplex() ([]float64, []float64, error) {
	if err := m.mat.Factor(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	re, im, err := m.mat.SolveComplex(m.rhs, m.rhsImag)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	m.solution, m.solImag = re, im
	return m.solution, m.solImag, nil
}

// RHS returns the 1-based real RHS vector for direct mutation.
func (m *Matrix) RHS() []float64 { return m.rhs }

// Destroy releases the underlying sparse matrix's native resources.
func (m *Matrix) Destroy() {
	if m.mat != nil {
		m.mat.Destroy()
	}
}
