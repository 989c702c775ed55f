// Package solver implements the power-flow kernel family (NR/Iwamoto, DC,
// HELM) sharing one driver contract.
package solver

import (
	"context"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/compile"
)

// Type enumerates the solver kinds and their fixed wire/persistence values.
type Type int

const (
	NR             Type = 1
	NRFD_XB        Type = 2
	NRFD_BX        Type = 3
	GAUSS          Type = 4
	DC             Type = 5
	HELM           Type = 6
	ZBUS           Type = 7
	IWAMOTO        Type = 8
	CONTINUATION_NR Type = 9
	HELMZ          Type = 10
)

// QControlMode selects whether the Q-limit outer loop (pkg/qcontrol) runs
// between kernel calls.
type QControlMode int

const (
	QControlOff QControlMode = iota
	QControlDirect
)

// ProgressFunc is invoked between iterations with the iteration fraction in
// [0, 1]. It must be cheap and non-blocking.
type ProgressFunc func(fraction float64)

// Options configures a single kernel invocation.
type Options struct {
	Tolerance    float64 // infinity-norm residual tolerance, p.u.
	MaxIterations int
	Robustness   bool // enable Iwamoto damping (NR kernel only)
	HelmMaxCoeffs int // HELM kernel only; 0 => default

	Progress ProgressFunc
}

// DefaultOptions returns the standard defaults (tolerance 1e-8, 25
// iterations).
func DefaultOptions() Options {
	return Options{
		Tolerance:     consts.DefaultTolerance,
		MaxIterations: consts.DefaultMaxIter,
	}
}

// Result is one island's converged (or not) power-flow solution.
type Result struct {
	V         []complex128 // length N
	Converged bool
	Iterations int
	NormF     float64
	Scalc     []complex128 // length N, S_calc = V ⊙ conj(Ybus·V − Ibus)
	Cancelled bool
}

// Kernel is the common trait every solver variant implements.
type Kernel interface {
	Solve(ctx context.Context, nc *compile.NumericCircuit, opts Options, v0 []complex128) (Result, error)
}
