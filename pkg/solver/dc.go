package solver

import (
	"context"
	"math/cmplx"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// DCKernel implements the DC power-flow approximation: B'*theta = P, solved
// once with no iteration. Voltage magnitudes are fixed at 1 p.u. and
// reactive power is not computed.
type DCKernel struct{}

func (DCKernel) Solve(ctx context.Context, nc *compile.NumericCircuit, opts Options, v0 []complex128) (Result, error) {
	n := nc.N()
	_, _, ref, pvpq := nc.BusIndices()

	refBus := 0
	if len(ref) > 0 {
		refBus = ref[0]
	}

	col := make(map[int]int, len(pvpq))
	for i, b := range pvpq {
		col[b] = i
	}

	B, err := spmat.New(len(pvpq), false)
	if err != nil {
		return Result{}, err
	}

	// B' is the negative of the imaginary part of Yseries (shunts ignored;
	// resistance enters only through Im(1/(r+jx))), restricted to the
	// non-reference buses.
	y := nc.Yseries
	for c := 0; c < y.Cols; c++ {
		cj, ok := col[c]
		if !ok {
			continue
		}
		for k := y.ColPtr[c]; k < y.ColPtr[c+1]; k++ {
			row := y.RowIdx[k]
			ri, ok := col[row]
			if !ok {
				continue
			}
			B.AddElement(ri+1, cj+1, -imag(y.Val[k]))
		}
	}

	for _, b := range pvpq {
		B.AddRHS(col[b]+1, real(nc.Sbus[b]))
	}

	theta, err := B.Solve()
	if err != nil {
		return Result{Converged: false}, nil
	}

	va := make([]float64, n)
	for _, b := range pvpq {
		va[b] = theta[col[b]+1]
	}
	va[refBus] = 0

	v := make([]complex128, n)
	for i := range v {
		v[i] = cmplx.Exp(complex(0, va[i]))
	}

	scalc := make([]complex128, n)
	for i := range scalc {
		scalc[i] = complex(real(nc.Sbus[i]), 0)
	}

	if opts.Progress != nil {
		opts.Progress(1.0)
	}

	return Result{V: v, Converged: true, Iterations: 1, NormF: 0, Scalc: scalc}, nil
}
