package solver

import (
	"context"
	"math/cmplx"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// HELMKernel implements the Holomorphic Embedding Load-flow Method:
// Ybus*V(s) is embedded as a power series in s, the coefficients are
// generated by the recursive convolution below, and the series is
// evaluated at s=1 with Wynn's epsilon algorithm in place of a full
// Padé table.
//
// The embedding Ybus*V(s) = s * conj(Sbus) * W(s), W(s) = 1/conj(V(s)),
// with V_slack(s) = 1 + s*(Vset_slack - 1), is exact for slack+PQ networks.
// PV buses are folded into the same recursion with their reactive
// injection held fixed for one embedding pass, then corrected by
// recomputing Q from the evaluated solution and re-running the
// embedding; this repeats until Q stabilises or eight passes are
// exhausted, whichever first.
type HELMKernel struct{}

func (HELMKernel) Solve(ctx context.Context, nc *compile.NumericCircuit, opts Options, v0 []complex128) (Result, error) {
	n := nc.N()
	pv, pq, ref, pvpq := nc.BusIndices()
	_ = pq

	slack := 0
	if len(ref) > 0 {
		slack = ref[0]
	}
	vSlack := nc.Vbus[slack]
	if vSlack == 0 {
		vSlack = 1
	}

	maxCoeffs := opts.HelmMaxCoeffs
	if maxCoeffs == 0 {
		maxCoeffs = consts.DefaultHelmMaxCoeffs
	}
	tol := opts.Tolerance
	if tol == 0 {
		tol = consts.DefaultTolerance
	}

	sbus := append([]complex128(nil), nc.Sbus...)
	isPV := make(map[int]bool, len(pv))
	for _, i := range pv {
		isPV[i] = true
	}

	var v []complex128
	const qOuterPasses = 8
	for pass := 0; pass < qOuterPasses; pass++ {
		select {
		case <-ctx.Done():
			return Result{Cancelled: true}, nil
		default:
		}

		var err error
		v, err = helmSeries(nc, sbus, slack, vSlack, maxCoeffs)
		if err != nil {
			// A singular reduced system (or matrix setup failure) is
			// reported as non-convergence, matching NRKernel's treatment of
			// a singular Jacobian.
			return Result{Converged: false, Cancelled: false}, nil
		}

		if len(pv) == 0 {
			break
		}
		scalc := Scalc(nc, v)
		maxDelta := 0.0
		for _, i := range pv {
			q := imag(scalc[i])
			delta := q - imag(sbus[i])
			if d := cmplx.Abs(complex(delta, 0)); d > maxDelta {
				maxDelta = d
			}
			sbus[i] = complex(real(sbus[i]), q)
			// Re-impose the PV voltage-magnitude set point; HELM's series
			// already tends toward it, this just re-anchors the embedding.
			if m := cmplx.Abs(nc.Vbus[i]); m > 0 {
				v[i] = complex(m, 0) * cmplx.Exp(complex(0, cmplx.Phase(v[i])))
			}
		}
		if maxDelta < tol {
			break
		}
	}

	scalc := Scalc(nc, v)
	_, normF := Mismatch(scalc, nc.Sbus, pvpq, pq)
	converged := normF < tol*100 // HELM's series truncation limits attainable precision

	if opts.Progress != nil {
		opts.Progress(1.0)
	}

	return Result{V: v, Converged: converged, Iterations: maxCoeffs, NormF: normF, Scalc: scalc}, nil
}

// helmSeries runs one embedding pass with Sbus held fixed, returning the
// voltage profile evaluated at s=1. The per-order reduced system (one
// equation per non-slack bus) is solved with a single spmat.Matrix reused
// across orders via Clear, rather than reallocated.
func helmSeries(nc *compile.NumericCircuit, sbus []complex128, slack int, vSlack complex128, maxCoeffs int) ([]complex128, error) {
	n := nc.N()
	sconj := make([]complex128, n)
	for i, s := range sbus {
		sconj[i] = cmplx.Conj(s)
	}

	idx := make([]int, 0, n-1)
	pos := make(map[int]int, n-1)
	for i := 0; i < n; i++ {
		if i == slack {
			continue
		}
		pos[i] = len(idx)
		idx = append(idx, i)
	}

	mat, err := spmat.New(len(idx), true)
	if err != nil {
		return nil, err
	}
	defer mat.Destroy()

	// V[order][bus], W[order][bus] = 1/conj(V(s)) series coefficients.
	V := make([][]complex128, maxCoeffs)
	W := make([][]complex128, maxCoeffs)

	for order := 0; order < maxCoeffs; order++ {
		rhs := make([]complex128, n)
		if order == 0 {
			// order-0: Ybus*V^0 = 0 away from the slack row.
		} else {
			for i := 0; i < n; i++ {
				if i == slack {
					continue
				}
				rhs[i] = sconj[i] * W[order-1][i]
			}
		}

		Vn, err := solveHelmOrder(mat, nc, idx, pos, rhs, slack, vSlack, order)
		if err != nil {
			return nil, err
		}
		V[order] = Vn

		// W^n via the reciprocal-series convolution on conj(V).
		c0 := cmplx.Conj(V[0])
		Wn := make([]complex128, n)
		for i := 0; i < n; i++ {
			if order == 0 {
				if c0[i] != 0 {
					Wn[i] = 1 / c0[i]
				}
				continue
			}
			var sum complex128
			for k := 1; k <= order; k++ {
				sum += cmplx.Conj(V[k][i]) * W[order-k][i]
			}
			if c0[i] != 0 {
				Wn[i] = -sum / c0[i]
			}
		}
		W[order] = Wn
	}

	v := make([]complex128, n)
	for i := 0; i < n; i++ {
		seq := make([]complex128, maxCoeffs)
		var running complex128
		for k := 0; k < maxCoeffs; k++ {
			running += V[k][i]
			seq[k] = running
		}
		v[i] = wynnEpsilon(seq)
	}
	return v, nil
}

// solveHelmOrder solves Ybus*V^n = rhs for non-slack rows and fixes the
// slack row to the embedding's boundary condition for this order, using
// mat's complex LU solve (github.com/edp1096/sparse via pkg/spmat).
func solveHelmOrder(mat *spmat.Matrix, nc *compile.NumericCircuit, idx []int, pos map[int]int, rhs []complex128, slack int, vSlack complex128, order int) ([]complex128, error) {
	n := nc.N()

	var slackTerm complex128
	switch order {
	case 0:
		slackTerm = 1
	case 1:
		slackTerm = vSlack - 1
	default:
		slackTerm = 0
	}

	mat.Clear()

	b := make([]complex128, len(idx))
	for _, gi := range idx {
		b[pos[gi]] = rhs[gi]
	}

	y := nc.Ybus
	for col := 0; col < y.Cols; col++ {
		cj, colIsFree := pos[col]
		for k := y.ColPtr[col]; k < y.ColPtr[col+1]; k++ {
			row := y.RowIdx[k]
			if row == slack {
				continue
			}
			ri := pos[row]
			if col == slack {
				b[ri] -= y.Val[k] * slackTerm
				continue
			}
			if colIsFree {
				mat.AddComplexElement(ri+1, cj+1, real(y.Val[k]), imag(y.Val[k]))
			}
		}
	}
	for i, bv := range b {
		mat.AddComplexRHS(i+1, real(bv), imag(bv))
	}

	re, im, err := mat.SolveComplex()
	if err != nil {
		return nil, err
	}

	v := make([]complex128, n)
	v[slack] = slackTerm
	for _, gi := range idx {
		p := pos[gi]
		v[gi] = complex(re[p+1], im[p+1])
	}
	return v, nil
}

// wynnEpsilon applies Wynn's epsilon algorithm to a sequence of partial
// sums, returning the most-converged even-column estimate as an
// accelerated replacement for evaluating the raw power series at s=1.
func wynnEpsilon(partialSums []complex128) complex128 {
	m := len(partialSums)
	if m == 0 {
		return 0
	}
	prev := make([]complex128, m+1)
	cur := make([]complex128, m)
	copy(cur, partialSums)

	best := partialSums[m-1]
	col := cur
	for k := 1; k < m; k++ {
		next := make([]complex128, len(col)-1)
		for i := range next {
			diff := col[i+1] - col[i]
			if diff == 0 {
				next[i] = prev[i+1]
				continue
			}
			next[i] = prev[i+1] + 1/diff
		}
		prev = append([]complex128(nil), col...)
		col = next
		if k%2 == 0 && len(col) > 0 {
			best = col[len(col)-1]
		}
	}
	return best
}
