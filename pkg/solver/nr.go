package solver

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// NRKernel implements Newton-Raphson power flow with optional Iwamoto
// damping, following the clear/assemble/solve/check-convergence/copy-old-
// solution loop shape common to Newton-type circuit solvers.
type NRKernel struct{}

func (NRKernel) Solve(ctx context.Context, nc *compile.NumericCircuit, opts Options, v0 []complex128) (Result, error) {
	n := nc.N()
	v := make([]complex128, n)
	if v0 != nil {
		copy(v, v0)
	} else {
		copy(v, nc.Vbus)
	}

	pv, pq, _, pvpq := nc.BusIndices()
	tol := opts.Tolerance
	if tol == 0 {
		tol = consts.DefaultTolerance
	}
	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = consts.DefaultMaxIter
	}

	vm := make([]float64, n)
	va := make([]float64, n)
	for i, vi := range v {
		vm[i] = cmplx.Abs(vi)
		va[i] = cmplx.Phase(vi)
	}
	// PV buses hold |V| fixed at the compiled set-point throughout.
	for _, i := range pv {
		vm[i] = cmplx.Abs(v[i])
	}

	scalc := Scalc(nc, v)
	_, normF := Mismatch(scalc, nc.Sbus, pvpq, pq)

	size := len(pvpq) + len(pq)
	J, err := spmat.New(size, false)
	if err != nil {
		return Result{V: v, Converged: false, Scalc: scalc}, err
	}
	defer J.Destroy()

	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			return Result{V: v, Converged: false, Iterations: iter, NormF: normF, Scalc: scalc, Cancelled: true}, nil
		default:
		}

		if normF < tol {
			if opts.Progress != nil {
				opts.Progress(1.0)
			}
			return Result{V: v, Converged: true, Iterations: iter, NormF: normF, Scalc: scalc}, nil
		}

		f, _ := Mismatch(scalc, nc.Sbus, pvpq, pq)
		if err := BuildJacobian(J, nc, v, pvpq, pq); err != nil {
			return Result{V: v, Converged: false, Iterations: iter, NormF: normF, Scalc: scalc}, nil
		}
		for i, fi := range f {
			J.AddRHS(i+1, -fi)
		}
		dx, err := J.Solve()
		if err != nil {
			// Singular Jacobian is reported as non-convergence, not a panic.
			return Result{V: v, Converged: false, Iterations: iter + 1, NormF: normF, Scalc: scalc}, nil
		}

		dVa := make(map[int]float64, len(pvpq))
		for i, b := range pvpq {
			dVa[b] = dx[i+1]
		}
		dVm := make(map[int]float64, len(pq))
		for i, b := range pq {
			dVm[b] = dx[len(pvpq)+i+1]
		}

		newVa := append([]float64(nil), va...)
		newVm := append([]float64(nil), vm...)
		for b, d := range dVa {
			newVa[b] += d
		}
		for b, d := range dVm {
			newVm[b] += d
		}
		newV := make([]complex128, n)
		for i := range newV {
			newV[i] = complex(newVm[i], 0) * cmplx.Exp(complex(0, newVa[i]))
		}

		mu := 1.0
		if opts.Robustness {
			mu = iwamotoMu(nc, v, newV, pvpq, pq)
		}

		for i := range v {
			v[i] = v[i] + complex(mu, 0)*(newV[i]-v[i])
			vm[i] = cmplx.Abs(v[i])
			va[i] = cmplx.Phase(v[i])
		}

		scalc = Scalc(nc, v)
		_, normF = Mismatch(scalc, nc.Sbus, pvpq, pq)

		if opts.Progress != nil {
			opts.Progress(float64(iter+1) / float64(maxIter))
		}
	}

	return Result{V: v, Converged: normF < tol, Iterations: maxIter, NormF: normF, Scalc: scalc}, nil
}

// iwamotoMu computes the optimal step multiplier mu in (0,1] minimising
// ||F(V + mu*(Vnew-V))||^2 along the Newton direction, by
// sampling F at mu=0,1,2, fitting the per-component quadratic g(mu) =
// a+b*mu+c*mu^2 (exact, since S is quadratic in V), then solving the cubic
// d/dmu sum(g_k(mu)^2)=0 and keeping the real root in (0,1] with the
// smallest infinity-norm mismatch (mu=1 when no root lies in (0,1]).
func iwamotoMu(nc *compile.NumericCircuit, v0, v1 []complex128, pvpq, pq []int) float64 {
	direction := make([]complex128, len(v0))
	for i := range v0 {
		direction[i] = v1[i] - v0[i]
	}
	at := func(mu float64) []float64 {
		vv := make([]complex128, len(v0))
		for i := range vv {
			vv[i] = v0[i] + complex(mu, 0)*direction[i]
		}
		s := Scalc(nc, vv)
		f, _ := Mismatch(s, nc.Sbus, pvpq, pq)
		return f
	}

	g0 := at(0)
	g1 := at(1)
	g2 := at(2)

	var c3, c2, c1, c0 float64
	for k := range g0 {
		a := g0[k]
		b := (-g2[k] + 4*g1[k] - 3*g0[k]) / 2
		c := (g2[k] - 2*g1[k] + g0[k]) / 2

		c0 += a * b
		c1 += 2*a*c + b*b
		c2 += 3 * b * c
		c3 += 2 * c * c
	}

	mu := 1.0
	if roots := realCubicRoots(c3, c2, c1, c0); len(roots) > 0 {
		bestMu, bestVal := 1.0, math.Inf(1)
		for _, r := range roots {
			if r <= 0 || r > 1 {
				continue
			}
			f := at(r)
			val := InfNorm(f)
			if val < bestVal {
				bestMu, bestVal = r, val
			}
		}
		mu = bestMu
	}
	return mu
}

// realCubicRoots returns the real roots of a*x^3+b*x^2+c*x+d=0 via Cardano's
// formula.
func realCubicRoots(a, b, c, d float64) []float64 {
	if math.Abs(a) < 1e-14 {
		if math.Abs(b) < 1e-14 {
			if math.Abs(c) < 1e-14 {
				return nil
			}
			return []float64{-d / c}
		}
		disc := c*c - 4*b*d
		if disc < 0 {
			return nil
		}
		sq := math.Sqrt(disc)
		return []float64{(-c + sq) / (2 * b), (-c - sq) / (2 * b)}
	}

	b /= a
	c /= a
	d /= a

	p := c - b*b/3
	q := 2*b*b*b/27 - b*c/3 + d
	disc := q*q/4 + p*p*p/27

	shift := -b / 3
	switch {
	case disc > 0:
		sq := math.Sqrt(disc)
		u := math.Cbrt(-q/2 + sq)
		v := math.Cbrt(-q/2 - sq)
		return []float64{u + v + shift}
	case disc == 0:
		u := math.Cbrt(-q / 2)
		return []float64{2*u + shift, -u + shift}
	default:
		r := math.Sqrt(-p * p * p / 27)
		phi := math.Acos(clamp(-q/2/r, -1, 1))
		m := 2 * math.Sqrt(-p/3)
		roots := make([]float64, 3)
		for k := 0; k < 3; k++ {
			roots[k] = m*math.Cos((phi+2*math.Pi*float64(k))/3) + shift
		}
		return roots
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
