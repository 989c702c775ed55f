package cpf

import (
	"math"
	"math/cmplx"

	"github.com/edp1096/gridflow/pkg/compile"
)

// state is the continuation unknown vector in (Va[pvpq], Vm[pq], lambda)
// coordinates, plus the full complex voltage it represents.
type state struct {
	va, vm []float64 // full-length, indexed by bus
	lambda float64
}

func (s state) toV(n int) []complex128 {
	v := make([]complex128, n)
	for i := 0; i < n; i++ {
		v[i] = complex(s.vm[i], 0) * cmplx.Exp(complex(0, s.va[i]))
	}
	return v
}

// tangent computes the predictor direction: solve
// J*dVx = direction with dLambda fixed at 1, then normalise the full
// (dVx, dLambda) vector to unit length.
func tangent(nc *compile.NumericCircuit, s state, direction []complex128, pvpq, pq []int) []float64 {
	J := denseJacobian(nc, s.toV(nc.N()), pvpq, pq)
	size := len(pvpq) + len(pq)

	rhs := make([]float64, size)
	for i, b := range pvpq {
		rhs[i] = real(direction[b])
	}
	for i, b := range pq {
		rhs[len(pvpq)+i] = imag(direction[b])
	}

	dVx := denseSolve(J, rhs)

	full := append(append([]float64(nil), dVx...), 1.0)
	norm := 0.0
	for _, x := range full {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return full
	}
	for i := range full {
		full[i] /= norm
	}
	return full
}

// predict applies the tangent scaled by step to the current state,
// returning the predicted (unconverged) next point.
func predict(s state, t []float64, step float64, pvpq, pq []int) state {
	next := state{
		va:     append([]float64(nil), s.va...),
		vm:     append([]float64(nil), s.vm...),
		lambda: s.lambda + step*t[len(pvpq)+len(pq)],
	}
	for i, b := range pvpq {
		next.va[b] += step * t[i]
	}
	for i, b := range pq {
		next.vm[b] += step * t[len(pvpq)+i]
	}
	return next
}
