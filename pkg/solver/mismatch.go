package solver

import (
	"math"
	"math/cmplx"

	"github.com/edp1096/gridflow/pkg/compile"
)

// Scalc returns S_calc = V ⊙ conj(Ybus · V − Ibus), folding each bus's
// aggregated ZIP constant-current injection into the current balance
// alongside the admittance term.
func Scalc(nc *compile.NumericCircuit, v []complex128) []complex128 {
	iv := nc.Ybus.MatVec(v)
	s := make([]complex128, len(v))
	for i := range v {
		s[i] = v[i] * cmplx.Conj(iv[i]-nc.Ibus[i])
	}
	return s
}

// Mismatch returns F = [ Re(Scalc-Sbus)[pvpq]; Im(Scalc-Sbus)[pq] ] and its
// infinity norm.
func Mismatch(scalc, sbus []complex128, pvpq, pq []int) (f []float64, normInf float64) {
	f = make([]float64, len(pvpq)+len(pq))
	k := 0
	for _, i := range pvpq {
		f[k] = real(scalc[i]) - real(sbus[i])
		k++
	}
	for _, i := range pq {
		f[k] = imag(scalc[i]) - imag(sbus[i])
		k++
	}
	for _, v := range f {
		if a := math.Abs(v); a > normInf {
			normInf = a
		}
	}
	return f, normInf
}

// InfNorm returns the infinity-norm of a real vector.
func InfNorm(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
