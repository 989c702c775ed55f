package cpf

import (
	"math/cmplx"

	"github.com/edp1096/gridflow/pkg/compile"
)

// denseJacobian builds the dense real power-flow Jacobian over pvpq/pq,
// duplicating solver.BuildJacobian's sparse derivation in
// dense form so the continuation corrector can append an extra
// lambda row/column without re-deriving a sparse augmented factorization
// path.
func denseJacobian(nc *compile.NumericCircuit, v []complex128, pvpq, pq []int) [][]float64 {
	n := nc.N()
	ibus := nc.Ybus.MatVec(v)
	for i := range ibus {
		ibus[i] -= nc.Ibus[i]
	}

	vnorm := make([]complex128, n)
	for i, vi := range v {
		if a := cmplx.Abs(vi); a > 0 {
			vnorm[i] = vi / complex(a, 0)
		}
	}

	colAngle := make(map[int]int, len(pvpq))
	for i, b := range pvpq {
		colAngle[b] = i
	}
	colMag := make(map[int]int, len(pq))
	for i, b := range pq {
		colMag[b] = i
	}

	size := len(pvpq) + len(pq)
	J := make([][]float64, size)
	for i := range J {
		J[i] = make([]float64, size)
	}

	y := nc.Ybus
	for col := 0; col < n; col++ {
		cA, hasA := colAngle[col]
		cM, hasM := colMag[col]
		if !hasA && !hasM {
			continue
		}
		for k := y.ColPtr[col]; k < y.ColPtr[col+1]; k++ {
			row := y.RowIdx[k]
			yij := y.Val[k]

			rA, hasRA := colAngle[row]
			rM, hasRM := colMag[row]
			if !hasRA && !hasRM {
				continue
			}

			var dVa, dVm complex128
			if row == col {
				dVa = complex(0, 1) * v[row] * cmplx.Conj(ibus[row]-yij*v[col])
				dVm = v[row]*cmplx.Conj(yij*vnorm[col]) + cmplx.Conj(ibus[row])*vnorm[row]
			} else {
				dVa = -complex(0, 1) * v[row] * cmplx.Conj(yij) * cmplx.Conj(v[col])
				dVm = v[row] * cmplx.Conj(yij) * cmplx.Conj(vnorm[col])
			}

			if hasA {
				if hasRA {
					J[rA][cA] += real(dVa)
				}
				if hasRM {
					J[len(pvpq)+rM][cA] += imag(dVa)
				}
			}
			if hasM {
				if hasRA {
					J[rA][len(pvpq)+cM] += real(dVm)
				}
				if hasRM {
					J[len(pvpq)+rM][len(pvpq)+cM] += imag(dVm)
				}
			}
		}
	}

	return J
}

// denseSolve solves A x = b by Gaussian elimination with partial pivoting.
func denseSolve(a [][]float64, b []float64) []float64 {
	n := len(b)
	A := make([][]float64, n)
	for i := range A {
		A[i] = append([]float64(nil), a[i]...)
	}
	x := append([]float64(nil), b...)

	for col := 0; col < n; col++ {
		piv := col
		best := abs64(A[col][col])
		for r := col + 1; r < n; r++ {
			if m := abs64(A[r][col]); m > best {
				best, piv = m, r
			}
		}
		if piv != col {
			A[col], A[piv] = A[piv], A[col]
			x[col], x[piv] = x[piv], x[col]
		}
		pv := A[col][col]
		if pv == 0 {
			continue
		}
		for r := col + 1; r < n; r++ {
			factor := A[r][col] / pv
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				A[r][c] -= factor * A[col][c]
			}
			x[r] -= factor * x[col]
		}
	}

	for row := n - 1; row >= 0; row-- {
		sum := x[row]
		for c := row + 1; c < n; c++ {
			sum -= A[row][c] * x[c]
		}
		if A[row][row] != 0 {
			x[row] = sum / A[row][row]
		} else {
			x[row] = 0
		}
	}
	return x
}

func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
