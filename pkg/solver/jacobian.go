package solver

import (
	"math/cmplx"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// dSdV returns the two N x N complex Jacobian blocks dS/dVa and dS/dVm,
// the 2x2 block matrix of dS/dθ and dS/d|V| following the standard
// derivation with the network current replaced by the net injection
// Inet = Ybus*V - Ibus (Ibus, the ZIP constant-current term, does not
// depend on V so it only shifts the diagonal):
//
//	Inet          = Ybus * V - Ibus
//	dSbus/dVa     = j * diag(V) * conj(diag(Inet) - Ybus*diag(V))
//	dSbus/dVm     = diag(V) * conj(Ybus*diag(V/|V|)) + conj(diag(Inet)) * diag(V/|V|)
func dSdV(nc *compile.NumericCircuit, v []complex128) (dSdVa, dSdVm *spmat.CSC) {
	n := nc.N()
	inet := nc.Ybus.MatVec(v)
	for i := range inet {
		inet[i] -= nc.Ibus[i]
	}

	vnorm := make([]complex128, n)
	for i, vi := range v {
		if a := cmplx.Abs(vi); a > 0 {
			vnorm[i] = vi / complex(a, 0)
		}
	}

	taVa := spmat.NewTriplet(n, n)
	taVm := spmat.NewTriplet(n, n)

	y := nc.Ybus
	for col := 0; col < n; col++ {
		for k := y.ColPtr[col]; k < y.ColPtr[col+1]; k++ {
			row := y.RowIdx[k]
			yij := y.Val[k]

			if row == col {
				// Diagonal: the diag(Inet) term folds in here too.
				taVa.Add(row, col, complex(0, 1)*v[row]*cmplx.Conj(inet[row]-yij*v[col]))
				taVm.Add(row, col, v[row]*cmplx.Conj(yij*vnorm[col])+cmplx.Conj(inet[row])*vnorm[row])
				continue
			}
			taVa.Add(row, col, -complex(0, 1)*v[row]*cmplx.Conj(yij)*cmplx.Conj(v[col]))
			taVm.Add(row, col, v[row]*cmplx.Conj(yij)*cmplx.Conj(vnorm[col]))
		}
	}

	return taVa.Freeze(), taVm.Freeze()
}

// BuildJacobian fills J (cleared first) with the real sparse Jacobian for
// the given pv/pq/pvpq index sets: rows are [real mismatch @ pvpq; imag
// mismatch @ pq], columns are [angle @ pvpq; magnitude @ pq]. J is owned by
// the caller and reused across iterations via Clear rather than
// reallocated.
func BuildJacobian(J *spmat.Matrix, nc *compile.NumericCircuit, v []complex128, pvpq, pq []int) error {
	dVa, dVm := dSdV(nc, v)

	npvpq, npq := len(pvpq), len(pq)

	colAngle := make(map[int]int, npvpq)
	for i, b := range pvpq {
		colAngle[b] = i
	}
	colMag := make(map[int]int, npq)
	for i, b := range pq {
		colMag[b] = i
	}
	// Row sets are the same buses as the column sets (pvpq for real
	// mismatch rows, pq for imag mismatch rows).
	rowReal := colAngle
	rowImag := colMag

	J.Clear()

	addBlock := func(mat *spmat.CSC, colMemb map[int]int, colOffset int) {
		for col := 0; col < mat.Cols; col++ {
			cIdx, ok := colMemb[col]
			if !ok {
				continue
			}
			for k := mat.ColPtr[col]; k < mat.ColPtr[col+1]; k++ {
				row := mat.RowIdx[k]
				val := mat.Val[k]
				if rIdx, ok := rowReal[row]; ok {
					J.AddElement(rIdx+1, colOffset+cIdx+1, real(val))
				}
				if rIdx, ok := rowImag[row]; ok {
					J.AddElement(npvpq+rIdx+1, colOffset+cIdx+1, imag(val))
				}
			}
		}
	}

	addBlock(dVa, colAngle, 0)
	addBlock(dVm, colMag, npvpq)

	return nil
}
