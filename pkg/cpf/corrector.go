package cpf

import (
	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/solver"
)

// correct runs the augmented Newton corrector starting from
// predicted, driving both the power-flow mismatch and the parametrization
// constraint to zero. x0 is the last accepted point (needed by the
// ArcLength and PseudoArcLength constraints), tangentVec is the unit
// tangent used only by PseudoArcLength, and step is the signed predictor
// step length.
func correct(
	nc *compile.NumericCircuit,
	predicted, x0 state,
	tangentVec []float64,
	step float64,
	mode Parametrization,
	sbus0, direction []complex128,
	pvpq, pq []int,
	tol float64,
	maxIter int,
) (state, bool) {
	n := nc.N()
	size := len(pvpq) + len(pq)
	cur := predicted

	for iter := 0; iter < maxIter; iter++ {
		v := cur.toV(n)
		sbus := make([]complex128, n)
		for i := range sbus {
			sbus[i] = sbus0[i] + complex(cur.lambda, 0)*direction[i]
		}
		scalc := solver.Scalc(nc, v)
		f, normF := solver.Mismatch(scalc, sbus, pvpq, pq)

		g, gRow := constraintResidual(cur, x0, tangentVec, predicted.lambda, step, mode, pvpq, pq)
		if normF < tol && absF(g) < tol {
			return cur, true
		}

		J := denseJacobian(nc, v, pvpq, pq)
		aug := make([][]float64, size+1)
		rhs := make([]float64, size+1)
		for i := 0; i < size; i++ {
			aug[i] = append(append([]float64(nil), J[i]...), 0)
			aug[i][size] = dFdLambda(i, direction, pvpq, pq)
			rhs[i] = -f[i]
		}
		aug[size] = gRow
		rhs[size] = -g

		dx := denseSolve(aug, rhs)

		for i, b := range pvpq {
			cur.va[b] += dx[i]
		}
		for i, b := range pq {
			cur.vm[b] += dx[len(pvpq)+i]
		}
		cur.lambda += dx[size]
	}

	return cur, false
}

// dFdLambda returns -direction's real (pvpq rows) or imaginary (pq rows)
// component for mismatch row i, matching Mismatch's F = Re/Im(Scalc-Sbus).
func dFdLambda(i int, direction []complex128, pvpq, pq []int) float64 {
	if i < len(pvpq) {
		return -real(direction[pvpq[i]])
	}
	return -imag(direction[pq[i-len(pvpq)]])
}

// constraintResidual evaluates g(x) and its gradient row for the selected
// parametrization.
func constraintResidual(cur, x0 state, tangentVec []float64, lambdaTarget, step float64, mode Parametrization, pvpq, pq []int) (float64, []float64) {
	size := len(pvpq) + len(pq)
	row := make([]float64, size+1)

	switch mode {
	case Natural:
		row[size] = 1
		return cur.lambda - lambdaTarget, row

	case ArcLength:
		sumSq := 0.0
		for i, b := range pvpq {
			d := cur.va[b] - x0.va[b]
			sumSq += d * d
			row[i] = 2 * d
		}
		for i, b := range pq {
			d := cur.vm[b] - x0.vm[b]
			sumSq += d * d
			row[len(pvpq)+i] = 2 * d
		}
		dLambda := cur.lambda - x0.lambda
		sumSq += dLambda * dLambda
		row[size] = 2 * dLambda
		return sumSq - step*step, row

	default: // PseudoArcLength
		dot := 0.0
		for i, b := range pvpq {
			dot += tangentVec[i] * (cur.va[b] - x0.va[b])
			row[i] = tangentVec[i]
		}
		for i, b := range pq {
			dot += tangentVec[len(pvpq)+i] * (cur.vm[b] - x0.vm[b])
			row[len(pvpq)+i] = tangentVec[len(pvpq)+i]
		}
		dLambda := cur.lambda - x0.lambda
		dot += tangentVec[size] * dLambda
		row[size] = tangentVec[size]
		return dot - step, row
	}
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
