package cpf

import (
	"context"
	"fmt"
	"math/cmplx"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/compile"
)

// Run traces the continuation power-flow curve starting from nc's
// precompiled flat/base-case solution, increasing lambda along direction
// (a per-bus p.u. injection-growth vector: negative at load buses, and, if
// opts.DistributedSlack is set, matched by added generation on the PV
// buses by a Qmax-Qmin participation factor so the increase isn't absorbed
// by the slack bus alone; REF buses get no share).
func Run(ctx context.Context, nc *compile.NumericCircuit, direction []complex128, opts Options) (*Trajectory, error) {
	n := nc.N()
	pv, pq, _, pvpq := nc.BusIndices()

	dir := append([]complex128(nil), direction...)
	if opts.DistributedSlack {
		applyParticipation(nc, dir, pv)
	}

	sbus0 := append([]complex128(nil), nc.Sbus...)
	v0 := append([]complex128(nil), nc.Vbus...)

	cur := state{va: make([]float64, n), vm: make([]float64, n), lambda: 0}
	for i, v := range v0 {
		cur.va[i] = cmplx.Phase(v)
		cur.vm[i] = cmplx.Abs(v)
	}

	step := opts.InitialStep
	if step == 0 {
		step = consts.DefaultCpfInitialStep
	}
	stepMin := opts.StepMin
	if stepMin == 0 {
		stepMin = consts.DefaultCpfStepMin
	}
	stepMax := opts.StepMax
	if stepMax == 0 {
		stepMax = consts.DefaultCpfStepMax
	}
	accel := opts.Acceleration
	if accel == 0 {
		accel = consts.DefaultCpfAcceleration
	}
	tol := opts.CorrectorTol
	if tol == 0 {
		tol = consts.DefaultCpfCorrectorTol
	}
	maxIter := opts.MaxCorrectorIter
	if maxIter == 0 {
		maxIter = consts.DefaultCpfMaxCorrectorIt
	}
	maxSteps := opts.MaxContinuationSteps
	if maxSteps == 0 {
		maxSteps = 200
	}

	traj := &Trajectory{Points: []Point{{Lambda: 0, V: cur.toV(n)}}}
	prevLambda := cur.lambda
	noseIndex := -1

	for k := 0; k < maxSteps; k++ {
		select {
		case <-ctx.Done():
			traj.StopReason = "cancelled"
			return traj, nil
		default:
		}

		t := tangent(nc, cur, dir, pvpq, pq)
		pred := predict(cur, t, step, pvpq, pq)

		next, ok := correct(nc, pred, cur, t, step, opts.Parametrization, sbus0, dir, pvpq, pq, tol, maxIter)
		if !ok {
			step *= accel
			if step < stepMin {
				traj.StopReason = "corrector failed to converge at minimum step"
				traj.Converged = len(traj.Points) > 1
				return traj, nil
			}
			continue
		}

		traj.Points = append(traj.Points, Point{Lambda: next.lambda, V: next.toV(n)})

		if noseIndex < 0 && next.lambda < prevLambda {
			noseIndex = len(traj.Points) - 2
			traj.NoseLambda = prevLambda
			traj.NoseIndex = noseIndex
		}
		prevLambda = next.lambda
		cur = next

		if stop, reason := checkStop(nc, cur, opts, noseIndex, len(traj.Points)); stop {
			traj.StopReason = reason
			traj.Converged = true
			return traj, nil
		}

		// Grow the step back toward the maximum after consecutive successes.
		step /= accel
		if step > stepMax {
			step = stepMax
		}
	}

	traj.StopReason = fmt.Sprintf("reached maximum continuation steps (%d)", maxSteps)
	traj.Converged = noseIndex >= 0
	return traj, nil
}

func checkStop(nc *compile.NumericCircuit, cur state, opts Options, noseIndex, numPoints int) (bool, string) {
	switch opts.StopCondition {
	case Nose:
		if noseIndex >= 0 {
			return true, "reached nose point (maximum loadability)"
		}
	case Full:
		if noseIndex >= 0 && cur.lambda <= 0 {
			return true, "traced full curve back to lambda<=0 past the nose"
		}
	case ExtraOverloads:
		factor := opts.OverloadFactor
		if factor == 0 {
			factor = 1.0
		}
		v := cur.toV(nc.N())
		ifFlow := nc.Yf.MatVec(v)
		for b := 0; b < nc.M(); b++ {
			if !nc.BranchActive[b] || nc.BranchRate[b] <= 0 {
				continue
			}
			sf := v[nc.F[b]] * cmplx.Conj(ifFlow[b])
			if cmplx.Abs(sf)*nc.SbaseMVA > factor*nc.BranchRate[b] {
				return true, fmt.Sprintf("branch %s exceeded %.0f%% of rating", nc.BranchIDs[b], factor*100)
			}
		}
	}
	return false, ""
}

// applyParticipation redistributes the generation-side response to dir's
// load growth across the PV buses by a Qmax-Qmin participation factor,
// leaving PQ- and REF-bus entries of dir untouched.
func applyParticipation(nc *compile.NumericCircuit, dir []complex128, pv []int) {
	var loadGrowth float64
	for _, s := range dir {
		loadGrowth -= real(s)
	}
	if loadGrowth <= 0 || len(pv) == 0 {
		return
	}
	total := 0.0
	weight := make([]float64, len(pv))
	for i, b := range pv {
		w := nc.Qmax[b] - nc.Qmin[b]
		if w <= 0 {
			w = 1
		}
		weight[i] = w
		total += w
	}
	if total == 0 {
		return
	}
	for i, b := range pv {
		dir[b] += complex(loadGrowth*weight[i]/total, 0)
	}
}
