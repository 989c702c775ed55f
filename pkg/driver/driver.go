// Package driver orchestrates one grid's full power-flow run: compile,
// solve each island (retrying with a more robust kernel on non-convergence),
// then post-process branch flows.
package driver

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/pflog"
	"github.com/edp1096/gridflow/pkg/qcontrol"
	"github.com/edp1096/gridflow/pkg/solver"
)

// BusResult is one bus's solved state in physical units.
type BusResult struct {
	BusID    string
	V        complex128
	Vpu      float64
	AngleDeg float64
	PMW      float64
	QMVAr    float64
	Type     model.BusType
}

// BranchResult is one branch's flows and loading.
type BranchResult struct {
	BranchID   string
	Sf, St     complex128 // MVA, from/to end
	LossMW     float64
	LossMVAr   float64
	LoadingPct float64
	Active     bool
}

// Result is one grid's complete power-flow outcome.
type Result struct {
	Converged bool
	Buses     []BusResult
	Branches  []BranchResult
	Warnings  []string
	Switched  []string
}

// Options configures a Run call.
type Options struct {
	Kernel   solver.Type
	Solver   solver.Options
	QControl qcontrol.Options
	Logger   *pflog.Logger // optional; nil disables logging
}

// DefaultOptions returns NR with Q-control enabled.
func DefaultOptions() Options {
	return Options{
		Kernel:   solver.NR,
		Solver:   solver.DefaultOptions(),
		QControl: qcontrol.DefaultOptions(),
	}
}

func kernelFor(t solver.Type) solver.Kernel {
	switch t {
	case solver.DC:
		return solver.DCKernel{}
	case solver.HELM, solver.HELMZ:
		return solver.HELMKernel{}
	case solver.IWAMOTO:
		return solver.NRKernel{}
	default:
		return solver.NRKernel{}
	}
}

// retryChain lists the kernels tried in order for a single island: the
// requested kernel first, then Iwamoto-damped NR, then DC as a last-resort
// linear fallback that at least produces a voltage-angle profile.
func retryChain(requested solver.Type) []struct {
	kernel solver.Kernel
	opts   func(o solver.Options) solver.Options
} {
	chain := []struct {
		kernel solver.Kernel
		opts   func(o solver.Options) solver.Options
	}{
		{kernelFor(requested), func(o solver.Options) solver.Options {
			if requested == solver.IWAMOTO {
				o.Robustness = true
			}
			return o
		}},
	}
	if requested != solver.IWAMOTO {
		chain = append(chain, struct {
			kernel solver.Kernel
			opts   func(o solver.Options) solver.Options
		}{solver.NRKernel{}, func(o solver.Options) solver.Options { o.Robustness = true; return o }})
	}
	if requested != solver.DC {
		chain = append(chain, struct {
			kernel solver.Kernel
			opts   func(o solver.Options) solver.Options
		}{solver.DCKernel{}, func(o solver.Options) solver.Options { return o }})
	}
	return chain
}

// Run compiles grid and solves every island, falling back through
// retryChain when an island fails to converge.
func Run(ctx context.Context, grid *model.Grid, opts Options) (*Result, error) {
	compiled, err := compile.Compile(grid)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Errorf("compile failed", map[string]any{"grid": grid.Name, "error": err})
		}
		return nil, fmt.Errorf("driver: compile: %w", err)
	}
	for _, w := range compiled.Warnings {
		if opts.Logger != nil {
			opts.Logger.Warnf(w, nil)
		}
	}

	n := len(grid.Buses)
	v := make([]complex128, n)
	scalc := make([]complex128, n)
	busTypeFinal := make([]model.BusType, n)
	converged := true
	var switched []string

	for islIdx, isl := range compiled.Islands {
		// A battery dispatched as storage behaves like any other scheduled
		// injection once dispatch is decided; BusIndices only recognises
		// PV/PQ/REF, so STODispatch is remapped to PQ before solving.
		for i, t := range isl.BusTypes {
			if t == model.STODispatch {
				isl.BusTypes[i] = model.PQ
			}
		}

		var result qcontrol.Outcome
		var solveErr error
		for attempt, step := range retryChain(opts.Kernel) {
			result, solveErr = qcontrol.Run(ctx, isl, step.kernel, opts.QControl, step.opts(opts.Solver))
			if solveErr == nil && result.Converged {
				break
			}
			if opts.Logger != nil {
				opts.Logger.Warnf("island solve attempt failed", map[string]any{
					"island": islIdx, "attempt": attempt, "error": solveErr,
				})
			}
		}
		switched = append(switched, result.Switched...)
		if solveErr != nil || !result.Converged {
			converged = false
			if opts.Logger != nil {
				opts.Logger.Errorf("island failed to converge", map[string]any{"island": islIdx})
			}
		} else if opts.Logger != nil {
			opts.Logger.Infof("island converged", map[string]any{
				"island": islIdx, "iterations": result.Iterations, "normF": result.NormF,
			})
		}
		if result.V == nil {
			// No kernel in the chain produced a solution; leave flat voltage
			// so downstream post-processing doesn't panic on a nil slice.
			result.V = isl.Vbus
			result.Scalc = solver.Scalc(isl, result.V)
		}
		for li, gi := range isl.GlobalBus {
			v[gi] = result.V[li]
			scalc[gi] = result.Scalc[li]
			busTypeFinal[gi] = result.BusTypes[li]
		}
	}

	buses := make([]BusResult, n)
	for i, b := range grid.Buses {
		buses[i] = BusResult{
			BusID:    b.ID,
			V:        v[i],
			Vpu:      cmplx.Abs(v[i]),
			AngleDeg: cmplx.Phase(v[i]) * 180 / math.Pi,
			PMW:      real(scalc[i]) * grid.SbaseMVA,
			QMVAr:    imag(scalc[i]) * grid.SbaseMVA,
			Type:     busTypeFinal[i],
		}
	}

	branches := computeBranchFlows(compiled.Whole, v, grid.SbaseMVA)

	return &Result{
		Converged: converged,
		Buses:     buses,
		Branches:  branches,
		Warnings:  compiled.Warnings,
		Switched:  switched,
	}, nil
}

// computeBranchFlows evaluates Sf = Vf ⊙ conj(Yf·V), St = Vt ⊙ conj(Yt·V)
// for every branch of the whole-grid circuit using its Yf/Yt arrays,
// and derives losses and a thermal-rating loading percentage.
func computeBranchFlows(nc *compile.NumericCircuit, v []complex128, sbaseMVA float64) []BranchResult {
	m := nc.M()
	out := make([]BranchResult, m)

	ifFlow := nc.Yf.MatVec(v)
	itFlow := nc.Yt.MatVec(v)

	for b := 0; b < m; b++ {
		out[b].BranchID = nc.BranchIDs[b]
		out[b].Active = nc.BranchActive[b]
		if !nc.BranchActive[b] {
			continue
		}
		f, t := nc.F[b], nc.T[b]
		sf := v[f] * cmplx.Conj(ifFlow[b])
		st := v[t] * cmplx.Conj(itFlow[b])
		out[b].Sf = complex(real(sf)*sbaseMVA, imag(sf)*sbaseMVA)
		out[b].St = complex(real(st)*sbaseMVA, imag(st)*sbaseMVA)
		loss := sf + st
		out[b].LossMW = real(loss) * sbaseMVA
		out[b].LossMVAr = imag(loss) * sbaseMVA
		if rate := nc.BranchRate[b]; rate > 0 {
			flowMVA := cmplx.Abs(sf) * sbaseMVA
			if fromMVA := cmplx.Abs(st) * sbaseMVA; fromMVA > flowMVA {
				flowMVA = fromMVA
			}
			out[b].LoadingPct = flowMVA / rate
		}
	}
	return out
}
