// Package qcontrol implements the PV/PQ reactive-limit control switching
// outer loop around a single solver.Kernel invocation.
package qcontrol

import (
	"context"
	"math/cmplx"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/solver"
)

// Mode selects whether Run enforces Q-limits at all.
type Mode int

const (
	Off Mode = iota
	Direct
)

// Options configures the outer loop in addition to the inner kernel's own
// solver.Options.
type Options struct {
	Mode         Mode
	MaxOuterIter int
}

// DefaultOptions returns a 20-outer-iteration cap with direct Q control on.
func DefaultOptions() Options {
	return Options{Mode: Direct, MaxOuterIter: consts.DefaultMaxOuterIter}
}

// Outcome is the final result plus a record of every PV->PQ switch
// performed, for diagnostics.
type Outcome struct {
	solver.Result
	OuterIterations int
	Switched        []string        // bus IDs fixed at a Q-limit
	BusTypes        []model.BusType // bus types after any switching, length N
}

// Run repeatedly invokes kernel.Solve, and after each converged solve,
// checks every PV bus's computed reactive injection against [Qmin,Qmax].
// A bus that violates its limit is switched to PQ with Q clamped at the
// violated bound and the kernel is re-run; a previously-switched bus
// switches back to PV when its solved voltage magnitude lies outside
// [Vmin,Vmax]. A switched bus is not released when its reactive injection
// comes back inside [Qmin,Qmax].
//
// nc itself is never mutated: bus types and Sbus are tracked on a local
// working copy passed to the kernel, keeping nc a stable, reusable
// snapshot across repeated Run calls (e.g. driver's retry chain).
func Run(ctx context.Context, nc *compile.NumericCircuit, kernel solver.Kernel, outer Options, inner solver.Options) (Outcome, error) {
	if outer.Mode == Off {
		res, err := kernel.Solve(ctx, nc, inner, nil)
		return Outcome{Result: res, BusTypes: append([]model.BusType(nil), nc.BusTypes...)}, err
	}

	maxOuter := outer.MaxOuterIter
	if maxOuter == 0 {
		maxOuter = consts.DefaultMaxOuterIter
	}

	work := *nc
	work.BusTypes = append([]model.BusType(nil), nc.BusTypes...)
	work.Sbus = append([]complex128(nil), nc.Sbus...)

	originalType := append([]model.BusType(nil), nc.BusTypes...)
	fixed := make(map[int]bool)
	var switched []string

	var last solver.Result
	var v0 []complex128

	for pass := 0; pass < maxOuter; pass++ {
		res, err := kernel.Solve(ctx, &work, inner, v0)
		if err != nil {
			return Outcome{Result: res, OuterIterations: pass + 1, Switched: switched, BusTypes: work.BusTypes}, err
		}
		last = res
		v0 = res.V
		if !res.Converged || res.Cancelled {
			return Outcome{Result: res, OuterIterations: pass + 1, Switched: switched, BusTypes: work.BusTypes}, nil
		}

		changed := false
		for i, bt := range originalType {
			if bt != model.PV {
				continue
			}
			qPU := imag(res.Scalc[i])
			qminPU, qmaxPU := nc.Qmin[i]/nc.SbaseMVA, nc.Qmax[i]/nc.SbaseMVA
			switch {
			case !fixed[i] && (qPU < qminPU || qPU > qmaxPU):
				limit := qmaxPU
				if qPU < qminPU {
					limit = qminPU
				}
				work.BusTypes[i] = model.PQ
				work.Sbus[i] = complex(real(work.Sbus[i]), limit)
				fixed[i] = true
				switched = append(switched, nc.BusIDs[i])
				changed = true
			case fixed[i]:
				vm := cmplx.Abs(res.V[i])
				if vm < nc.Vmin[i] || vm > nc.Vmax[i] {
					// Holding Q at its limit cannot satisfy the bus's
					// voltage band; release it back to PV.
					work.BusTypes[i] = model.PV
					fixed[i] = false
					changed = true
				}
			}
		}

		if !changed {
			return Outcome{Result: res, OuterIterations: pass + 1, Switched: switched, BusTypes: work.BusTypes}, nil
		}
	}

	return Outcome{Result: last, OuterIterations: maxOuter, Switched: switched, BusTypes: work.BusTypes}, nil
}
