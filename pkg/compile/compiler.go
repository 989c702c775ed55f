// Package compile turns a device-oriented model.Grid into the sparse
// numeric matrices power-flow kernels need, splitting disconnected
// components into independent islands.
package compile

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// Result is the output of Compile: the whole-grid circuit plus one
// NumericCircuit per island.
type Result struct {
	Whole    *NumericCircuit
	Islands  []*NumericCircuit
	Warnings []string
}

// Compile converts grid into a Result. grid.Index must have been called
// already (pkg/gridfile and hand-built Grids both call it). Sbase defaults
// to grid.SbaseMVA.
func Compile(grid *model.Grid) (*Result, error) {
	if err := validateFinite(grid); err != nil {
		return nil, err
	}

	sbase := grid.SbaseMVA
	if sbase == 0 {
		sbase = consts.DefaultSbaseMVA
	}

	busTypes, warnings, err := compileBusTypes(grid)
	if err != nil {
		return nil, err
	}

	whole, err := assemble(grid, sbase, busTypes, allIndices(len(grid.Buses)), allIndices(len(grid.Branches)))
	if err != nil {
		return nil, err
	}
	whole.Warnings = append(append([]string(nil), warnings...), whole.Warnings...)

	islands := findIslands(grid)
	results := make([]*NumericCircuit, 0, len(islands))
	for idx, isl := range islands {
		nc, err := assemble(grid, sbase, busTypes, isl.buses, isl.branches)
		if err != nil {
			return nil, err
		}
		if err := ensureSlack(nc, idx, len(isl.buses)); err != nil {
			return nil, err
		}
		results = append(results, nc)
	}

	return &Result{Whole: whole, Islands: results, Warnings: warnings}, nil
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// validateFinite rejects NaN/Inf anywhere a numeric field is solver-visible.
func validateFinite(g *model.Grid) error {
	check := func(field string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NaNInputError{Field: field}
		}
		return nil
	}
	for _, b := range g.Branches {
		if err := check(fmt.Sprintf("branch %s R", b.ID), b.R); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("branch %s X", b.ID), b.X); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("branch %s G", b.ID), b.G); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("branch %s B", b.ID), b.B); err != nil {
			return err
		}
	}
	for _, l := range g.Loads {
		if cmplx.IsNaN(l.Sc) || cmplx.IsInf(l.Sc) {
			return &NaNInputError{Field: fmt.Sprintf("load %s Sc", l.ID)}
		}
	}
	for _, gen := range g.Generators {
		if err := check(fmt.Sprintf("generator %s P", gen.ID), gen.P); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("generator %s Vset", gen.ID), gen.Vset); err != nil {
			return err
		}
	}
	return nil
}

// compileBusTypes applies the bus-type decision table and the
// per-bus Vset-conflict check (Qmin/Qmax aggregation happens in assemble).
// It operates on
// the whole grid since "no REF after all" promotion is a whole-grid
// (actually per-island, but islands aren't known yet) fallback; the
// per-island slack check happens later in ensureSlack once islands are
// known, re-promoting within each island if necessary.
func compileBusTypes(g *model.Grid) ([]model.BusType, []string, error) {
	n := len(g.Buses)
	types := make([]model.BusType, n)
	vsetSeen := make([]bool, n)
	vsetVal := make([]float64, n)
	injMag := make([]float64, n) // |S| of attached generation, for the max-|S| promotion rule

	hasVCtrl := make([]bool, n)
	isSTO := make([]bool, n)

	setVset := func(busIdx int, id string, v float64) error {
		if vsetSeen[busIdx] && vsetVal[busIdx] != v {
			return &ConflictingVSetpointError{BusID: g.Buses[busIdx].ID, First: vsetVal[busIdx], Other: v}
		}
		vsetSeen[busIdx] = true
		vsetVal[busIdx] = v
		return nil
	}

	for _, gen := range g.Generators {
		if !gen.Active {
			continue
		}
		hasVCtrl[gen.Bus] = true
		if err := setVset(gen.Bus, gen.ID, gen.Vset); err != nil {
			return nil, nil, err
		}
		injMag[gen.Bus] += math.Hypot(gen.P, math.Max(math.Abs(gen.Qmax), math.Abs(gen.Qmin)))
	}
	for _, bat := range g.Batteries {
		if !bat.Active {
			continue
		}
		hasVCtrl[bat.Bus] = true
		if bat.DispatchStorage {
			isSTO[bat.Bus] = true
		}
		if err := setVset(bat.Bus, bat.ID, bat.Vset); err != nil {
			return nil, nil, err
		}
		injMag[bat.Bus] += math.Hypot(bat.P, math.Max(math.Abs(bat.Qmax), math.Abs(bat.Qmin)))
	}

	bestPVBus, bestPVMag := -1, -1.0
	for i := 0; i < n; i++ {
		switch {
		case hasVCtrl[i] && g.Buses[i].IsSlack:
			types[i] = model.REF
		case hasVCtrl[i] && isSTO[i]:
			types[i] = model.STODispatch
		case hasVCtrl[i]:
			types[i] = model.PV
			if injMag[i] > bestPVMag {
				bestPVBus, bestPVMag = i, injMag[i]
			}
		case g.Buses[i].IsSlack:
			types[i] = model.REF
		default:
			types[i] = model.PQ
		}
		if !g.Buses[i].Active {
			types[i] = model.NONE
		}
	}

	var warnings []string
	haveRef := false
	for _, t := range types {
		if t == model.REF {
			haveRef = true
			break
		}
	}
	if !haveRef && bestPVBus >= 0 {
		types[bestPVBus] = model.REF
		warnings = append(warnings, fmt.Sprintf("no slack bus specified; promoted %s (largest scheduled injection) to REF", g.Buses[bestPVBus].ID))
	}

	return types, warnings, nil
}

// ensureSlack re-checks, per island, that exactly one REF bus exists once
// islands are known; an island with PV buses but no REF (e.g. because the
// whole-grid promotion landed its one slack in a different island) gets its
// own largest-|S| PV bus promoted. An island with neither a REF nor a PV
// bus, and more than one bus, fails with NoSlackPossibleError.
func ensureSlack(nc *NumericCircuit, islandIdx, size int) error {
	haveRef := false
	bestLocal, bestMag := -1, -1.0
	for i, t := range nc.BusTypes {
		if t == model.REF {
			haveRef = true
		}
		if t == model.PV {
			mag := cmplx.Abs(nc.Sbus[i])
			if mag > bestMag {
				bestLocal, bestMag = i, mag
			}
		}
	}
	if haveRef {
		return nil
	}
	if bestLocal >= 0 {
		nc.BusTypes[bestLocal] = model.REF
		return nil
	}
	if size <= 1 {
		// A single isolated bus with no injection solves trivially;
		// no slack is required.
		return nil
	}
	return &NoSlackPossibleError{IslandID: islandIdx}
}
