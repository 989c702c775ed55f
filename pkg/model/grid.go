package model

import "fmt"

// Grid exclusively owns its buses; each bus exclusively owns the devices
// attached to it, referenced by arena-allocated integer index rather than
// pointer, so the whole model stays free of reference cycles. Branches
// reference buses non-owning, by index.
type Grid struct {
	Name string

	Buses    []Bus
	Branches []Branch

	Loads            []Load
	Generators       []ControlledGenerator
	Batteries        []Battery
	StaticGenerators []StaticGenerator
	Shunts           []Shunt

	SbaseMVA float64
	FreqHz   float64

	// TimeIndexLen is the shared master time-index length every attached
	// Profile must match. Zero means no profiles.
	TimeIndexLen int

	busIndex map[string]int
}

// Index finalises a Grid built incrementally (e.g. by pkg/gridfile): it
// assigns Bus.Index, resolves every device's BusID to a Bus index, and
// populates each Bus's per-kind device-index slices. It must be called
// after all buses/devices have been appended, and before Compile; calling
// it again after further appends rebuilds the bookkeeping from scratch.
// It does not mutate device ownership, only integer bookkeeping.
func (g *Grid) Index() error {
	g.busIndex = make(map[string]int, len(g.Buses))
	for i := range g.Buses {
		g.Buses[i].Index = i
		g.Buses[i].LoadIdx = nil
		g.Buses[i].GeneratorIdx = nil
		g.Buses[i].BatteryIdx = nil
		g.Buses[i].StaticGenIdx = nil
		g.Buses[i].ShuntIdx = nil
		if _, dup := g.busIndex[g.Buses[i].ID]; dup {
			return fmt.Errorf("model: duplicate bus id %q", g.Buses[i].ID)
		}
		g.busIndex[g.Buses[i].ID] = i
	}

	resolve := func(busID string) (int, error) {
		idx, ok := g.busIndex[busID]
		if !ok {
			return 0, fmt.Errorf("model: unknown bus reference %q", busID)
		}
		return idx, nil
	}

	for i := range g.Branches {
		br := &g.Branches[i]
		if br.From < 0 || br.From >= len(g.Buses) || br.To < 0 || br.To >= len(g.Buses) {
			// Branches built by gridfile carry From/To already resolved as
			// indices; this guards hand-built grids that mistakenly left
			// bus IDs unresolved.
			return fmt.Errorf("model: branch %q has unresolved bus indices", br.ID)
		}
		if br.From == br.To {
			return fmt.Errorf("model: branch %q is a self-loop on bus %q", br.ID, g.Buses[br.From].ID)
		}
	}

	for i := range g.Loads {
		idx, err := resolve(g.Loads[i].BusID)
		if err != nil {
			return err
		}
		g.Loads[i].Bus = idx
		g.Buses[idx].LoadIdx = append(g.Buses[idx].LoadIdx, i)
	}
	for i := range g.Generators {
		idx, err := resolve(g.Generators[i].BusID)
		if err != nil {
			return err
		}
		g.Generators[i].Bus = idx
		g.Buses[idx].GeneratorIdx = append(g.Buses[idx].GeneratorIdx, i)
	}
	for i := range g.Batteries {
		idx, err := resolve(g.Batteries[i].BusID)
		if err != nil {
			return err
		}
		g.Batteries[i].Bus = idx
		g.Buses[idx].BatteryIdx = append(g.Buses[idx].BatteryIdx, i)
	}
	for i := range g.StaticGenerators {
		idx, err := resolve(g.StaticGenerators[i].BusID)
		if err != nil {
			return err
		}
		g.StaticGenerators[i].Bus = idx
		g.Buses[idx].StaticGenIdx = append(g.Buses[idx].StaticGenIdx, i)
	}
	for i := range g.Shunts {
		idx, err := resolve(g.Shunts[i].BusID)
		if err != nil {
			return err
		}
		g.Shunts[i].Bus = idx
		g.Buses[idx].ShuntIdx = append(g.Buses[idx].ShuntIdx, i)
	}

	return nil
}

// BusIndexOf returns the index of the bus with the given ID. Index must
// have been called already.
func (g *Grid) BusIndexOf(id string) (int, bool) {
	idx, ok := g.busIndex[id]
	return idx, ok
}

// BranchEndpoints resolves a branch's From/To bus IDs when constructing a
// Grid by hand from named references rather than pre-resolved indices.
func (g *Grid) BranchEndpoints(fromID, toID string) (int, int, error) {
	if g.busIndex == nil {
		g.busIndex = make(map[string]int, len(g.Buses))
		for i, b := range g.Buses {
			g.busIndex[b.ID] = i
		}
	}
	f, ok := g.busIndex[fromID]
	if !ok {
		return 0, 0, fmt.Errorf("model: unknown bus %q", fromID)
	}
	t, ok := g.busIndex[toID]
	if !ok {
		return 0, 0, fmt.Errorf("model: unknown bus %q", toID)
	}
	return f, t, nil
}
