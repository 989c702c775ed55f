package compile_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/model"
)

func twoBusGrid(t *testing.T) *model.Grid {
	t.Helper()
	g := &model.Grid{Name: "two-bus", SbaseMVA: 100, FreqHz: 60}
	g.Buses = append(g.Buses, model.NewBus("slack", 230), model.NewBus("load", 230))
	g.Buses[0].IsSlack = true
	g.Generators = append(g.Generators, model.ControlledGenerator{ID: "G1", BusID: "slack", Vset: 1.0, Active: true})
	g.Loads = append(g.Loads, model.Load{ID: "Ld1", BusID: "load", Sc: complex(50, 20), Active: true})

	require.NoError(t, g.Index())

	f, to, err := g.BranchEndpoints("slack", "load")
	require.NoError(t, err)
	br := model.NewBranch("Br1", f, to, 0.01, 0.1)
	br.RateMVA = 100
	g.Branches = append(g.Branches, br)
	require.NoError(t, g.Index())
	return g
}

func TestCompileTwoBusAssignsREFAndPQ(t *testing.T) {
	g := twoBusGrid(t)

	res, err := compile.Compile(g)
	require.NoError(t, err)
	require.Len(t, res.Islands, 1)

	nc := res.Whole
	require.Equal(t, model.REF, nc.BusTypes[0])
	require.Equal(t, model.PQ, nc.BusTypes[1])
	require.InDelta(t, -0.5, real(nc.Sbus[1]), 1e-12)
	require.InDelta(t, -0.2, imag(nc.Sbus[1]), 1e-12)
}

func TestCompileRejectsZeroImpedanceBranch(t *testing.T) {
	g := twoBusGrid(t)
	g.Branches[0].R = 0
	g.Branches[0].X = 0

	_, err := compile.Compile(g)
	require.Error(t, err)
	var zie *compile.ZeroImpedanceBranchError
	require.ErrorAs(t, err, &zie)
}

func TestCompileRejectsConflictingVSet(t *testing.T) {
	g := twoBusGrid(t)
	g.Generators = append(g.Generators, model.ControlledGenerator{ID: "G2", BusID: "slack", Vset: 1.02, Active: true})
	require.NoError(t, g.Index())

	_, err := compile.Compile(g)
	require.Error(t, err)
	var cv *compile.ConflictingVSetpointError
	require.ErrorAs(t, err, &cv)
}

func TestCompileRejectsNaNInput(t *testing.T) {
	g := twoBusGrid(t)
	g.Branches[0].R = math.NaN()

	_, err := compile.Compile(g)
	require.Error(t, err)
	var ni *compile.NaNInputError
	require.ErrorAs(t, err, &ni)
}

func TestCompilePromotesLargestPVWhenNoSlackDeclared(t *testing.T) {
	g := &model.Grid{Name: "no-slack", SbaseMVA: 100}
	g.Buses = append(g.Buses, model.NewBus("b1", 230), model.NewBus("b2", 230))
	g.Generators = append(g.Generators,
		model.ControlledGenerator{ID: "G1", BusID: "b1", P: 10, Vset: 1.0, Active: true},
		model.ControlledGenerator{ID: "G2", BusID: "b2", P: 50, Vset: 1.0, Active: true},
	)
	require.NoError(t, g.Index())
	f, to, err := g.BranchEndpoints("b1", "b2")
	require.NoError(t, err)
	g.Branches = append(g.Branches, model.NewBranch("Br1", f, to, 0.01, 0.1))
	require.NoError(t, g.Index())

	res, err := compile.Compile(g)
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	require.Equal(t, model.REF, res.Whole.BusTypes[1]) // b2 has the larger injection
	require.Equal(t, model.PV, res.Whole.BusTypes[0])
}

func TestCompilePartitionsDisconnectedIslands(t *testing.T) {
	g := &model.Grid{Name: "two-islands", SbaseMVA: 100}
	g.Buses = append(g.Buses,
		model.NewBus("a1", 230), model.NewBus("a2", 230),
		model.NewBus("b1", 230), model.NewBus("b2", 230),
	)
	g.Buses[0].IsSlack = true
	g.Buses[2].IsSlack = true
	g.Generators = append(g.Generators,
		model.ControlledGenerator{ID: "GA", BusID: "a1", Vset: 1.0},
		model.ControlledGenerator{ID: "GB", BusID: "b1", Vset: 1.0},
	)
	g.Loads = append(g.Loads,
		model.Load{ID: "LA", BusID: "a2", Sc: complex(10, 2), Active: true},
		model.Load{ID: "LB", BusID: "b2", Sc: complex(20, 4), Active: true},
	)
	require.NoError(t, g.Index())

	fa, ta, err := g.BranchEndpoints("a1", "a2")
	require.NoError(t, err)
	fb, tb, err := g.BranchEndpoints("b1", "b2")
	require.NoError(t, err)
	g.Branches = append(g.Branches, model.NewBranch("BrA", fa, ta, 0.01, 0.1), model.NewBranch("BrB", fb, tb, 0.01, 0.1))
	require.NoError(t, g.Index())

	res, err := compile.Compile(g)
	require.NoError(t, err)
	require.Len(t, res.Islands, 2)
	for _, isl := range res.Islands {
		require.Len(t, isl.BusIDs, 2)
	}
}

func TestCompileSingletonBusNeedsNoSlack(t *testing.T) {
	g := &model.Grid{Name: "singleton", SbaseMVA: 100}
	g.Buses = append(g.Buses, model.NewBus("lonely", 230))
	require.NoError(t, g.Index())

	res, err := compile.Compile(g)
	require.NoError(t, err)
	require.Len(t, res.Islands, 1)
}
