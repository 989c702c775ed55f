package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/model"
)

func twoBusGrid() *model.Grid {
	g := &model.Grid{Name: "t", SbaseMVA: 100, FreqHz: 60}
	g.Buses = append(g.Buses, model.NewBus("slack", 230), model.NewBus("load", 230))
	g.Buses[0].IsSlack = true
	return g
}

func TestIndexResolvesDeviceBusReferences(t *testing.T) {
	g := twoBusGrid()
	g.Generators = append(g.Generators, model.ControlledGenerator{ID: "G1", BusID: "slack", P: 50, Vset: 1.0})
	g.Loads = append(g.Loads, model.Load{ID: "L1", BusID: "load", Sc: complex(40, 10)})

	require.NoError(t, g.Index())

	require.Equal(t, 0, g.Buses[0].Index)
	require.Equal(t, 1, g.Buses[1].Index)
	require.Equal(t, 0, g.Generators[0].Bus)
	require.Equal(t, 1, g.Loads[0].Bus)
	require.Equal(t, []int{0}, g.Buses[0].GeneratorIdx)
	require.Equal(t, []int{0}, g.Buses[1].LoadIdx)
}

func TestIndexRejectsDuplicateBusID(t *testing.T) {
	g := twoBusGrid()
	g.Buses = append(g.Buses, model.NewBus("slack", 230))

	err := g.Index()
	require.Error(t, err)
}

func TestIndexRejectsUnknownDeviceBusReference(t *testing.T) {
	g := twoBusGrid()
	g.Loads = append(g.Loads, model.Load{ID: "L1", BusID: "nowhere", Sc: complex(1, 0)})

	err := g.Index()
	require.Error(t, err)
}

func TestBranchEndpointsResolvesByID(t *testing.T) {
	g := twoBusGrid()
	require.NoError(t, g.Index())

	f, to, err := g.BranchEndpoints("slack", "load")
	require.NoError(t, err)
	require.Equal(t, 0, f)
	require.Equal(t, 1, to)

	_, _, err = g.BranchEndpoints("slack", "ghost")
	require.Error(t, err)
}

func TestIndexRejectsSelfLoopBranch(t *testing.T) {
	g := twoBusGrid()
	g.Branches = append(g.Branches, model.NewBranch("B1", 0, 0, 0.01, 0.1))

	err := g.Index()
	require.Error(t, err)
}
