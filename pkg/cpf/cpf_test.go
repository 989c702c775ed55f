package cpf_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/cpf"
	"github.com/edp1096/gridflow/pkg/model"
)

func twoBusWholeCircuit(t *testing.T) *compile.NumericCircuit {
	t.Helper()
	g := &model.Grid{Name: "cpf-two-bus", SbaseMVA: 100}
	g.Buses = append(g.Buses, model.NewBus("slack", 230), model.NewBus("load", 230))
	g.Buses[0].IsSlack = true
	g.Generators = append(g.Generators, model.ControlledGenerator{ID: "G1", BusID: "slack", Vset: 1.0})
	g.Loads = append(g.Loads, model.Load{ID: "Ld1", BusID: "load", Sc: complex(20, 5), Active: true})
	require.NoError(t, g.Index())

	f, to, err := g.BranchEndpoints("slack", "load")
	require.NoError(t, err)
	br := model.NewBranch("Br1", f, to, 0.02, 0.08)
	br.RateMVA = 100
	g.Branches = append(g.Branches, br)
	require.NoError(t, g.Index())

	res, err := compile.Compile(g)
	require.NoError(t, err)
	return res.Whole
}

func loadGrowthDirection(nc *compile.NumericCircuit) []complex128 {
	dir := make([]complex128, nc.N())
	for i, bt := range nc.BusTypes {
		if bt == model.PQ {
			dir[i] = complex(-0.1, -0.03)
		}
	}
	return dir
}

func TestRunTracesToNoseWithArcLengthParametrization(t *testing.T) {
	nc := twoBusWholeCircuit(t)
	opts := cpf.DefaultOptions()

	traj, err := cpf.Run(context.Background(), nc, loadGrowthDirection(nc), opts)
	require.NoError(t, err)
	require.NotEmpty(t, traj.Points)
	require.Equal(t, 0.0, traj.Points[0].Lambda)
	if traj.NoseIndex >= 0 {
		require.Greater(t, traj.NoseLambda, 0.0)
	}
}

func TestRunNaturalParametrizationCompletes(t *testing.T) {
	nc := twoBusWholeCircuit(t)
	opts := cpf.DefaultOptions()
	opts.Parametrization = cpf.Natural

	traj, err := cpf.Run(context.Background(), nc, loadGrowthDirection(nc), opts)
	require.NoError(t, err)
	require.NotEmpty(t, traj.Points)
}

func TestRunPseudoArcLengthParametrizationCompletes(t *testing.T) {
	nc := twoBusWholeCircuit(t)
	opts := cpf.DefaultOptions()
	opts.Parametrization = cpf.PseudoArcLength

	traj, err := cpf.Run(context.Background(), nc, loadGrowthDirection(nc), opts)
	require.NoError(t, err)
	require.NotEmpty(t, traj.Points)
}

func TestRunExtraOverloadsStopsOnBranchOverload(t *testing.T) {
	nc := twoBusWholeCircuit(t)
	opts := cpf.DefaultOptions()
	opts.StopCondition = cpf.ExtraOverloads
	opts.OverloadFactor = 0.1 // trivially low so the first steps already overload Br1

	traj, err := cpf.Run(context.Background(), nc, loadGrowthDirection(nc), opts)
	require.NoError(t, err)
	require.Contains(t, traj.StopReason, "exceeded")
}

func TestRunRespectsContextCancellation(t *testing.T) {
	nc := twoBusWholeCircuit(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	traj, err := cpf.Run(ctx, nc, loadGrowthDirection(nc), cpf.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, "cancelled", traj.StopReason)
}

func TestRunWithDistributedSlackRedistributesGeneration(t *testing.T) {
	g := &model.Grid{Name: "cpf-pv", SbaseMVA: 100}
	g.Buses = append(g.Buses, model.NewBus("slack", 230), model.NewBus("pv", 230), model.NewBus("pq", 230))
	g.Buses[0].IsSlack = true
	g.Generators = append(g.Generators,
		model.ControlledGenerator{ID: "G1", BusID: "slack", Vset: 1.0},
		model.ControlledGenerator{ID: "G2", BusID: "pv", Vset: 1.02, P: 20, Qmin: -10, Qmax: 10, Active: true},
	)
	g.Loads = append(g.Loads, model.Load{ID: "Ld1", BusID: "pq", Sc: complex(15, 4), Active: true})
	require.NoError(t, g.Index())
	f1, t1, err := g.BranchEndpoints("slack", "pv")
	require.NoError(t, err)
	f2, t2, err := g.BranchEndpoints("pv", "pq")
	require.NoError(t, err)
	g.Branches = append(g.Branches,
		model.NewBranch("Br1", f1, t1, 0.01, 0.1),
		model.NewBranch("Br2", f2, t2, 0.01, 0.1),
	)
	require.NoError(t, g.Index())

	res, err := compile.Compile(g)
	require.NoError(t, err)
	nc := res.Whole

	opts := cpf.DefaultOptions()
	opts.DistributedSlack = true
	traj, err := cpf.Run(context.Background(), nc, loadGrowthDirection(nc), opts)
	require.NoError(t, err)
	require.NotEmpty(t, traj.Points)
}
