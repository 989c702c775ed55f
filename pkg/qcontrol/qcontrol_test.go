package qcontrol_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/qcontrol"
	"github.com/edp1096/gridflow/pkg/solver"
)

// stubKernel returns a fixed sequence of results, one per call, so the
// outer Q-control loop's switching logic can be tested without depending
// on an actual power-flow solve converging to a specific Q value.
type stubKernel struct {
	results []solver.Result
	calls   int
}

func (k *stubKernel) Solve(ctx context.Context, nc *compile.NumericCircuit, opts solver.Options, v0 []complex128) (solver.Result, error) {
	r := k.results[k.calls]
	if k.calls < len(k.results)-1 {
		k.calls++
	}
	return r, nil
}

func threeBusCircuit(t *testing.T) *compile.NumericCircuit {
	t.Helper()
	g := &model.Grid{Name: "pv-test", SbaseMVA: 100}
	g.Buses = append(g.Buses, model.NewBus("slack", 230), model.NewBus("pv", 230), model.NewBus("pq", 230))
	g.Buses[0].IsSlack = true
	g.Generators = append(g.Generators,
		model.ControlledGenerator{ID: "G1", BusID: "slack", Vset: 1.0},
		model.ControlledGenerator{ID: "G2", BusID: "pv", Vset: 1.02, Qmin: -5, Qmax: 5, Active: true},
	)
	g.Loads = append(g.Loads, model.Load{ID: "Ld1", BusID: "pq", Sc: complex(50, 30), Active: true})
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
	return res.Islands[0]
}

func TestRunSwitchesPVToPQOnQMaxViolation(t *testing.T) {
	nc := threeBusCircuit(t)
	n := nc.N()

	violating := solver.Result{
		V:         append([]complex128(nil), nc.Vbus...),
		Converged: true,
		Scalc:     make([]complex128, n),
	}
	violating.Scalc[1] = complex(0.1, 0.12) // Q = 12 MVAr > Qmax(5 MVAr)/100 = 0.05 p.u.

	holding := solver.Result{
		V:         append([]complex128(nil), nc.Vbus...),
		Converged: true,
		Scalc:     make([]complex128, n),
	}
	holding.Scalc[1] = complex(0.1, 0.05)

	kernel := &stubKernel{results: []solver.Result{violating, holding}}

	outcome, err := qcontrol.Run(context.Background(), nc, kernel, qcontrol.DefaultOptions(), solver.DefaultOptions())
	require.NoError(t, err)
	require.Contains(t, outcome.Switched, "pv")
	require.Equal(t, model.PQ, outcome.BusTypes[1])
	require.Equal(t, model.PV, nc.BusTypes[1]) // the original circuit is never mutated
}

func TestRunOffModeSkipsQControl(t *testing.T) {
	nc := threeBusCircuit(t)
	n := nc.N()
	violating := solver.Result{
		V:         append([]complex128(nil), nc.Vbus...),
		Converged: true,
		Scalc:     make([]complex128, n),
	}
	violating.Scalc[1] = complex(0.1, 0.12)
	kernel := &stubKernel{results: []solver.Result{violating}}

	outcome, err := qcontrol.Run(context.Background(), nc, kernel, qcontrol.Options{Mode: qcontrol.Off}, solver.DefaultOptions())
	require.NoError(t, err)
	require.Empty(t, outcome.Switched)
	require.Equal(t, model.PV, outcome.BusTypes[1])
}
