package solver_test

import (
	"context"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/compile"
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/solver"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// twoBusCircuit compiles a slack+PQ-load two-bus system, the simplest
// non-trivial case every kernel must be able to solve.
func twoBusCircuit(t *testing.T) *compile.NumericCircuit {
	t.Helper()
	g := &model.Grid{Name: "two-bus", SbaseMVA: 100}
	g.Buses = append(g.Buses, model.NewBus("slack", 230), model.NewBus("load", 230))
	g.Buses[0].IsSlack = true
	g.Generators = append(g.Generators, model.ControlledGenerator{ID: "G1", BusID: "slack", Vset: 1.0})
	g.Loads = append(g.Loads, model.Load{ID: "Ld1", BusID: "load", Sc: complex(30, 10), Active: true})
	require.NoError(t, g.Index())

	f, to, err := g.BranchEndpoints("slack", "load")
	require.NoError(t, err)
	br := model.NewBranch("Br1", f, to, 0.02, 0.08)
	br.RateMVA = 100
	g.Branches = append(g.Branches, br)
	require.NoError(t, g.Index())

	res, err := compile.Compile(g)
	require.NoError(t, err)
	return res.Islands[0]
}

func TestNRKernelConvergesOnTwoBusSystem(t *testing.T) {
	nc := twoBusCircuit(t)
	res, err := solver.NRKernel{}.Solve(context.Background(), nc, solver.DefaultOptions(), nil)
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.Less(t, res.NormF, 1e-6)
	require.InDelta(t, 1.0, cmplx.Abs(res.V[0]), 1e-9) // slack holds its set-point exactly
}

func TestIwamotoNRKernelConvergesOnTwoBusSystem(t *testing.T) {
	nc := twoBusCircuit(t)
	opts := solver.DefaultOptions()
	opts.Robustness = true
	res, err := solver.NRKernel{}.Solve(context.Background(), nc, opts, nil)
	require.NoError(t, err)
	require.True(t, res.Converged)
}

func TestDCKernelProducesFlatMagnitudeAngles(t *testing.T) {
	nc := twoBusCircuit(t)
	res, err := solver.DCKernel{}.Solve(context.Background(), nc, solver.DefaultOptions(), nil)
	require.NoError(t, err)
	require.True(t, res.Converged)
	for _, v := range res.V {
		require.InDelta(t, 1.0, cmplx.Abs(v), 1e-12)
	}
}

func TestHELMKernelConvergesOnTwoBusSystem(t *testing.T) {
	nc := twoBusCircuit(t)
	res, err := solver.HELMKernel{}.Solve(context.Background(), nc, solver.DefaultOptions(), nil)
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.Less(t, res.NormF, 1e-4)
}

func TestNRKernelRespectsContextCancellation(t *testing.T) {
	nc := twoBusCircuit(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := solver.NRKernel{}.Solve(ctx, nc, solver.DefaultOptions(), nil)
	require.NoError(t, err)
	require.True(t, res.Cancelled)
	require.False(t, res.Converged)
}

func TestMismatchComputesResidualOnPVPQAndPQSets(t *testing.T) {
	scalc := []complex128{complex(1, 0.5), complex(0.8, 0.3), complex(0.2, -0.1)}
	sbus := []complex128{complex(1, 0.5), complex(0.7, 0.2), complex(0.3, -0.2)}
	pvpq := []int{1, 2}
	pq := []int{2}

	f, normInf := solver.Mismatch(scalc, sbus, pvpq, pq)
	require.Len(t, f, 3)
	require.InDelta(t, 0.1, f[0], 1e-12)  // Re(Scalc[1]-Sbus[1])
	require.InDelta(t, -0.1, f[1], 1e-12) // Re(Scalc[2]-Sbus[2])
	require.InDelta(t, 0.1, f[2], 1e-12)  // Im(Scalc[2]-Sbus[2])
	require.InDelta(t, 0.1, normInf, 1e-12)
}

func TestScalcMatchesVTimesConjYbusV(t *testing.T) {
	nc := twoBusCircuit(t)
	v := append([]complex128(nil), nc.Vbus...)
	scalc := solver.Scalc(nc, v)
	require.Len(t, scalc, nc.N())
	iv := nc.Ybus.MatVec(v)
	for i := range v {
		require.InDelta(t, 0.0, cmplx.Abs(scalc[i]-v[i]*cmplx.Conj(iv[i])), 1e-12)
	}
}

func TestBuildJacobianHasExpectedDimensions(t *testing.T) {
	nc := twoBusCircuit(t)
	_, pq, _, pvpq := nc.BusIndices()
	size := len(pvpq) + len(pq)
	J, err := spmat.New(size, false)
	require.NoError(t, err)
	defer J.Destroy()
	require.NoError(t, solver.BuildJacobian(J, nc, nc.Vbus, pvpq, pq))
	require.Equal(t, size, J.Size)
}
