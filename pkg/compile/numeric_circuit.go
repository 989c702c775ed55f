package compile

import (
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// NumericCircuit is the solver-ready numeric snapshot of a Grid or one of
// its islands. It owns its own arrays and shares no mutable state with the
// device model it was compiled from.
type NumericCircuit struct {
	SbaseMVA float64

	// Bus-indexed arrays, length N (N = len(BusIDs)).
	BusIDs    []string // original Grid bus IDs, in island-local order
	GlobalBus []int    // island-local index -> Grid.Buses index

	Ybus    *spmat.CSC    // N x N
	Yseries *spmat.CSC    // N x N, shunts excluded
	Yshunt  []complex128  // length N, aggregated shunt admittance

	Sbus []complex128 // length N, p.u., generation minus load
	Ibus []complex128 // length N, p.u., ZIP current injections
	Vbus []complex128 // length N, initial voltage guess

	BusTypes []model.BusType // length N, compiled type

	Vmin, Vmax []float64 // length N, p.u.
	Qmin, Qmax []float64 // length N, MVAr aggregated then converted to p.u. by the solver

	// Branch-indexed arrays, length M.
	BranchIDs    []string
	GlobalBranch []int
	Yf, Yt       *spmat.CSC // M x N
	F, T         []int      // bus indices of each branch's ends
	BranchActive []bool
	BranchRate   []float64 // MVA

	// Warnings collects non-fatal diagnostics, e.g. a defaulted missing
	// branch rate.
	Warnings []string
}

// N returns the number of buses in this circuit.
func (nc *NumericCircuit) N() int { return len(nc.BusIDs) }

// M returns the number of branches in this circuit.
func (nc *NumericCircuit) M() int { return len(nc.BranchIDs) }

// BusIndices partitions bus-local indices into pv, pq, ref, and pvpq (their
// union). Buses of type NONE or STODispatch are excluded from all four
// sets; STODispatch buses are solved as PQ by the driver once dispatched
// (a dispatched battery behaves identically to a generator), so callers
// that need that behaviour should remap BusTypes before calling
// BusIndices.
func (nc *NumericCircuit) BusIndices() (pv, pq, ref, pvpq []int) {
	for i, t := range nc.BusTypes {
		switch t {
		case model.PV:
			pv = append(pv, i)
			pvpq = append(pvpq, i)
		case model.PQ:
			pq = append(pq, i)
			pvpq = append(pvpq, i)
		case model.REF:
			ref = append(ref, i)
		}
	}
	return
}
