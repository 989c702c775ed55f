package compile

import (
	"fmt"
	"math/cmplx"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/model"
	"github.com/edp1096/gridflow/pkg/spmat"
)

// assemble builds one NumericCircuit over the given global bus/branch index
// sets, applying the per-branch assembly rule and per-bus injection
// aggregation.
func assemble(g *model.Grid, sbaseMVA float64, busTypes []model.BusType, globalBuses, globalBranches []int) (*NumericCircuit, error) {
	n := len(globalBuses)
	localOf := make(map[int]int, n)
	for li, gi := range globalBuses {
		localOf[gi] = li
	}

	nc := &NumericCircuit{
		SbaseMVA:     sbaseMVA,
		BusIDs:       make([]string, n),
		GlobalBus:    append([]int(nil), globalBuses...),
		Sbus:         make([]complex128, n),
		Ibus:         make([]complex128, n),
		Vbus:         make([]complex128, n),
		BusTypes:     make([]model.BusType, n),
		Vmin:         make([]float64, n),
		Vmax:         make([]float64, n),
		Qmin:         make([]float64, n),
		Qmax:         make([]float64, n),
		Yshunt:       make([]complex128, n),
	}

	for li, gi := range globalBuses {
		b := g.Buses[gi]
		nc.BusIDs[li] = b.ID
		nc.BusTypes[li] = busTypes[gi]
		nc.Vmin[li] = b.VMin
		nc.Vmax[li] = b.VMax
		nc.Vbus[li] = cmplx.Rect(consts.DefaultVm0, consts.DefaultVa0)
	}

	// Injection aggregation: loads subtract, generation/battery/static-gen
	// add.
	for li, gi := range globalBuses {
		b := &g.Buses[gi]
		var sAgg complex128
		var iAgg complex128

		for _, li2 := range b.LoadIdx {
			l := g.Loads[li2]
			if !l.Active {
				continue
			}
			sAgg -= l.Sc / complex(sbaseMVA, 0)
			iAgg -= l.Ic
			// Constant-impedance component contributes to Yshunt, folded in
			// below once Vbus magnitude is known (flat-start => V=1 p.u.).
			if l.Zc != 0 {
				nc.Yshunt[li] += 1 / l.Zc
			}
		}
		for _, gi2 := range b.GeneratorIdx {
			gen := g.Generators[gi2]
			if !gen.Active {
				continue
			}
			sAgg += complex(gen.P, 0) / complex(sbaseMVA, 0)
			nc.Qmin[li] += gen.Qmin
			nc.Qmax[li] += gen.Qmax
			if mag := gen.Vset; mag != 0 {
				nc.Vbus[li] = complex(mag, 0)
			}
		}
		for _, bi2 := range b.BatteryIdx {
			bat := g.Batteries[bi2]
			if !bat.Active {
				continue
			}
			sAgg += complex(bat.P, 0) / complex(sbaseMVA, 0)
			nc.Qmin[li] += bat.Qmin
			nc.Qmax[li] += bat.Qmax
			if mag := bat.Vset; mag != 0 {
				nc.Vbus[li] = complex(mag, 0)
			}
		}
		for _, si := range b.StaticGenIdx {
			sg := g.StaticGenerators[si]
			if !sg.Active {
				continue
			}
			sAgg += sg.S / complex(sbaseMVA, 0)
		}
		for _, shi := range b.ShuntIdx {
			sh := g.Shunts[shi]
			if !sh.Active {
				continue
			}
			nc.Yshunt[li] += sh.Y
		}

		nc.Sbus[li] = sAgg
		nc.Ibus[li] = iAgg
	}

	ybusT := spmat.NewTriplet(n, n)
	yseriesT := spmat.NewTriplet(n, n)

	m := len(globalBranches)
	nc.BranchIDs = make([]string, 0, m)
	nc.GlobalBranch = make([]int, 0, m)
	nc.F = make([]int, 0, m)
	nc.T = make([]int, 0, m)
	nc.BranchActive = make([]bool, 0, m)
	nc.BranchRate = make([]float64, 0, m)

	yfT := spmat.NewTriplet(m, n)
	ytT := spmat.NewTriplet(m, n)

	for bLocal, gi := range globalBranches {
		br := g.Branches[gi]
		if !br.Active {
			nc.BranchIDs = append(nc.BranchIDs, br.ID)
			nc.GlobalBranch = append(nc.GlobalBranch, gi)
			nc.F = append(nc.F, localOf[br.From])
			nc.T = append(nc.T, localOf[br.To])
			nc.BranchActive = append(nc.BranchActive, false)
			nc.BranchRate = append(nc.BranchRate, br.RateMVA)
			continue
		}
		if br.ZeroImpedance() {
			return nil, &ZeroImpedanceBranchError{BranchID: br.ID}
		}

		f, t := localOf[br.From], localOf[br.To]

		z := br.Z()
		ysh := br.Ysh()
		tap := br.Tap()
		tapConj := cmplx.Conj(tap)

		ys := 1 / z
		yff := (ys + ysh/2) / (tap * tapConj)
		yft := -ys / tapConj
		ytf := -ys / tap
		ytt := ys + ysh/2

		// Ybus takes the series part here; the line-charging halves reach
		// its diagonal once, through Yshunt below.
		ybusT.Add(f, f, ys/(tap*tapConj))
		ybusT.Add(f, t, yft)
		ybusT.Add(t, f, ytf)
		ybusT.Add(t, t, ys)

		yseriesT.Add(f, f, ys/(tap*tapConj))
		yseriesT.Add(f, t, -ys/tapConj)
		yseriesT.Add(t, f, -ys/tap)
		yseriesT.Add(t, t, ys)

		yfT.Add(bLocal, f, yff)
		yfT.Add(bLocal, t, yft)
		ytT.Add(bLocal, f, ytf)
		ytT.Add(bLocal, t, ytt)

		nc.Yshunt[f] += ysh / 2 / (tap * tapConj)
		nc.Yshunt[t] += ysh / 2

		rate := br.RateMVA
		var warn string
		if rate == 0 {
			// Default rating: nominal voltage of the "from" bus at 1 p.u.
			// current, a conservative stand-in.
			rate = g.Buses[br.From].VNomKV * 1.0
			warn = fmt.Sprintf("branch %s has no thermal rating; defaulted to %g MVA", br.ID, rate)
		}
		if warn != "" {
			nc.Warnings = append(nc.Warnings, warn)
		}

		nc.BranchIDs = append(nc.BranchIDs, br.ID)
		nc.GlobalBranch = append(nc.GlobalBranch, gi)
		nc.F = append(nc.F, f)
		nc.T = append(nc.T, t)
		nc.BranchActive = append(nc.BranchActive, true)
		nc.BranchRate = append(nc.BranchRate, rate)
	}

	for i := range nc.Yshunt {
		ybusT.Add(i, i, nc.Yshunt[i])
	}

	nc.Ybus = ybusT.Freeze()
	nc.Yseries = yseriesT.Freeze()
	nc.Yf = yfT.Freeze()
	nc.Yt = ytT.Freeze()

	return nc, nil
}
