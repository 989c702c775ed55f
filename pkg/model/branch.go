package model

import "math/cmplx"

// BranchKind distinguishes the physical variants a network edge can take.
// Only R/X/G/B/Tap/Rate/Active are solver-visible;
// anything a variant would add beyond that (HVDC firing angle, UPFC series
// injection) is a dynamic-control concern outside this module's scope.
type BranchKind int

const (
	Line BranchKind = iota
	Transformer
	DCLine
	VSC
	UPFC
)

// Branch is an edge between two buses: a line, transformer, DC line, VSC or
// UPFC. From/To are bus indices (Grid.Buses positions), not bus IDs.
type Branch struct {
	ID   string
	Kind BranchKind

	From, To int // bus index

	R, X float64 // series impedance, p.u.
	G, B float64 // total shunt admittance (line charging), p.u., halved at each end

	TapModule float64 // m
	TapAngle  float64 // theta, rad

	RateMVA float64
	Active  bool

	ImpedanceTolerance float64 // optional, 0 if unused
}

// NewBranch returns a Branch with tap = 1∠0 (no tap) and active by default.
func NewBranch(id string, from, to int, r, x float64) Branch {
	return Branch{
		ID:        id,
		Kind:      Line,
		From:      from,
		To:        to,
		R:         r,
		X:         x,
		TapModule: 1.0,
		Active:    true,
	}
}

// Tap returns the complex tap t = m * exp(-j*theta).
func (b Branch) Tap() complex128 {
	m := b.TapModule
	if m == 0 {
		m = 1.0
	}
	return complex(m, 0) * cmplx.Exp(complex(0, -b.TapAngle))
}

// Z returns the series impedance r + jx.
func (b Branch) Z() complex128 { return complex(b.R, b.X) }

// Ysh returns the total shunt admittance g + jb (to be halved at each end
// during branch-to-Ybus assembly).
func (b Branch) Ysh() complex128 { return complex(b.G, b.B) }

// ZeroImpedance reports whether r + jx == 0, the condition that is fatal
// at compile time (ZeroImpedanceBranchError) since it would divide by zero
// when deriving the series admittance.
func (b Branch) ZeroImpedance() bool { return b.R == 0 && b.X == 0 }
