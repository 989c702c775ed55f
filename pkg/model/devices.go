package model

// Load is a ZIP-model consumer attached to a bus: it subtracts its
// aggregate power from the bus's net injection.
type Load struct {
	ID    string
	BusID string
	Bus   int // bus index, set by Grid.Index

	Zc complex128 // constant impedance, p.u. on the system base (the compiler does no ohm conversion)
	Ic complex128 // constant current, p.u. on the system base (the compiler does no kA conversion)
	Sc complex128 // constant power, MVA

	Active bool
}

// ControlledGenerator is a dispatchable voltage-controlling generator.
type ControlledGenerator struct {
	ID    string
	BusID string
	Bus   int

	P    float64 // MW
	Vset float64 // p.u.
	Qmin float64 // MVAr
	Qmax float64 // MVAr
	Snom float64 // MVA

	Active bool
}

// Battery behaves exactly like ControlledGenerator for the solver, plus an
// energy capacity and an optional dispatch-as-storage flag which routes the
// compiled bus type to STODispatch instead of PV/REF.
type Battery struct {
	ControlledGenerator
	Enom            float64 // MWh
	DispatchStorage bool
}

// StaticGenerator is a pure complex-power injection; it never controls
// voltage.
type StaticGenerator struct {
	ID    string
	BusID string
	Bus   int

	S complex128 // MVA

	Active bool
}

// Shunt is a fixed complex admittance attached to a bus.
type Shunt struct {
	ID    string
	BusID string
	Bus   int

	Y complex128 // p.u. on the system base (the compiler does no siemens conversion)

	Active bool
}

// Profile is a time-indexed series of a device's state-carrying attribute.
// Real carries ZIP/P/Vset-style magnitudes, Complex carries S/Y-style
// values; exactly one of the two is populated. All profiles attached to a
// Grid must share Grid.TimeIndexLen.
type Profile struct {
	Real    []float64
	Complex []complex128
}

func (p Profile) Len() int {
	if p.Complex != nil {
		return len(p.Complex)
	}
	return len(p.Real)
}
