package model

// BusType is the compiled role of a bus in the power-flow equations. The
// numeric values match the wire/persistence convention fixed by the spec.
type BusType int

const (
	PQ          BusType = 1
	PV          BusType = 2
	REF         BusType = 3
	NONE        BusType = 4
	STODispatch BusType = 5
)

func (t BusType) String() string {
	switch t {
	case PQ:
		return "PQ"
	case PV:
		return "PV"
	case REF:
		return "REF"
	case NONE:
		return "NONE"
	case STODispatch:
		return "STO_DISPATCH"
	default:
		return "UNKNOWN"
	}
}

// Bus is a node of the network. It carries no bus type: the compiler derives
// one from the manual IsSlack hint and the attached devices.
type Bus struct {
	ID      string
	Index   int // position in Grid.Buses, assigned by Grid.Index
	VNomKV  float64
	VMin    float64 // p.u.
	VMax    float64 // p.u.
	Lat     float64
	Lon     float64
	IsSlack bool
	Active  bool

	// DeviceIndices is populated by Grid.Index: indices into the owning
	// slices (Loads, Generators, Batteries, StaticGenerators, Shunts) of
	// every device attached to this bus.
	LoadIdx      []int
	GeneratorIdx []int
	BatteryIdx   []int
	StaticGenIdx []int
	ShuntIdx     []int
}

// NewBus returns a Bus with the conventional p.u. voltage band and active
// by default.
func NewBus(id string, vNomKV float64) Bus {
	return Bus{
		ID:     id,
		VNomKV: vNomKV,
		VMin:   0.9,
		VMax:   1.1,
		Active: true,
	}
}
