// Package cpf implements continuation power flow: a
// predictor-corrector trace of the power-flow solution manifold as a
// loading parameter lambda is increased, used to find maximum loadability
// (the "nose point") and, past it, the lower-voltage solution branch.
package cpf

import "github.com/edp1096/gridflow/internal/consts"

// Parametrization selects how the corrector's extra equation pins down the
// step along the solution curve.
type Parametrization int

const (
	Natural Parametrization = iota
	ArcLength
	PseudoArcLength
)

// StopCondition selects when Run halts the trace.
type StopCondition int

const (
	// Nose halts at the first accepted point whose lambda is lower than the
	// previous point's, i.e. the trace has passed the point of maximum
	// loadability.
	Nose StopCondition = iota
	// Full continues past the nose down the lower-voltage branch until
	// lambda returns to (or below) its starting value.
	Full
	// ExtraOverloads halts as soon as any branch's loading exceeds
	// OverloadFactor times its rating.
	ExtraOverloads
)

// Options configures a continuation run.
type Options struct {
	Parametrization      Parametrization
	StopCondition        StopCondition
	InitialStep          float64
	StepMin              float64
	StepMax              float64
	ErrorTol             float64 // not read by Run: the step adapts only through Acceleration, not through the predictor error
	CorrectorTol         float64 // infinity-norm residual tolerance
	MaxCorrectorIter     int
	Acceleration         float64 // step growth/shrink factor
	MaxContinuationSteps int
	DistributedSlack     bool    // spread lambda's generation increase across the PV buses by a Qmax-Qmin participation factor; REF buses get no share
	OverloadFactor       float64 // used only by ExtraOverloads, e.g. 1.0
}

// DefaultOptions returns the standard arc-length, nose-stopping defaults.
func DefaultOptions() Options {
	return Options{
		Parametrization:      ArcLength,
		StopCondition:        Nose,
		InitialStep:          consts.DefaultCpfInitialStep,
		StepMin:              consts.DefaultCpfStepMin,
		StepMax:              consts.DefaultCpfStepMax,
		ErrorTol:             consts.DefaultCpfErrorTol,
		CorrectorTol:         consts.DefaultCpfCorrectorTol,
		MaxCorrectorIter:     consts.DefaultCpfMaxCorrectorIt,
		Acceleration:         consts.DefaultCpfAcceleration,
		MaxContinuationSteps: 200,
		OverloadFactor:       1.0,
	}
}

// Point is one accepted sample of the continuation curve.
type Point struct {
	Lambda float64
	V      []complex128
}

// Trajectory is the full continuation trace plus its outcome.
type Trajectory struct {
	Points     []Point
	NoseLambda float64
	NoseIndex  int
	Converged  bool
	StopReason string
}
