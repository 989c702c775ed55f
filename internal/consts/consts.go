// Package consts holds the small set of numeric defaults shared across the
// compiler and solver packages, so they aren't scattered as magic numbers.
package consts

const (
	DefaultSbaseMVA  = 100.0 // default system base power
	DefaultFreqHz    = 50.0
	DefaultVm0       = 1.0 // flat-start voltage magnitude, p.u.
	DefaultVa0       = 0.0 // flat-start voltage angle, rad

	DefaultTolerance    = 1e-8 // default NR/Iwamoto/HELM residual tolerance
	DefaultMaxIter      = 25   // default NR/Iwamoto max iterations
	DefaultMaxOuterIter = 20   // default Q-control outer-iteration cap

	DefaultHelmMaxCoeffs = 30 // default HELM series-coefficient count

	// CPF defaults.
	DefaultCpfInitialStep    = 0.05
	DefaultCpfStepMin        = 0.01
	DefaultCpfStepMax        = 0.2
	DefaultCpfErrorTol       = 1e-3
	DefaultCpfCorrectorTol   = 1e-6
	DefaultCpfMaxCorrectorIt = 10
	DefaultCpfAcceleration   = 0.5
)
