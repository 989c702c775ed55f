package compile

import "fmt"

// ZeroImpedanceBranchError is fatal at compile time: an active branch with
// r+jx == 0 would divide by zero when its series admittance is derived.
type ZeroImpedanceBranchError struct {
	BranchID string
}

func (e *ZeroImpedanceBranchError) Error() string {
	return fmt.Sprintf("compile: branch %q has zero series impedance", e.BranchID)
}

// ConflictingVSetpointError is fatal at compile time: every voltage-
// controlling device on a bus must agree on Vset.
type ConflictingVSetpointError struct {
	BusID string
	First float64
	Other float64
}

func (e *ConflictingVSetpointError) Error() string {
	return fmt.Sprintf("compile: bus %q has conflicting voltage set-points (%g vs %g)", e.BusID, e.First, e.Other)
}

// NoSlackPossibleError names the first island found with no bus that can
// serve as slack. Compile returns it and produces no Result, so the other
// islands are not compiled or solved either.
type NoSlackPossibleError struct {
	IslandID int
}

func (e *NoSlackPossibleError) Error() string {
	return fmt.Sprintf("compile: island %d has no bus that can serve as slack", e.IslandID)
}

// NaNInputError is fatal at compile time: NaN/Inf in any input field would
// poison every downstream matrix it touches.
type NaNInputError struct {
	Field string
}

func (e *NaNInputError) Error() string {
	return fmt.Sprintf("compile: non-finite value in field %q", e.Field)
}
