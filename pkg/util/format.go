// Package util collects small formatting helpers for rendering power-flow
// quantities in engineering notation for CLI and log output.
package util

import (
	"fmt"
	"math"
	"math/cmplx"
)

// FormatPU renders a per-unit magnitude to four decimals.
func FormatPU(value float64) string {
	return fmt.Sprintf("%.4f pu", value)
}

// FormatDegrees renders a phase angle in radians as degrees.
func FormatDegrees(radians float64) string {
	return fmt.Sprintf("%6.2f deg", radians*180/math.Pi)
}

// FormatComplexPU renders a complex per-unit value as magnitude<angle.
func FormatComplexPU(v complex128) string {
	return fmt.Sprintf("%s<%s", FormatPU(cmplx.Abs(v)), FormatDegrees(cmplx.Phase(v)))
}

// FormatPowerPU renders a complex per-unit power as P+jQ in MW/MVAr at the
// given base.
func FormatPowerPU(s complex128, sbaseMVA float64) string {
	p := real(s) * sbaseMVA
	q := imag(s) * sbaseMVA
	sign := "+"
	if q < 0 {
		sign = "-"
		q = -q
	}
	return fmt.Sprintf("%.3f %sj%.3f MVA", p, sign, q)
}

// FormatLoadingPct renders a branch loading fraction as a percentage.
func FormatLoadingPct(loading float64) string {
	return fmt.Sprintf("%6.1f%%", loading*100)
}
