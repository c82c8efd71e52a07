// Package mathutil provides rounding and finiteness helpers for masses.
package mathutil

import (
	"math"

	"github.com/iwvelando/blend-optimizer/pkg/constants"
)

// RoundTo rounds val to the given number of decimals.
func RoundTo(val float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(val*scale) / scale
}

// RoundMass rounds a mass in kg to constants.MassDecimals and clamps
// solver noise below zero to zero.
func RoundMass(val float64) float64 {
	rounded := RoundTo(val, constants.MassDecimals)
	if rounded <= 0 {
		return 0
	}
	return rounded
}

// IsZeroMass checks if a mass is effectively zero.
func IsZeroMass(val float64) bool {
	return math.Abs(val) <= constants.MassTolerance
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}
