// Package testutil provides common utility functions for testing.
package testutil

import (
	"math"

	"github.com/iwvelando/blend-optimizer/pkg/optimization"
)

// FindSummary finds a summary by scenario name in the results slice.
// Returns a pointer to the summary if found, nil otherwise.
func FindSummary(results []optimization.Summary, name string) *optimization.Summary {
	for i := range results {
		if results[i].Scenario == name {
			return &results[i]
		}
	}
	return nil
}

// MassesMatch reports whether two element to kg maps agree within tol,
// treating missing keys as zero.
func MassesMatch(got, want map[string]float64, tol float64) bool {
	for k, v := range want {
		if math.Abs(got[k]-v) > tol {
			return false
		}
	}
	for k, v := range got {
		if _, ok := want[k]; !ok && math.Abs(v) > tol {
			return false
		}
	}
	return true
}
