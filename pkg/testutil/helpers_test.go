package testutil

import (
	"testing"

	"github.com/iwvelando/blend-optimizer/pkg/optimization"
)

func TestFindSummary(t *testing.T) {
	results := []optimization.Summary{
		{Scenario: "scenario1", Nodes: 1},
		{Scenario: "scenario2", Nodes: 2},
		{Scenario: "scenario2 copy", Nodes: 3},
	}

	tests := []struct {
		name        string
		searchName  string
		expectFound bool
		expectNodes int
	}{
		{"first", "scenario1", true, 1},
		{"exact match only", "scenario2", true, 2},
		{"longer name", "scenario2 copy", true, 3},
		{"missing", "scenario3", false, 0},
		{"empty name", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := FindSummary(results, tt.searchName)
			if !tt.expectFound {
				if found != nil {
					t.Errorf("FindSummary(%q) expected nil, got %+v", tt.searchName, found)
				}
				return
			}
			if found == nil {
				t.Fatalf("FindSummary(%q) expected a summary", tt.searchName)
			}
			if found.Nodes != tt.expectNodes {
				t.Errorf("FindSummary(%q) nodes = %d, expected %d", tt.searchName, found.Nodes, tt.expectNodes)
			}
		})
	}

	if found := FindSummary(nil, "scenario1"); found != nil {
		t.Errorf("FindSummary on nil slice should return nil")
	}

	// The pointer refers to the slice element.
	FindSummary(results, "scenario1").Nodes = 10
	if results[0].Nodes != 10 {
		t.Errorf("FindSummary should return a pointer into the slice")
	}
}

func TestMassesMatch(t *testing.T) {
	tests := []struct {
		name string
		got  map[string]float64
		want map[string]float64
		ok   bool
	}{
		{"equal", map[string]float64{"A": 4}, map[string]float64{"A": 4}, true},
		{"within tolerance", map[string]float64{"A": 4.00001}, map[string]float64{"A": 4}, true},
		{"missing key counts as zero", map[string]float64{"A": 4, "B": 0}, map[string]float64{"A": 4}, true},
		{"extra mass", map[string]float64{"A": 4, "B": 1}, map[string]float64{"A": 4}, false},
		{"different", map[string]float64{"A": 3}, map[string]float64{"A": 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MassesMatch(tt.got, tt.want, 1e-4); got != tt.ok {
				t.Errorf("MassesMatch() = %v, expected %v", got, tt.ok)
			}
		})
	}
}
