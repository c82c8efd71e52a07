// Package optimization provides shared data structures for optimization results.
package optimization

import "time"

// Summary captures the result of a single named optimisation.
type Summary struct {
	Scenario         string             `json:"scenario" yaml:"scenario"`
	Operation        string             `json:"operation" yaml:"operation"`
	Status           string             `json:"status" yaml:"status"`
	TotalCost        *float64           `json:"totalCost,omitempty" yaml:"totalCost,omitempty"`
	TargetWeight     *float64           `json:"targetWeight,omitempty" yaml:"targetWeight,omitempty"`
	FinalComposition map[string]float64 `json:"finalComposition,omitempty" yaml:"finalComposition,omitempty"`
	Additions        map[string]float64 `json:"additions,omitempty" yaml:"additions,omitempty"`
	Removals         map[string]float64 `json:"removals,omitempty" yaml:"removals,omitempty"`
	Extractions      map[string]float64 `json:"extractions,omitempty" yaml:"extractions,omitempty"`
	Nodes            int                `json:"nodes" yaml:"nodes"`
	Duration         time.Duration      `json:"duration" yaml:"duration"`
	Notes            []string           `json:"notes,omitempty" yaml:"notes,omitempty"`
	Error            string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the optimisation ended in an error rather than a
// solver status.
func (s Summary) Failed() bool {
	return s.Error != ""
}

// Optimal reports whether the summary carries a solution.
func (s Summary) Optimal() bool {
	return s.Status == "Optimal" && s.TotalCost != nil
}
