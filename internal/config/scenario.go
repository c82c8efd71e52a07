package config

import (
	"fmt"
	"time"

	"github.com/iwvelando/blend-optimizer/internal/blend"
)

// Scenario is a named optimisation request solved by the batch runner.
type Scenario struct {
	Name               string             `yaml:"name" mapstructure:"name"`
	Active             bool               `yaml:"active" mapstructure:"active"`
	Operation          string             `yaml:"operation" mapstructure:"operation"`
	InitialComposition map[string]float64 `yaml:"initialComposition,omitempty" mapstructure:"initialComposition"`
	TargetWeight       *float64           `yaml:"targetWeight,omitempty" mapstructure:"targetWeight"`
	Require            []string           `yaml:"require,omitempty" mapstructure:"require"`
	TimeLimit          time.Duration      `yaml:"timeLimit,omitempty" mapstructure:"timeLimit"`
}

// ToRequest converts the scenario into a blend request. The request is not
// validated here; blend.Validate reports problems with the values.
func (s Scenario) ToRequest() (blend.Request, error) {
	op, err := blend.ParseOperation(s.Operation)
	if err != nil {
		return blend.Request{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	req := blend.Request{
		Operation: op,
		TimeLimit: s.TimeLimit,
	}
	if s.InitialComposition != nil {
		req.Current = make(blend.Composition, len(s.InitialComposition))
		for name, mass := range s.InitialComposition {
			req.Current[blend.Element(name)] = mass
		}
	}
	if s.TargetWeight != nil {
		target := *s.TargetWeight
		req.TargetWeight = &target
	}
	if s.Require != nil {
		req.Require = make([]blend.Element, 0, len(s.Require))
		for _, name := range s.Require {
			req.Require = append(req.Require, blend.Element(name))
		}
	}
	return req, nil
}

// DefaultScenarios returns the three reference scenarios: a refuel of an
// on-ratio charge, a fresh blend and a mixture reduction.
func DefaultScenarios() []Scenario {
	weight := func(kg float64) *float64 { return &kg }
	return []Scenario{
		{
			Name:      "scenario1",
			Active:    true,
			Operation: string(blend.OperationRefuel),
			InitialComposition: map[string]float64{
				"A": 40, "B": 30, "C": 20, "D": 10,
			},
			TargetWeight: weight(110),
		},
		{
			Name:         "scenario2",
			Active:       true,
			Operation:    string(blend.OperationNewBlend),
			TargetWeight: weight(80),
		},
		{
			Name:      "scenario3",
			Active:    true,
			Operation: string(blend.OperationOptimiseMixture),
			InitialComposition: map[string]float64{
				"A": 60, "B": 45, "C": 30, "D": 15,
			},
			TargetWeight: weight(120),
		},
	}
}
