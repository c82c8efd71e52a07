package blend

import (
	"math"

	"go.uber.org/zap"

	"github.com/iwvelando/blend-optimizer/internal/milp"
	"github.com/iwvelando/blend-optimizer/pkg/constants"
	"github.com/iwvelando/blend-optimizer/pkg/mathutil"
)

// Status is the solver outcome reported in a Result.
type Status = milp.Status

const (
	StatusOptimal    = milp.StatusOptimal
	StatusInfeasible = milp.StatusInfeasible
	StatusUnbounded  = milp.StatusUnbounded
	StatusTimeLimit  = milp.StatusTimeLimit
)

// costTolerance is the largest accepted gap between the solver objective and
// the cost recomputed from the rounded masses before a warning is logged.
const costTolerance = 1e-4

// Result is the outcome of one optimisation. It is built once and never
// mutated. TotalCost and the per-element maps are only set when Status is
// StatusOptimal.
type Result struct {
	Operation        Operation   `json:"operation" yaml:"operation"`
	Status           Status      `json:"status" yaml:"status"`
	TotalCost        *float64    `json:"total_cost,omitempty" yaml:"total_cost,omitempty"`
	FinalComposition Composition `json:"final_composition,omitempty" yaml:"final_composition,omitempty"`
	Additions        Composition `json:"additions,omitempty" yaml:"additions,omitempty"`
	Removals         Composition `json:"removals,omitempty" yaml:"removals,omitempty"`
	Extractions      Composition `json:"extractions,omitempty" yaml:"extractions,omitempty"`
	TargetWeight     *float64    `json:"target_weight,omitempty" yaml:"target_weight,omitempty"`
	// Objective is the solver-reported value of the cost objective.
	Objective float64 `json:"-" yaml:"-"`
	// Nodes is the number of LP subproblems explored.
	Nodes int `json:"nodes" yaml:"nodes"`
}

// Optimal reports whether the result carries a solution.
func (r *Result) Optimal() bool {
	return r != nil && r.Status == StatusOptimal
}

// Cost returns the total cost, or zero when the result is not optimal.
func (r *Result) Cost() float64 {
	if r == nil || r.TotalCost == nil {
		return 0
	}
	return *r.TotalCost
}

// formatResult maps a solver solution onto a Result.
func formatResult(logger *zap.Logger, f *Formulation, sol *milp.Solution) *Result {
	res := &Result{
		Operation:    f.Operation,
		Status:       sol.Status,
		TargetWeight: f.Target,
		Nodes:        sol.Nodes,
	}
	if sol.Status != milp.StatusOptimal {
		return res
	}

	res.Objective = sol.Objective
	res.FinalComposition = make(Composition, len(Elements))
	res.Additions = Composition{}
	res.Removals = Composition{}
	res.Extractions = Composition{}

	cost := 0.0
	for _, e := range Elements {
		ev := f.vars[e]
		price := f.params.Price(e)
		res.FinalComposition[e] = mathutil.RoundMass(sol.Value(ev.qty))

		if ev.hasAdd {
			if mass := mathutil.RoundMass(sol.Value(ev.add)); mass > 0 {
				res.Additions[e] = mass
				cost += price.Addition * mass
			}
		}
		if ev.hasRemove {
			if mass := mathutil.RoundMass(sol.Value(ev.remove)); mass > 0 {
				res.Removals[e] = mass
				cost += price.Extraction * mass
			}
		}
		if ev.hasFresh {
			if mass := mathutil.RoundMass(sol.Value(ev.fresh)); mass > 0 {
				res.Extractions[e] = mass
				cost += price.Extraction * mass
			}
		}
	}

	total := mathutil.RoundTo(sol.Objective, constants.CostDecimals)
	if total == 0 {
		total = 0 // no negative zero
	}
	if math.Abs(cost-sol.Objective) > costTolerance*math.Max(1, math.Abs(sol.Objective)) {
		logger.Warn("recomputed cost differs from solver objective",
			zap.String("op", "blend.formatResult"),
			zap.Float64("recomputed", cost),
			zap.Float64("objective", sol.Objective))
	}
	res.TotalCost = &total
	return res
}
