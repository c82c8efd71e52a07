package milp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyModel is returned when a model has no objective.
	ErrEmptyModel = errors.New("milp: model has no objective")

	// ErrNumerical is returned when the LP engine fails on a fully fixed
	// subproblem, e.g. a singular basis.
	ErrNumerical = errors.New("milp: numerical failure in LP engine")
)

// Status is the outcome of a solve. It is data, not an error: an
// infeasible model is a valid answer.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusTimeLimit
)

// String returns the status label used in results.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusUnbounded:
		return "Unbounded"
	case StatusTimeLimit:
		return "TimeLimit"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status as its label.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status label.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Optimal":
		*s = StatusOptimal
	case "Infeasible":
		*s = StatusInfeasible
	case "Unbounded":
		*s = StatusUnbounded
	case "TimeLimit":
		*s = StatusTimeLimit
	default:
		return fmt.Errorf("milp: unknown status %q", string(text))
	}
	return nil
}

// Solution is the result of solving a Model. Values and Objectives are only
// meaningful when Status is StatusOptimal.
type Solution struct {
	Status Status
	// Objective is the value of the primary objective.
	Objective float64
	// Objectives holds the value of every objective, in priority order.
	Objectives []float64
	// Values holds one entry per model variable, indexed by Var.Index.
	Values []float64
	// Nodes counts the LP subproblems explored.
	Nodes int
}

// Value returns the value of v in the solution.
func (s *Solution) Value(v Var) float64 {
	if s == nil || v.index >= len(s.Values) {
		return 0
	}
	return s.Values[v.index]
}

// Options tune a solve.
type Options struct {
	// TimeLimit bounds the wall-clock time of a solve; zero disables it.
	TimeLimit time.Duration
	// Tolerance is the feasibility and optimality tolerance.
	Tolerance float64
	// IntegralityTolerance is how far a binary may sit from 0 or 1 and
	// still count as integral.
	IntegralityTolerance float64
	Logger               *zap.Logger
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		Tolerance:            1e-9,
		IntegralityTolerance: 1e-6,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	if o.IntegralityTolerance <= 0 {
		o.IntegralityTolerance = def.IntegralityTolerance
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Solver turns a model into a solution. Implementations must not retain
// the model after Solve returns and must be safe for concurrent use on
// distinct models.
type Solver interface {
	Solve(ctx context.Context, model *Model, opts Options) (*Solution, error)
}
