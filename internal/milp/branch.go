package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// BranchAndBound is a Solver that explores the binary variables depth-first
// and solves each node's LP relaxation with a dense two-phase simplex.
// Leaves with every binary fixed are solved exactly, so an incumbent never
// violates an indicator link. The zero value is ready to use.
type BranchAndBound struct{}

// NewBranchAndBound returns the default solver.
func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{}
}

// Solve minimises the model objectives lexicographically.
func (b *BranchAndBound) Solve(ctx context.Context, model *Model, opts Options) (*Solution, error) {
	if model == nil || len(model.objectives) == 0 {
		return nil, ErrEmptyModel
	}
	opts = opts.normalized()

	var deadline time.Time
	if opts.TimeLimit > 0 {
		deadline = time.Now().Add(opts.TimeLimit)
	}

	var (
		extra []Constraint
		best  *Solution
		nodes int
	)
	for stage, obj := range model.objectives {
		e := newEngine(ctx, model, obj, extra, opts, deadline)
		err := e.run()
		nodes += e.nodes
		if err != nil && (stage == 0 || !errors.Is(err, ErrNumerical)) {
			return nil, err
		}

		status := e.status()
		if err != nil || status != StatusOptimal {
			if stage == 0 || status == StatusTimeLimit {
				return &Solution{Status: status, Nodes: nodes}, nil
			}
			// A pinned earlier objective can make a later stage numerically
			// infeasible; the previous stage's answer is still optimal.
			opts.Logger.Warn("lexicographic stage did not solve, keeping previous stage",
				zap.String("op", "milp.Solve"),
				zap.String("model", model.name),
				zap.Int("stage", stage),
				zap.String("status", status.String()),
				zap.Error(err),
			)
			break
		}

		best = &Solution{Status: StatusOptimal, Values: e.best}
		bound := e.bestValue + stageSlack(e.bestValue, opts.Tolerance)
		extra = append(extra, Constraint{
			Name:  "lexicographic_stage",
			Expr:  obj,
			Sense: LessEqual,
			RHS:   bound,
		})
	}

	best.Nodes = nodes
	best.Objectives = make([]float64, len(model.objectives))
	for i, obj := range model.objectives {
		best.Objectives[i] = obj.Eval(best.Values)
	}
	best.Objective = best.Objectives[0]

	opts.Logger.Debug("model solved",
		zap.String("op", "milp.Solve"),
		zap.String("model", model.name),
		zap.Float64("objective", best.Objective),
		zap.Int("nodes", nodes),
	)
	return best, nil
}

// inconclusiveResidual is the phase one residual under which an infeasible
// relaxation with free binaries is branched on rather than pruned. A smaller
// miss is only trusted once every binary is fixed.
const inconclusiveResidual = 1e-4

func stageSlack(value, tol float64) float64 {
	return math.Max(1e-7, 1e3*tol) * math.Max(1, math.Abs(value))
}

// bbEngine holds the search state of one lexicographic stage.
type bbEngine struct {
	ctx       context.Context
	model     *Model
	objective Expr
	extra     []Constraint
	opts      Options
	deadline  time.Time

	binaries []int

	best      []float64
	bestValue float64
	found     bool

	nodes     int
	failed    int
	timedOut  bool
	unbounded bool
}

func newEngine(ctx context.Context, model *Model, obj Expr, extra []Constraint, opts Options, deadline time.Time) *bbEngine {
	e := &bbEngine{
		ctx:       ctx,
		model:     model,
		objective: obj,
		extra:     extra,
		opts:      opts,
		deadline:  deadline,
		bestValue: math.Inf(1),
	}
	for i, v := range model.vars {
		if v.Kind == Binary {
			e.binaries = append(e.binaries, i)
		}
	}
	return e
}

func (e *bbEngine) run() error {
	lo := make([]float64, len(e.model.vars))
	hi := make([]float64, len(e.model.vars))
	for i, v := range e.model.vars {
		lo[i], hi[i] = v.Lower, v.Upper
		if v.Kind == Binary {
			lo[i] = math.Max(0, math.Ceil(lo[i]-e.opts.IntegralityTolerance))
			hi[i] = math.Min(1, math.Floor(hi[i]+e.opts.IntegralityTolerance))
		}
	}
	err := e.search(lo, hi)
	if err != nil && !errors.Is(err, errStop) {
		return err
	}
	if !e.found && !e.timedOut && !e.unbounded && e.failed > 0 {
		return fmt.Errorf("%w: %d fixed subproblem(s) failed and no solution was found", ErrNumerical, e.failed)
	}
	return nil
}

func (e *bbEngine) status() Status {
	switch {
	case e.timedOut:
		return StatusTimeLimit
	case e.unbounded:
		return StatusUnbounded
	case e.found:
		return StatusOptimal
	default:
		return StatusInfeasible
	}
}

// errStop unwinds the search after a time limit or an unbounded relaxation.
var errStop = errors.New("milp: stop search")

func (e *bbEngine) expired() bool {
	if err := e.ctx.Err(); err != nil {
		return true
	}
	return !e.deadline.IsZero() && time.Now().After(e.deadline)
}

func (e *bbEngine) search(lo, hi []float64) error {
	if e.expired() {
		if errors.Is(e.ctx.Err(), context.Canceled) {
			return e.ctx.Err()
		}
		e.timedOut = true
		return errStop
	}
	e.nodes++

	leaf := e.allFixed(lo, hi)
	res, err := solveRelaxation(e.model, e.objective, lo, hi, e.extra, e.opts.Tolerance)
	if err != nil {
		if leaf {
			e.failed++
			e.opts.Logger.Warn("skipping subproblem after LP failure",
				zap.String("op", "milp.search"),
				zap.String("model", e.model.name),
				zap.Error(err),
			)
			return nil
		}
		// No bound is available from this node; keep branching.
		return e.branch(lo, hi, e.firstFree(lo, hi), 0.5)
	}

	switch res.status {
	case StatusInfeasible:
		if !leaf && res.residual <= inconclusiveResidual {
			return e.branch(lo, hi, e.firstFree(lo, hi), 0.5)
		}
		return nil
	case StatusUnbounded:
		e.unbounded = true
		return errStop
	}

	if e.found && res.value >= e.bestValue-stageSlack(e.bestValue, e.opts.Tolerance) {
		return nil
	}

	if leaf {
		e.best = res.x
		e.bestValue = res.value
		e.found = true
		return nil
	}

	j := e.mostFractional(res.x, lo, hi)
	if j < 0 {
		// The relaxation is integral: re-solve with the binaries pinned to
		// their rounded values so the incumbent satisfies every link exactly.
		fixedLo := append([]float64(nil), lo...)
		fixedHi := append([]float64(nil), hi...)
		for _, b := range e.binaries {
			r := math.Round(res.x[b])
			fixedLo[b], fixedHi[b] = r, r
		}
		if err := e.search(fixedLo, fixedHi); err != nil {
			return err
		}
		if e.found && e.bestValue <= res.value+stageSlack(res.value, e.opts.Tolerance) {
			return nil
		}
		j = e.firstFree(lo, hi)
	}
	return e.branch(lo, hi, j, res.x[j])
}

// branch explores both children of binary j, the one nearer the relaxed
// value first.
func (e *bbEngine) branch(lo, hi []float64, j int, value float64) error {
	first, second := 1.0, 0.0
	if value < 0.5 {
		first, second = 0, 1
	}
	for _, v := range []float64{first, second} {
		childLo := append([]float64(nil), lo...)
		childHi := append([]float64(nil), hi...)
		childLo[j], childHi[j] = v, v
		if err := e.search(childLo, childHi); err != nil {
			return err
		}
	}
	return nil
}

func (e *bbEngine) allFixed(lo, hi []float64) bool {
	return e.firstFree(lo, hi) < 0
}

func (e *bbEngine) firstFree(lo, hi []float64) int {
	for _, b := range e.binaries {
		if hi[b]-lo[b] > fixedEps {
			return b
		}
	}
	return -1
}

// mostFractional returns the free binary furthest from integrality, or -1
// when every free binary is integral within tolerance.
func (e *bbEngine) mostFractional(x, lo, hi []float64) int {
	best, bestDist := -1, e.opts.IntegralityTolerance
	for _, b := range e.binaries {
		if hi[b]-lo[b] <= fixedEps {
			continue
		}
		dist := math.Abs(x[b] - math.Round(x[b]))
		if dist > bestDist {
			best, bestDist = b, dist
		}
	}
	return best
}
