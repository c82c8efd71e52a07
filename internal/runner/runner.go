// Package runner solves every active configured scenario and collects a
// summary per scenario.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iwvelando/blend-optimizer/internal/blend"
	"github.com/iwvelando/blend-optimizer/internal/config"
	"github.com/iwvelando/blend-optimizer/internal/milp"
	"github.com/iwvelando/blend-optimizer/pkg/optimization"
)

// Runner solves the scenarios of a configuration.
type Runner struct {
	logger      *zap.Logger
	conf        *config.Configuration
	optimizer   *blend.Optimizer
	concurrency int
}

// Result holds one summary per active scenario, in configuration order.
type Result struct {
	Summaries []optimization.Summary
}

// Empty indicates whether any scenario was solved.
func (r Result) Empty() bool {
	return len(r.Summaries) == 0
}

// Failed counts the scenarios that ended in an error.
func (r Result) Failed() int {
	n := 0
	for _, s := range r.Summaries {
		if s.Failed() {
			n++
		}
	}
	return n
}

// NewRunner constructs a Runner for the provided configuration. A nil
// solver selects milp.BranchAndBound.
func NewRunner(logger *zap.Logger, conf *config.Configuration, solver milp.Solver) (*Runner, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	params, err := conf.BlendParams()
	if err != nil {
		return nil, fmt.Errorf("invalid blend parameters: %w", err)
	}

	concurrency := conf.Runner.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Runner{
		logger:      logger,
		conf:        conf,
		optimizer:   blend.NewOptimizer(logger, params, solver, conf.SolverOptions(logger)),
		concurrency: concurrency,
	}, nil
}

// Run solves every active scenario. A scenario that is rejected or whose
// solve fails is reported in its own summary and does not stop the others;
// only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	scenarios := r.conf.ActiveScenarios()
	summaries := make([]optimization.Summary, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, scenario := range scenarios {
		g.Go(func() error {
			summary, err := r.solve(ctx, scenario)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Summaries: summaries}, nil
}

func (r *Runner) solve(ctx context.Context, scenario config.Scenario) (optimization.Summary, error) {
	start := time.Now()

	req, err := scenario.ToRequest()
	if err == nil {
		var res *blend.Result
		res, err = r.optimizer.Optimize(ctx, req)
		if err == nil {
			summary := Summarize(scenario.Name, res, time.Since(start))
			r.logger.Info("scenario solved",
				zap.String("op", "runner.Run"),
				zap.String("scenario", scenario.Name),
				zap.String("status", summary.Status),
				zap.Int("nodes", summary.Nodes),
				zap.Duration("duration", summary.Duration),
			)
			return summary, nil
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return optimization.Summary{}, err
	}

	summary := optimization.Summary{
		Scenario:  scenario.Name,
		Operation: scenario.Operation,
		Error:     err.Error(),
		Duration:  time.Since(start),
	}
	if errors.Is(err, blend.ErrInvalidInput) {
		r.logger.Warn("scenario rejected",
			zap.String("op", "runner.Run"),
			zap.String("scenario", scenario.Name),
			zap.Error(err),
		)
		return summary, nil
	}

	r.logger.Error("scenario failed",
		zap.String("op", "runner.Run"),
		zap.String("scenario", scenario.Name),
		zap.Error(err),
	)
	summary.Notes = append(summary.Notes, "solver failed; other scenarios are unaffected")
	return summary, nil
}

// Summarize converts a blend result into a summary.
func Summarize(name string, res *blend.Result, elapsed time.Duration) optimization.Summary {
	summary := optimization.Summary{
		Scenario:         name,
		Operation:        string(res.Operation),
		Status:           res.Status.String(),
		TargetWeight:     res.TargetWeight,
		FinalComposition: toMasses(res.FinalComposition),
		Additions:        toMasses(res.Additions),
		Removals:         toMasses(res.Removals),
		Extractions:      toMasses(res.Extractions),
		Nodes:            res.Nodes,
		Duration:         elapsed,
	}
	if res.TotalCost != nil {
		cost := *res.TotalCost
		summary.TotalCost = &cost
	}

	switch res.Status {
	case blend.StatusInfeasible:
		summary.Notes = append(summary.Notes, "no blend satisfies the constraints; relax the target weight")
	case blend.StatusTimeLimit:
		summary.Notes = append(summary.Notes, "time limit reached before optimality was proven")
	case blend.StatusUnbounded:
		summary.Notes = append(summary.Notes, "model is unbounded")
	}
	return summary
}

func toMasses(c blend.Composition) map[string]float64 {
	if len(c) == 0 {
		return nil
	}
	out := make(map[string]float64, len(c))
	for e, mass := range c {
		out[string(e)] = mass
	}
	return out
}
