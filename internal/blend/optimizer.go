// Package blend models the four-element blend as a mixed-integer program
// and solves refuel, new blend and mixture optimisation requests at minimum
// cost while keeping the canonical ratio among the elements present.
package blend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/blend-optimizer/internal/milp"
)

// Optimizer validates requests, builds their model, solves it and formats
// the result. It holds no per-request state and is safe for concurrent use.
type Optimizer struct {
	logger *zap.Logger
	params Params
	solver milp.Solver
	opts   milp.Options
}

// NewOptimizer constructs an Optimizer. A nil logger disables logging and a
// nil solver selects milp.BranchAndBound.
func NewOptimizer(logger *zap.Logger, params Params, solver milp.Solver, opts milp.Options) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if solver == nil {
		solver = milp.NewBranchAndBound()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Optimizer{logger: logger, params: params, solver: solver, opts: opts}
}

// Params returns the parameters the optimizer was built with.
func (o *Optimizer) Params() Params {
	return o.params
}

// Optimize runs one request end to end. Invalid requests return an
// *InvalidInputError; infeasible, unbounded and time-limited outcomes are
// reported through Result.Status with a nil error.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	req, err := Validate(req)
	if err != nil {
		o.logger.Debug("rejected blend request",
			zap.String("op", "blend.Optimize"),
			zap.Error(err))
		return nil, err
	}

	o.warnOnSuspiciousInput(req)

	f := assemble(o.params, req)

	opts := o.opts
	if req.TimeLimit > 0 {
		opts.TimeLimit = req.TimeLimit
	}

	sol, err := o.solver.Solve(ctx, f.Model, opts)
	if err != nil {
		return nil, fmt.Errorf("solving %s: %w", req.Operation, err)
	}

	res := formatResult(o.logger, f, sol)

	fields := []zap.Field{
		zap.String("op", "blend.Optimize"),
		zap.String("operation", string(req.Operation)),
		zap.Stringer("status", res.Status),
		zap.Int("nodes", res.Nodes),
		zap.Duration("elapsed", time.Since(start)),
	}
	if res.TotalCost != nil {
		fields = append(fields, zap.Float64("cost", *res.TotalCost))
	}
	o.logger.Info("blend optimisation finished", fields...)

	return res, nil
}

// MaxAdditions returns the per-element refuel cap for current.
func (o *Optimizer) MaxAdditions(current Composition) Composition {
	return MaxAdditions(o.params, current)
}

// warnOnSuspiciousInput logs requests whose outcome is already known to be
// infeasible or whose masses exceed the range the Big-M relaxation covers.
func (o *Optimizer) warnOnSuspiciousInput(req Request) {
	total := req.Current.Total()

	if req.Operation == OperationRefuel && req.HasTarget() {
		ceiling := total * (1 + o.params.MaxRefuelPercentage())
		switch {
		case req.Target() > ceiling:
			o.logger.Warn("refuel target exceeds the addition cap",
				zap.String("op", "blend.Optimize"),
				zap.Float64("target", req.Target()),
				zap.Float64("ceiling", ceiling))
		case req.Target() < total:
			o.logger.Warn("refuel target is below the current charge",
				zap.String("op", "blend.Optimize"),
				zap.Float64("target", req.Target()),
				zap.Float64("current", total))
		}
	}

	mass := req.Target()
	if refuelCeiling := total * (1 + o.params.MaxRefuelPercentage()); refuelCeiling > mass {
		mass = refuelCeiling
	}
	if o.params.maxRatio()*mass > o.params.BigM() {
		o.logger.Warn("blend mass exceeds the Big-M range; results may be wrong",
			zap.String("op", "blend.Optimize"),
			zap.Float64("mass", mass),
			zap.Float64("bigM", o.params.BigM()))
	}
}
