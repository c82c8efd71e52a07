package runner

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/blend-optimizer/internal/blend"
	"github.com/iwvelando/blend-optimizer/internal/config"
	"github.com/iwvelando/blend-optimizer/internal/milp"
	"github.com/iwvelando/blend-optimizer/pkg/testutil"
)

func TestRunnerSolvesReferenceScenarios(t *testing.T) {
	conf := config.Default()

	runner, err := NewRunner(zap.NewNop(), conf, nil)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("runner failed: %v", err)
	}
	if len(result.Summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(result.Summaries))
	}

	tests := []struct {
		scenario string
		cost     float64
		final    map[string]float64
	}{
		{"scenario1", 107, map[string]float64{"A": 44, "B": 33, "C": 22, "D": 11}},
		{"scenario2", 424, map[string]float64{"A": 32, "B": 24, "C": 16, "D": 8}},
		{"scenario3", 159, map[string]float64{"A": 48, "B": 36, "C": 24, "D": 12}},
	}

	for i, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			summary := testutil.FindSummary(result.Summaries, tt.scenario)
			if summary == nil {
				t.Fatalf("missing summary for %s", tt.scenario)
			}
			if result.Summaries[i].Scenario != tt.scenario {
				t.Errorf("summaries are not in configuration order: %d is %s", i, result.Summaries[i].Scenario)
			}
			if !summary.Optimal() {
				t.Fatalf("expected an optimal result, got %+v", summary)
			}
			if math.Abs(*summary.TotalCost-tt.cost) > 1e-4 {
				t.Errorf("expected cost %.2f, got %.4f", tt.cost, *summary.TotalCost)
			}
			if !testutil.MassesMatch(summary.FinalComposition, tt.final, 1e-4) {
				t.Errorf("unexpected final composition %v", summary.FinalComposition)
			}
		})
	}
}

func TestRunnerReportsInvalidScenarios(t *testing.T) {
	target := 50.0
	conf := config.Default()
	conf.Scenarios = []config.Scenario{
		{Name: "missing charge", Active: true, Operation: "refuel", TargetWeight: &target},
		{Name: "inactive", Active: false, Operation: "new_blend", TargetWeight: &target},
		{Name: "fresh", Active: true, Operation: "new_blend", TargetWeight: &target},
	}

	runner, err := NewRunner(nil, conf, nil)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("runner failed: %v", err)
	}

	if len(result.Summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(result.Summaries))
	}
	if result.Failed() != 1 {
		t.Fatalf("expected one failed scenario, got %d", result.Failed())
	}
	failed := testutil.FindSummary(result.Summaries, "missing charge")
	if failed == nil || !strings.Contains(failed.Error, "initial_composition") {
		t.Errorf("expected an invalid input summary, got %+v", failed)
	}
	if testutil.FindSummary(result.Summaries, "inactive") != nil {
		t.Errorf("inactive scenarios must be skipped")
	}
}

func TestNewRunnerRejectsBadConfiguration(t *testing.T) {
	if _, err := NewRunner(nil, nil, nil); err == nil {
		t.Fatalf("expected an error for a nil configuration")
	}

	conf := config.Default()
	conf.Blend.BigM = -1
	_, err := NewRunner(nil, conf, nil)
	if !errors.Is(err, blend.ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

// failingSolver fails every model of one operation and solves the rest.
type failingSolver struct {
	operation string
}

func (f failingSolver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Solution, error) {
	if m.Name() == f.operation {
		return nil, milp.ErrNumerical
	}
	return milp.NewBranchAndBound().Solve(ctx, m, opts)
}

func TestRunnerRecordsSolverFailurePerScenario(t *testing.T) {
	runner, err := NewRunner(nil, config.Default(), failingSolver{operation: "new_blend"})
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("a solver failure must not abort the run: %v", err)
	}

	if len(result.Summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(result.Summaries))
	}
	if result.Failed() != 1 {
		t.Fatalf("expected one failed scenario, got %d", result.Failed())
	}

	failed := testutil.FindSummary(result.Summaries, "scenario2")
	if failed == nil || !strings.Contains(failed.Error, milp.ErrNumerical.Error()) {
		t.Fatalf("expected the solver failure in the scenario2 summary, got %+v", failed)
	}
	if len(failed.Notes) == 0 {
		t.Errorf("expected a note on the failed scenario")
	}
	for _, name := range []string{"scenario1", "scenario3"} {
		if s := testutil.FindSummary(result.Summaries, name); s == nil || !s.Optimal() {
			t.Errorf("expected %s to solve, got %+v", name, s)
		}
	}
}

func TestRunnerAbortsOnCancellation(t *testing.T) {
	runner, err := NewRunner(nil, config.Default(), nil)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to abort the run, got %v", err)
	}
}

func TestSummarizeNonOptimal(t *testing.T) {
	target := 120.0
	res := &blend.Result{
		Operation:    blend.OperationRefuel,
		Status:       blend.StatusInfeasible,
		TargetWeight: &target,
	}

	summary := Summarize("too much", res, time.Millisecond)
	if summary.Status != "Infeasible" {
		t.Errorf("expected Infeasible, got %s", summary.Status)
	}
	if summary.TotalCost != nil || summary.FinalComposition != nil {
		t.Errorf("non-optimal summaries carry no solution: %+v", summary)
	}
	if len(summary.Notes) != 1 {
		t.Errorf("expected a note explaining the status, got %v", summary.Notes)
	}
}
