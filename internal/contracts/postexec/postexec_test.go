package postexec

import (
	"testing"

	"github.com/contextcore/core/internal/contracts/propagation"
	"github.com/contextcore/core/internal/contracts/runtime"
)

func contractWithOneChain() *propagation.ContextContract {
	return &propagation.ContextContract{
		Pipeline: "test-pipeline",
		Phases:   []propagation.PhaseSpec{{Name: "plan"}, {Name: "exec"}},
		Chains: []propagation.PropagationChain{
			{ID: "c1", SourcePhase: "plan", SourceField: "id", DestPhase: "exec", DestField: "plan_ref"},
		},
	}
}

func TestValidator_Validate_PassesWhenAllChainsIntact(t *testing.T) {
	ctx := propagation.Context{}
	ctx.Set("plan", "id", "p-1")
	ctx.Set("exec", "plan_ref", "p-1")

	v := NewValidator(nil, nil, nil)
	report, err := v.Validate(contractWithOneChain(), ctx, []string{"plan", "exec"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed || report.ChainsBroken != 0 || report.CompletenessPct != 100 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestValidator_Validate_FailsWhenAChainIsBroken(t *testing.T) {
	ctx := propagation.Context{}
	ctx.Set("plan", "id", "p-1")
	// exec.plan_ref intentionally left unset

	v := NewValidator(nil, nil, nil)
	report, err := v.Validate(contractWithOneChain(), ctx, []string{"plan", "exec"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Passed || report.ChainsBroken != 1 || report.CompletenessPct != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestValidator_Validate_DegradedChainDoesNotCostCompleteness(t *testing.T) {
	ctx := propagation.Context{}
	ctx.Set("plan", "id", "p-1")
	ctx.Set("exec", "plan_ref", "") // present but a default/empty value: degraded, not broken

	v := NewValidator(nil, nil, nil)
	report, err := v.Validate(contractWithOneChain(), ctx, []string{"plan", "exec"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.ChainsDegraded != 1 || report.ChainsBroken != 0 || report.CompletenessPct != 100 {
		t.Fatalf("expected a degraded-but-complete report, got %+v", report)
	}
}

func TestValidator_Validate_DetectsLateCorruption(t *testing.T) {
	ctx := propagation.Context{}
	ctx.Set("plan", "id", "p-1")
	// exec.plan_ref left unset so the chain is broken at final validation

	runtimeSummary := &runtime.WorkflowRunSummary{
		Phases: []runtime.PhaseExecutionRecord{{Phase: "plan"}, {Phase: "exec"}},
	}

	v := NewValidator(nil, nil, nil)
	report, err := v.Validate(contractWithOneChain(), ctx, []string{"plan", "exec"}, runtimeSummary)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.RuntimeDiscrepancies) != 2 {
		t.Fatalf("expected a late-corruption discrepancy for both tracked phases, got %+v", report.RuntimeDiscrepancies)
	}
	for _, d := range report.RuntimeDiscrepancies {
		if d.DiscrepancyType != LateCorruption {
			t.Fatalf("expected late corruption, got %s", d.DiscrepancyType)
		}
	}
}
