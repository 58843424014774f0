package runtime

import (
	"errors"
	"testing"

	"github.com/contextcore/core/internal/contracts/propagation"
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

func testContract() *propagation.ContextContract {
	return &propagation.ContextContract{
		Pipeline: "test-pipeline",
		Phases: []propagation.PhaseSpec{
			{
				Name: "plan",
				Exit: propagation.RequirementSet{Required: []propagation.RequirementField{
					{Name: "plan_id", Severity: ctypes.SeverityBlocking},
				}},
			},
		},
	}
}

func TestGuard_PermissiveMode_NeverReturnsError(t *testing.T) {
	g := NewGuard(testContract(), ctypes.ModePermissive, nil)
	ctx := propagation.Context{}

	if _, err := g.EnterPhase("plan", ctx); err != nil {
		t.Fatalf("permissive mode should never error, got %v", err)
	}
	if _, err := g.ExitPhase("plan", ctx); err != nil {
		t.Fatalf("permissive mode should never error, got %v", err)
	}

	summary := g.Summarize()
	if summary.OverallPassed {
		t.Fatal("expected OverallPassed to reflect the missing blocking field even in permissive mode")
	}
}

func TestGuard_StrictMode_ReturnsBoundaryViolationOnMissingBlockingField(t *testing.T) {
	g := NewGuard(testContract(), ctypes.ModeStrict, nil)
	ctx := propagation.Context{}

	_, err := g.ExitPhase("plan", ctx)
	if err == nil {
		t.Fatal("expected a boundary violation error")
	}
	var bverr *BoundaryViolationError
	if !errors.As(err, &bverr) {
		t.Fatalf("expected a *BoundaryViolationError, got %T", err)
	}
}

func TestGuard_StrictMode_PassesWhenBlockingFieldPresent(t *testing.T) {
	g := NewGuard(testContract(), ctypes.ModeStrict, nil)
	ctx := propagation.Context{}
	ctx.Set("plan", "plan_id", "p-1")

	if _, err := g.ExitPhase("plan", ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	summary := g.Summarize()
	if !summary.OverallPassed || summary.TotalPhases != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestGuard_WithPhase_RunsExitEvenWhenFnErrors(t *testing.T) {
	g := NewGuard(testContract(), ctypes.ModePermissive, nil)
	ctx := propagation.Context{}
	ctx.Set("plan", "plan_id", "p-1")

	sentinel := errors.New("boom")
	err := g.WithPhase("plan", ctx, func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected WithPhase to propagate fn's error, got %v", err)
	}
	if len(g.Records()) != 1 {
		t.Fatalf("expected exit to have been recorded despite fn's error, got %d records", len(g.Records()))
	}
}

func TestGuard_Reset_ClearsRecords(t *testing.T) {
	g := NewGuard(testContract(), ctypes.ModePermissive, nil)
	ctx := propagation.Context{}
	ctx.Set("plan", "plan_id", "p-1")
	_, _ = g.ExitPhase("plan", ctx)

	g.Reset()
	if len(g.Records()) != 0 {
		t.Fatal("expected Reset to clear all records")
	}
}
