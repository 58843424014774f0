package propagation

import (
	"testing"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

func sampleContract() *ContextContract {
	return &ContextContract{
		Pipeline: "test-pipeline",
		Phases: []PhaseSpec{
			{
				Name: "plan",
				Exit: RequirementSet{Required: []RequirementField{
					{Name: "plan_id", Severity: ctypes.SeverityBlocking},
					{Name: "owner", Severity: ctypes.SeverityWarning, Default: "unassigned", HasDefault: true},
				}},
			},
			{
				Name: "exec",
				Entry: RequirementSet{Required: []RequirementField{
					{Name: "plan_id", Severity: ctypes.SeverityBlocking},
				}},
			},
		},
	}
}

func TestBoundaryValidator_ValidateExit_PassesWhenBlockingPresent(t *testing.T) {
	contract := sampleContract()
	ctx := Context{}
	ctx.Set("plan", "plan_id", "p-1")

	v := NewBoundaryValidator()
	result := v.ValidateExit("plan", ctx, contract)
	if !result.Passed() {
		t.Fatalf("expected pass, blocking failures: %v", result.BlockingFailures())
	}
}

func TestBoundaryValidator_ValidateExit_FailsWhenBlockingMissing(t *testing.T) {
	contract := sampleContract()
	ctx := Context{}

	v := NewBoundaryValidator()
	result := v.ValidateExit("plan", ctx, contract)
	if result.Passed() {
		t.Fatal("expected failure: plan_id is blocking and missing")
	}
	if len(result.BlockingFailures()) != 1 || result.BlockingFailures()[0] != "plan_id" {
		t.Fatalf("unexpected blocking failures: %v", result.BlockingFailures())
	}
}

func TestBoundaryValidator_ValidateEntry_AppliesDefaultForMissingNonBlockingField(t *testing.T) {
	contract := &ContextContract{Phases: []PhaseSpec{
		{Name: "plan", Entry: RequirementSet{Enrichment: []RequirementField{
			{Name: "tags", Default: []any{}, HasDefault: true},
		}}},
	}}
	ctx := Context{}

	v := NewBoundaryValidator()
	result := v.ValidateEntry("plan", ctx, contract)
	if !result.Fields[0].Defaulted {
		t.Fatal("expected the enrichment field to be defaulted")
	}
	present, value := ctx.Resolve("plan", "tags")
	if !present {
		t.Fatal("expected the default to be written back into the context")
	}
	if _, ok := value.([]any); !ok {
		t.Fatalf("expected the default value to round-trip, got %T", value)
	}
}

func TestContextContract_Validate_CatchesDuplicatePhaseAndUndeclaredChainPhase(t *testing.T) {
	dup := &ContextContract{Phases: []PhaseSpec{{Name: "plan"}, {Name: "plan"}}}
	if err := dup.Validate(); err == nil {
		t.Fatal("expected an error for a duplicate phase name")
	}

	badChain := &ContextContract{
		Phases: []PhaseSpec{{Name: "plan"}},
		Chains: []PropagationChain{{ID: "c1", SourcePhase: "plan", DestPhase: "missing"}},
	}
	if err := badChain.Validate(); err == nil {
		t.Fatal("expected an error for a chain referencing an undeclared destination phase")
	}
}

func TestContext_SetAndResolve_DotPath(t *testing.T) {
	ctx := Context{}
	ctx.Set("plan", "meta.owner.name", "alice")
	present, value := ctx.Resolve("plan", "meta.owner.name")
	if !present || value != "alice" {
		t.Fatalf("expected to resolve a nested dot path, got present=%v value=%v", present, value)
	}
}
