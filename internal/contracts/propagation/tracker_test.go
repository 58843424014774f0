package propagation

import (
	"testing"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

func TestTracker_CheckChain_IntactWhenAllFieldsPresentAndNonDefault(t *testing.T) {
	ctx := Context{}
	ctx.Set("plan", "id", "p-1")
	ctx.Set("exec", "plan_ref", "p-1")

	tracker := NewTracker()
	result, err := tracker.CheckChain(PropagationChain{
		ID: "c1", SourcePhase: "plan", SourceField: "id", DestPhase: "exec", DestField: "plan_ref",
	}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != ctypes.ChainIntact {
		t.Fatalf("expected intact, got %s: %s", result.Status, result.Message)
	}
}

func TestTracker_CheckChain_BrokenWhenDestinationMissing(t *testing.T) {
	ctx := Context{}
	ctx.Set("plan", "id", "p-1")

	tracker := NewTracker()
	result, err := tracker.CheckChain(PropagationChain{
		ID: "c1", SourcePhase: "plan", SourceField: "id", DestPhase: "exec", DestField: "plan_ref",
	}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != ctypes.ChainBroken {
		t.Fatalf("expected broken, got %s", result.Status)
	}
}

func TestTracker_CheckChain_DegradedWhenDestinationIsDefaultValue(t *testing.T) {
	ctx := Context{}
	ctx.Set("plan", "id", "p-1")
	ctx.Set("exec", "plan_ref", "")

	tracker := NewTracker()
	result, err := tracker.CheckChain(PropagationChain{
		ID: "c1", SourcePhase: "plan", SourceField: "id", DestPhase: "exec", DestField: "plan_ref",
	}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != ctypes.ChainDegraded {
		t.Fatalf("expected degraded, got %s", result.Status)
	}
}

func TestTracker_CheckAllChains_EvaluatesEveryDeclaredChain(t *testing.T) {
	ctx := Context{}
	ctx.Set("plan", "id", "p-1")
	ctx.Set("exec", "plan_ref", "p-1")

	contract := &ContextContract{Chains: []PropagationChain{
		{ID: "c1", SourcePhase: "plan", SourceField: "id", DestPhase: "exec", DestField: "plan_ref"},
		{ID: "c2", SourcePhase: "plan", SourceField: "missing", DestPhase: "exec", DestField: "plan_ref"},
	}}

	tracker := NewTracker()
	results, err := tracker.CheckAllChains(contract, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != ctypes.ChainIntact || results[1].Status != ctypes.ChainBroken {
		t.Fatalf("unexpected statuses: %s, %s", results[0].Status, results[1].Status)
	}
}

func TestTracker_StampAndStampEvaluation(t *testing.T) {
	ctx := Context{}
	tracker := NewTracker()
	tracker.Stamp(ctx, "plan", "id", "p-1")
	tracker.StampEvaluation(ctx, "id", "judge-v1", 0.9)

	prov := ctx[ProvenanceKey].(map[string]FieldProvenance)
	rec, ok := prov["id"]
	if !ok {
		t.Fatal("expected a provenance record for id")
	}
	if rec.OriginPhase != "plan" || !rec.HasEvaluationScore || rec.EvaluationScore != 0.9 {
		t.Fatalf("unexpected provenance record: %+v", rec)
	}
}
