package propagation

import "testing"

func TestValidateFieldPath_AcceptsPlainDotPaths(t *testing.T) {
	for _, path := range []string{"id", "plan.id", "design.reviewed_by"} {
		if err := validateFieldPath(path); err != nil {
			t.Fatalf("expected %q to be a valid field path, got %v", path, err)
		}
	}
}

func TestValidateFieldPath_RejectsEmptyAndMalformedPaths(t *testing.T) {
	if err := validateFieldPath(""); err == nil {
		t.Fatal("expected an empty field path to be rejected")
	}
	if err := validateFieldPath("plan.(unterminated"); err == nil {
		t.Fatal("expected an unbalanced field path to be rejected")
	}
}

func TestContextContract_Validate_RejectsMalformedChainFieldPath(t *testing.T) {
	contract := &ContextContract{
		Pipeline: "test-pipeline",
		Phases:   []PhaseSpec{{Name: "plan"}, {Name: "exec"}},
		Chains: []PropagationChain{
			{ID: "c1", SourcePhase: "plan", SourceField: "id.(bad", DestPhase: "exec", DestField: "plan_ref"},
		},
	}
	if err := contract.Validate(); err == nil {
		t.Fatal("expected a malformed chain source field to fail validation")
	}
}
