package schemacompat

import (
	"testing"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

func testSpec() *CompatibilitySpec {
	return &CompatibilitySpec{Mappings: []FieldMapping{
		{SourceService: "planner", TargetService: "executor", SourceField: "status", TargetField: "state",
			SourceType: "str", SourceValues: []string{"pending", "done"}, Severity: ctypes.SeverityBlocking},
		{SourceService: "planner", TargetService: "executor", SourceField: "retries", TargetField: "attempts",
			SourceType: "int", Severity: ctypes.SeverityWarning},
	}}
}

func TestCheckStructural_PassesWhenFieldsPresentAndTyped(t *testing.T) {
	c := NewChecker(testSpec())
	result := c.CheckStructural("planner", "executor", map[string]any{"status": "pending", "retries": 2.0})
	if !result.Compatible {
		t.Fatalf("expected compatible, got %+v", result)
	}
}

func TestCheckStructural_FlagsMissingField(t *testing.T) {
	c := NewChecker(testSpec())
	result := c.CheckStructural("planner", "executor", map[string]any{"retries": 2.0})
	if result.Compatible {
		t.Fatal("expected incompatible: status is missing and blocking")
	}
	if result.FieldResults[0].DriftType != ctypes.DriftMissingField {
		t.Fatalf("expected missing-field drift, got %+v", result.FieldResults[0])
	}
}

func TestCheckStructural_FlagsTypeMismatch(t *testing.T) {
	c := NewChecker(testSpec())
	result := c.CheckStructural("planner", "executor", map[string]any{"status": 42, "retries": 2.0})
	if result.Compatible {
		t.Fatal("expected incompatible: status should be a string")
	}
}

func TestCheckSemantic_FlagsValueOutsideAllowedSet(t *testing.T) {
	c := NewChecker(testSpec())
	result := c.CheckSemantic("planner", "executor", map[string]any{"status": "cancelled", "retries": 2.0})
	if result.Compatible {
		t.Fatal("expected incompatible: cancelled is blocking and outside the allowed set")
	}
	if result.FieldResults[0].DriftType != ctypes.DriftValueOutsideSet {
		t.Fatalf("expected value-outside-set drift, got %+v", result.FieldResults[0])
	}
}

func TestCheck_DispatchesOnMode(t *testing.T) {
	c := NewChecker(testSpec())
	payload := map[string]any{"status": "done", "retries": 1.0}
	structural := c.Check("planner", "executor", payload, ctypes.CompatStructural)
	semantic := c.Check("planner", "executor", payload, ctypes.CompatSemantic)
	if structural.Mode != ctypes.CompatStructural || semantic.Mode != ctypes.CompatSemantic {
		t.Fatalf("expected modes to match requested mode: structural=%s semantic=%s", structural.Mode, semantic.Mode)
	}
}

func TestCompatibilitySpec_FindMapping(t *testing.T) {
	spec := testSpec()
	m, ok := spec.FindMapping("planner", "executor", "status")
	if !ok || m.TargetField != "state" {
		t.Fatalf("expected to find the status mapping, got %+v ok=%v", m, ok)
	}
	if _, ok := spec.FindMapping("planner", "executor", "nonexistent"); ok {
		t.Fatal("expected no mapping for an undeclared field")
	}
}
