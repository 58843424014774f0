package semconv

import (
	"testing"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

func testContract() *ConventionContract {
	return &ConventionContract{Attributes: []AttributeConvention{
		{Name: "task.status", Aliases: []string{"status"}, AllowedValues: []string{"open", "done"}, RequirementLevel: RequirementRequired},
		{Name: "task.priority", RequirementLevel: RequirementOptional},
	}}
}

func TestValidator_ResolveAlias(t *testing.T) {
	v := NewValidator(testContract())
	if got := v.ResolveAlias("status"); got != "task.status" {
		t.Fatalf("expected alias to resolve to task.status, got %q", got)
	}
	if got := v.ResolveAlias("task.status"); got != "task.status" {
		t.Fatalf("expected canonical name to resolve to itself, got %q", got)
	}
	if got := v.ResolveAlias("nonexistent"); got != "" {
		t.Fatalf("expected empty string for an unknown attribute, got %q", got)
	}
}

func TestValidator_ValidateAttributes_PassesOnCanonicalValidValue(t *testing.T) {
	v := NewValidator(testContract())
	result := v.ValidateAttributes(map[string]any{"task.status": "open"})
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestValidator_ValidateAttributes_ResolvesAliasWithWarning(t *testing.T) {
	v := NewValidator(testContract())
	result := v.ValidateAttributes(map[string]any{"status": "open"})
	if !result.Passed {
		t.Fatalf("expected pass (alias resolution is a warning, not blocking), got %+v", result)
	}
	if result.AliasesResolved != 1 {
		t.Fatalf("expected 1 alias resolved, got %d", result.AliasesResolved)
	}
}

func TestValidator_ValidateAttributes_FlagsInvalidValue(t *testing.T) {
	v := NewValidator(testContract())
	result := v.ValidateAttributes(map[string]any{"task.status": "cancelled"})
	if result.Results[0].Status != ctypes.ConventionInvalidValue {
		t.Fatalf("expected invalid value status, got %+v", result.Results[0])
	}
}

func TestValidator_ValidateAttributes_FlagsMissingRequiredAttribute(t *testing.T) {
	v := NewValidator(testContract())
	result := v.ValidateAttributes(map[string]any{"task.priority": "high"})
	if result.Passed {
		t.Fatal("expected failure: the required task.status attribute is missing")
	}
	if result.Violations != 1 {
		t.Fatalf("expected 1 violation, got %d", result.Violations)
	}
}

func TestValidator_ValidateAttributes_UnknownAttributeIsAdvisoryOnly(t *testing.T) {
	v := NewValidator(testContract())
	result := v.ValidateAttributes(map[string]any{"task.status": "open", "task.random": "x"})
	if !result.Passed {
		t.Fatalf("expected pass: unknown attributes are advisory, got %+v", result)
	}
}
