package schemacompat

import (
	"fmt"
	"strings"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// Checker checks payload compatibility against a loaded CompatibilitySpec.
type Checker struct {
	spec *CompatibilitySpec
}

func NewChecker(spec *CompatibilitySpec) *Checker {
	return &Checker{spec: spec}
}

// Check runs a compatibility check at the given mode.
func (c *Checker) Check(sourceService, targetService string, payload map[string]any, mode ctypes.CompatMode) CompatibilityResult {
	if mode == ctypes.CompatStructural {
		return c.CheckStructural(sourceService, targetService, payload)
	}
	return c.CheckSemantic(sourceService, targetService, payload)
}

// CheckStructural verifies field presence and type compatibility only.
func (c *Checker) CheckStructural(sourceService, targetService string, payload map[string]any) CompatibilityResult {
	mappings := c.spec.findMappings(sourceService, targetService)
	var fieldResults []FieldCompatibilityDetail
	var driftDetails []string
	hasBlocking := false
	maxSeverity := ctypes.SeverityAdvisory

	for _, m := range mappings {
		present, value := resolveFieldValue(payload, m.SourceField)

		if !present {
			d := FieldCompatibilityDetail{
				SourceField: m.SourceField, TargetField: m.TargetField,
				DriftType: ctypes.DriftMissingField,
				Detail:    fmt.Sprintf("field %q not found in payload", m.SourceField),
			}
			fieldResults = append(fieldResults, d)
			driftDetails = append(driftDetails, d.Detail)
			if m.Severity == ctypes.SeverityBlocking {
				hasBlocking = true
			}
			maxSeverity = maxSeverityOf(maxSeverity, m.Severity)
			continue
		}

		if !checkTypeCompat(value, m.SourceType) {
			d := FieldCompatibilityDetail{
				SourceField: m.SourceField, TargetField: m.TargetField,
				DriftType: ctypes.DriftTypeMismatch,
				Detail:    fmt.Sprintf("field %q expected type %q, got %T", m.SourceField, m.SourceType, value),
			}
			fieldResults = append(fieldResults, d)
			driftDetails = append(driftDetails, d.Detail)
			if m.Severity == ctypes.SeverityBlocking {
				hasBlocking = true
			}
			maxSeverity = maxSeverityOf(maxSeverity, m.Severity)
			continue
		}

		fieldResults = append(fieldResults, FieldCompatibilityDetail{
			SourceField: m.SourceField, TargetField: m.TargetField, Compatible: true,
		})
	}

	return buildResult(ctypes.CompatStructural, sourceService, targetService, fieldResults, driftDetails, hasBlocking, maxSeverity)
}

// CheckSemantic additionally validates allowed value sets and value
// translation tables.
func (c *Checker) CheckSemantic(sourceService, targetService string, payload map[string]any) CompatibilityResult {
	mappings := c.spec.findMappings(sourceService, targetService)
	var fieldResults []FieldCompatibilityDetail
	var driftDetails []string
	hasBlocking := false
	maxSeverity := ctypes.SeverityAdvisory

	record := func(d FieldCompatibilityDetail, sev ctypes.ConstraintSeverity) {
		fieldResults = append(fieldResults, d)
		driftDetails = append(driftDetails, d.Detail)
		if sev == ctypes.SeverityBlocking {
			hasBlocking = true
		}
		maxSeverity = maxSeverityOf(maxSeverity, sev)
	}

	for _, m := range mappings {
		present, value := resolveFieldValue(payload, m.SourceField)

		if !present {
			record(FieldCompatibilityDetail{
				SourceField: m.SourceField, TargetField: m.TargetField,
				DriftType: ctypes.DriftMissingField,
				Detail:    fmt.Sprintf("field %q not found in payload", m.SourceField),
			}, m.Severity)
			continue
		}

		if !checkTypeCompat(value, m.SourceType) {
			record(FieldCompatibilityDetail{
				SourceField: m.SourceField, TargetField: m.TargetField,
				DriftType: ctypes.DriftTypeMismatch,
				Detail:    fmt.Sprintf("field %q expected type %q, got %T", m.SourceField, m.SourceType, value),
			}, m.Severity)
			continue
		}

		strValue := fmt.Sprintf("%v", value)

		if len(m.SourceValues) > 0 && !contains(m.SourceValues, strValue) {
			record(FieldCompatibilityDetail{
				SourceField: m.SourceField, TargetField: m.TargetField,
				DriftType: ctypes.DriftValueOutsideSet,
				Detail:    fmt.Sprintf("value %q for %q not in allowed set %v", strValue, m.SourceField, m.SourceValues),
			}, m.Severity)
			continue
		}

		if m.Mapping != nil {
			if _, ok := m.Mapping[strValue]; !ok {
				record(FieldCompatibilityDetail{
					SourceField: m.SourceField, TargetField: m.TargetField,
					DriftType: ctypes.DriftUnmappedValue,
					Detail:    fmt.Sprintf("value %q for %q has no translation in mapping", strValue, m.SourceField),
				}, m.Severity)
				continue
			}
		}

		fieldResults = append(fieldResults, FieldCompatibilityDetail{
			SourceField: m.SourceField, TargetField: m.TargetField, Compatible: true,
		})
	}

	return buildResult(ctypes.CompatSemantic, sourceService, targetService, fieldResults, driftDetails, hasBlocking, maxSeverity)
}

func buildResult(mode ctypes.CompatMode, sourceService, targetService string, fieldResults []FieldCompatibilityDetail, driftDetails []string, hasBlocking bool, maxSeverity ctypes.ConstraintSeverity) CompatibilityResult {
	compatible := !hasBlocking
	severity := ctypes.SeverityWarning
	if len(driftDetails) > 0 {
		severity = maxSeverity
	}
	return CompatibilityResult{
		Compatible:    compatible,
		Mode:          mode,
		SourceService: sourceService,
		TargetService: targetService,
		FieldResults:  fieldResults,
		DriftDetails:  driftDetails,
		Severity:      severity,
		Message:       buildMessage(compatible, driftDetails),
	}
}

func buildMessage(compatible bool, driftDetails []string) string {
	switch {
	case compatible && len(driftDetails) == 0:
		return "all fields compatible"
	case compatible:
		return fmt.Sprintf("compatible with %d warning(s)", len(driftDetails))
	default:
		return fmt.Sprintf("incompatible: %d drift(s) detected", len(driftDetails))
	}
}

func resolveFieldValue(payload map[string]any, fieldPath string) (bool, any) {
	parts := strings.Split(fieldPath, ".")
	var current any = payload
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return false, nil
		}
		v, ok := m[part]
		if !ok {
			return false, nil
		}
		current = v
	}
	return true, current
}

func checkTypeCompat(value any, expectedType string) bool {
	if expectedType == "" {
		return true
	}
	switch expectedType {
	case "str":
		_, ok := value.(string)
		return ok
	case "int":
		switch value.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case "float":
		_, ok := value.(float64)
		return ok
	case "bool":
		_, ok := value.(bool)
		return ok
	case "list":
		_, ok := value.([]any)
		return ok
	case "dict":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true // unknown type name passes through
	}
}

func maxSeverityOf(current, candidate ctypes.ConstraintSeverity) ctypes.ConstraintSeverity {
	order := map[ctypes.ConstraintSeverity]int{
		ctypes.SeverityAdvisory: 0,
		ctypes.SeverityWarning:  1,
		ctypes.SeverityBlocking: 2,
	}
	if order[candidate] > order[current] {
		return candidate
	}
	return current
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
