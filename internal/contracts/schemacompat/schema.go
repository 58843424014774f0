// Package schemacompat implements Layer 2 of the contract enforcement
// framework: cross-service schema compatibility checking. Grounded on
// original_source's contracts/schema_compat/checker.py; read-only —
// it never transforms payloads, only reports drift against a
// declared set of field mappings.
package schemacompat

import (
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// FieldMapping declares how one field flows from a source service to
// a target service, and how strictly that flow is enforced.
type FieldMapping struct {
	SourceService string
	TargetService string
	SourceField   string
	TargetField   string
	SourceType    string // "str", "int", "float", "bool", "list", "dict"; empty = unchecked
	SourceValues  []string // allowed value set for semantic mode, empty = unconstrained
	Mapping       map[string]string // value translation table for semantic mode
	Severity      ctypes.ConstraintSeverity
}

// CompatibilitySpec is a loaded compatibility contract: the full set
// of declared mappings between services.
type CompatibilitySpec struct {
	Mappings []FieldMapping
}

// findMappings returns every mapping declared from sourceService to
// targetService.
func (s *CompatibilitySpec) findMappings(sourceService, targetService string) []FieldMapping {
	var out []FieldMapping
	for _, m := range s.Mappings {
		if m.SourceService == sourceService && m.TargetService == targetService {
			out = append(out, m)
		}
	}
	return out
}

// FindMapping returns the single mapping for a specific source field,
// or false if none is declared.
func (s *CompatibilitySpec) FindMapping(sourceService, targetService, sourceField string) (FieldMapping, bool) {
	for _, m := range s.Mappings {
		if m.SourceService == sourceService && m.TargetService == targetService && m.SourceField == sourceField {
			return m, true
		}
	}
	return FieldMapping{}, false
}

// FieldCompatibilityDetail is the per-mapping outcome of a compatibility check.
type FieldCompatibilityDetail struct {
	SourceField string
	TargetField string
	Compatible  bool
	DriftType   ctypes.DriftType
	Detail      string
}

// CompatibilityResult aggregates every FieldCompatibilityDetail for
// one (source, target, payload) check.
type CompatibilityResult struct {
	Compatible     bool
	Mode           ctypes.CompatMode
	SourceService  string
	TargetService  string
	FieldResults   []FieldCompatibilityDetail
	DriftDetails   []string
	Severity       ctypes.ConstraintSeverity
	Message        string
}
