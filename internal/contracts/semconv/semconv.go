// Package semconv implements Layer 3 of the contract enforcement
// framework: semantic convention validation for attribute naming.
// Grounded on original_source's contracts/semconv/validator.py.
package semconv

import (
	"fmt"
	"sort"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// RequirementLevel mirrors the original's REQUIRED/RECOMMENDED/OPTIONAL
// attribute levels.
type RequirementLevel string

const (
	RequirementRequired    RequirementLevel = "required"
	RequirementRecommended RequirementLevel = "recommended"
	RequirementOptional    RequirementLevel = "optional"
)

// AttributeConvention declares one canonical attribute, its aliases,
// and its allowed value set (nil = unconstrained).
type AttributeConvention struct {
	Name            string
	Aliases         []string
	AllowedValues   []string
	RequirementLevel RequirementLevel
}

// EnumConvention declares a named enum referenced by attributes.
type EnumConvention struct {
	Name       string
	Values     []string
	Extensible bool
}

// ConventionContract is a loaded semantic-convention document.
type ConventionContract struct {
	Attributes []AttributeConvention
	Enums      []EnumConvention
}

// AttributeResult is the per-attribute validation outcome.
type AttributeResult struct {
	Attribute     string
	CanonicalName string // empty if unknown
	Status        ctypes.ConventionState
	Severity      ctypes.ConstraintSeverity
	Message       string
}

// ValidationResult aggregates every AttributeResult for one
// validate-attributes call.
type ValidationResult struct {
	Passed          bool
	TotalChecked    int
	Results         []AttributeResult
	Violations      int
	AliasesResolved int
}

// Validator validates attribute maps against a loaded ConventionContract.
// Lookup tables are built once at construction for O(1) resolution.
type Validator struct {
	contract         *ConventionContract
	canonical        map[string]AttributeConvention
	aliasToCanonical map[string]string
	allowedValues    map[string]map[string]bool // nil entry = unconstrained
	requirementLevel map[string]RequirementLevel
}

func NewValidator(contract *ConventionContract) *Validator {
	v := &Validator{
		contract:         contract,
		canonical:        map[string]AttributeConvention{},
		aliasToCanonical: map[string]string{},
		allowedValues:    map[string]map[string]bool{},
		requirementLevel: map[string]RequirementLevel{},
	}
	for _, attr := range contract.Attributes {
		v.canonical[attr.Name] = attr
		v.requirementLevel[attr.Name] = attr.RequirementLevel
		if attr.AllowedValues != nil {
			set := make(map[string]bool, len(attr.AllowedValues))
			for _, val := range attr.AllowedValues {
				set[val] = true
			}
			v.allowedValues[attr.Name] = set
		}
		for _, alias := range attr.Aliases {
			v.aliasToCanonical[alias] = attr.Name
		}
	}
	return v
}

// ResolveAlias returns the canonical form of name (itself if already
// canonical), or "" if unknown.
func (v *Validator) ResolveAlias(name string) string {
	if _, ok := v.canonical[name]; ok {
		return name
	}
	return v.aliasToCanonical[name]
}

// ValidateValue reports whether value is acceptable for the canonical
// attribute attrName. Unknown attributes and unconstrained attributes
// both report true.
func (v *Validator) ValidateValue(attrName string, value any) bool {
	canonical := v.ResolveAlias(attrName)
	if canonical == "" {
		return true
	}
	allowed, constrained := v.allowedValues[canonical]
	if !constrained {
		return true
	}
	return allowed[fmt.Sprintf("%v", value)]
}

// ValidateAttributes checks every supplied attribute for name
// resolution and value validity, then checks that every REQUIRED
// canonical attribute was present.
func (v *Validator) ValidateAttributes(attributes map[string]any) ValidationResult {
	var results []AttributeResult
	violations := 0
	aliasesResolved := 0
	seenCanonical := map[string]bool{}

	for name, value := range attributes {
		r := v.validateSingle(name, value)
		results = append(results, r)
		if r.CanonicalName != "" {
			seenCanonical[r.CanonicalName] = true
		}
		if r.Status == ctypes.ConventionAliasResolved {
			aliasesResolved++
		}
		if r.Severity == ctypes.SeverityBlocking {
			violations++
		}
	}

	names := make([]string, 0, len(v.requirementLevel))
	for name := range v.requirementLevel {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic ordering for missing-required results
	for _, name := range names {
		if v.requirementLevel[name] == RequirementRequired && !seenCanonical[name] {
			results = append(results, AttributeResult{
				Attribute:     name,
				CanonicalName: name,
				Status:        ctypes.ConventionInvalidValue,
				Severity:      ctypes.SeverityBlocking,
				Message:       fmt.Sprintf("required attribute %q is missing", name),
			})
			violations++
		}
	}

	return ValidationResult{
		Passed:          violations == 0,
		TotalChecked:    len(attributes),
		Results:         results,
		Violations:      violations,
		AliasesResolved: aliasesResolved,
	}
}

func (v *Validator) validateSingle(attrName string, value any) AttributeResult {
	if conv, ok := v.canonical[attrName]; ok {
		if !v.ValidateValue(attrName, value) {
			return AttributeResult{
				Attribute: attrName, CanonicalName: attrName,
				Status: ctypes.ConventionInvalidValue, Severity: ctypes.SeverityWarning,
				Message: fmt.Sprintf("attribute %q has invalid value %v; allowed: %v", attrName, value, sortedKeys(v.allowedValues[attrName])),
			}
		}
		_ = conv
		return AttributeResult{
			Attribute: attrName, CanonicalName: attrName,
			Status: ctypes.ConventionValid, Severity: ctypes.SeverityAdvisory,
		}
	}

	if canonical, ok := v.aliasToCanonical[attrName]; ok {
		if !v.ValidateValue(canonical, value) {
			return AttributeResult{
				Attribute: attrName, CanonicalName: canonical,
				Status: ctypes.ConventionInvalidValue, Severity: ctypes.SeverityWarning,
				Message: fmt.Sprintf("alias %q -> %q has invalid value %v; allowed: %v", attrName, canonical, value, sortedKeys(v.allowedValues[canonical])),
			}
		}
		return AttributeResult{
			Attribute: attrName, CanonicalName: canonical,
			Status: ctypes.ConventionAliasResolved, Severity: ctypes.SeverityWarning,
			Message: fmt.Sprintf("non-canonical name %q resolved to canonical %q", attrName, canonical),
		}
	}

	return AttributeResult{
		Attribute: attrName, CanonicalName: "",
		Status: ctypes.ConventionUnknown, Severity: ctypes.SeverityAdvisory,
		Message: fmt.Sprintf("unknown attribute %q not in convention", attrName),
	}
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return []string{"(any)"}
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
