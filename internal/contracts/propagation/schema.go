// Package propagation implements Layer 1 (context propagation boundary
// validation) and Layer 6 (propagation provenance tracking) of the
// seven-layer contract enforcement framework.
package propagation

import (
	"fmt"

	"github.com/itchyny/gojq"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// Context is the shared, mutable pipeline context: phase name to a
// nested field map for that phase. Values are the decoded JSON/YAML
// representation (string, float64, bool, map[string]any, []any).
type Context map[string]any

// phaseMap returns the nested map for phase, or nil if the phase has
// not written anything yet.
func (c Context) phaseMap(phase string) map[string]any {
	raw, ok := c[phase]
	if !ok {
		return nil
	}
	m, _ := raw.(map[string]any)
	return m
}

// Resolve looks up a dot-separated field path within phase's map.
// Returns (present, value). Does not resolve into list elements.
func (c Context) Resolve(phase, fieldPath string) (bool, any) {
	current := any(c.phaseMap(phase))
	if current == nil {
		return false, nil
	}
	return resolveDotPath(current, fieldPath)
}

// Set writes value at fieldPath within phase's map, creating
// intermediate maps as needed.
func (c Context) Set(phase, fieldPath string, value any) {
	m := c.phaseMap(phase)
	if m == nil {
		m = map[string]any{}
		c[phase] = m
	}
	setDotPath(m, fieldPath, value)
}

func resolveDotPath(root any, path string) (bool, any) {
	parts := splitDot(path)
	current := root
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

func setDotPath(root map[string]any, path string, value any) {
	parts := splitDot(path)
	m := root
	for i, part := range parts {
		if i == len(parts)-1 {
			m[part] = value
			return
		}
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
}

// validateFieldPath rejects an empty path and any path for which
// "." + path does not parse as a jq query under gojq's parser; any
// path that does parse is accepted, whether or not it is a plain
// dot-separated field selector. The parsed query is never run; the actual lookups go through
// resolveDotPath/setDotPath above. This is deliberately narrower than
// the restricted verification-expression evaluator in evaluator.go,
// which never delegates to a third-party parser at all.
func validateFieldPath(path string) error {
	if path == "" {
		return fmt.Errorf("propagation: field path must not be empty")
	}
	if _, err := gojq.Parse("." + path); err != nil {
		return fmt.Errorf("propagation: field path %q is not a valid field selector: %w", path, err)
	}
	return nil
}

func splitDot(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// RequirementField is one entry in a phase's entry/exit/enrichment
// requirement set.
type RequirementField struct {
	Name     string
	Severity ctypes.ConstraintSeverity
	Default  any
	HasDefault bool
}

// RequirementSet groups the fields checked at one boundary point.
type RequirementSet struct {
	Required   []RequirementField
	Enrichment []RequirementField // only meaningful on entry; never blocking
}

// PropagationChain is a declared end-to-end field flow, optionally
// guarded by a restricted verification expression evaluated over
// (context, source_value, dest_value).
type PropagationChain struct {
	ID         string
	SourcePhase string
	SourceField string
	Waypoints  []Waypoint
	DestPhase  string
	DestField  string
	Guard      string // restricted verification expression, empty if none
}

// Waypoint is an intermediate (phase, field) a chain is declared to
// traverse.
type Waypoint struct {
	Phase string
	Field string
}

// PhaseSpec declares one phase's entry, exit, and enrichment
// requirements within a context contract.
type PhaseSpec struct {
	Name  string
	Entry RequirementSet
	Exit  RequirementSet
}

// ContextContract is a loaded, validated context-propagation contract
// for a named pipeline.
type ContextContract struct {
	Pipeline string
	Phases   []PhaseSpec
	Chains   []PropagationChain
}

// Phase looks up a phase spec by name.
func (c *ContextContract) Phase(name string) (PhaseSpec, bool) {
	for _, p := range c.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseSpec{}, false
}

// Validate checks basic structural well-formedness: phase names are
// unique and every chain's source/destination phase is declared.
func (c *ContextContract) Validate() error {
	seen := map[string]bool{}
	for _, p := range c.Phases {
		if seen[p.Name] {
			return fmt.Errorf("propagation: duplicate phase %q in contract %q", p.Name, c.Pipeline)
		}
		seen[p.Name] = true
	}
	for _, chain := range c.Chains {
		if !seen[chain.SourcePhase] {
			return fmt.Errorf("propagation: chain %q references undeclared source phase %q", chain.ID, chain.SourcePhase)
		}
		if !seen[chain.DestPhase] {
			return fmt.Errorf("propagation: chain %q references undeclared destination phase %q", chain.ID, chain.DestPhase)
		}
		if err := validateFieldPath(chain.SourceField); err != nil {
			return fmt.Errorf("propagation: chain %q: %w", chain.ID, err)
		}
		if err := validateFieldPath(chain.DestField); err != nil {
			return fmt.Errorf("propagation: chain %q: %w", chain.ID, err)
		}
		for _, wp := range chain.Waypoints {
			if !seen[wp.Phase] {
				return fmt.Errorf("propagation: chain %q references undeclared waypoint phase %q", chain.ID, wp.Phase)
			}
			if err := validateFieldPath(wp.Field); err != nil {
				return fmt.Errorf("propagation: chain %q: %w", chain.ID, err)
			}
		}
	}
	return nil
}
