package propagation

import (
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// FieldResult is the outcome of checking one required field at a
// phase boundary.
type FieldResult struct {
	Field      string
	Severity   ctypes.ConstraintSeverity
	Present    bool
	Defaulted  bool
	Status     ctypes.PropagationStatus
}

// ValidationResult aggregates the FieldResults checked at a single
// boundary (entry, exit, or enrichment) of one phase.
type ValidationResult struct {
	Phase     string
	Direction string // "entry", "exit", or "enrichment"
	Fields    []FieldResult
}

// Passed is true iff no blocking field failed (was neither present nor
// defaulted).
func (r ValidationResult) Passed() bool {
	for _, f := range r.Fields {
		if f.Severity == ctypes.SeverityBlocking && !f.Present && !f.Defaulted {
			return false
		}
	}
	return true
}

// BlockingFailures returns the names of fields that failed at
// blocking severity.
func (r ValidationResult) BlockingFailures() []string {
	var out []string
	for _, f := range r.Fields {
		if f.Severity == ctypes.SeverityBlocking && !f.Present && !f.Defaulted {
			out = append(out, f.Field)
		}
	}
	return out
}

// PropagationStatus is the worst per-field status across the result.
func (r ValidationResult) PropagationStatus() ctypes.PropagationStatus {
	statuses := make([]ctypes.PropagationStatus, 0, len(r.Fields))
	for _, f := range r.Fields {
		statuses = append(statuses, f.Status)
	}
	return ctypes.Worst(statuses)
}

// BoundaryValidator implements Layer 1: checking a phase name, a
// context map, and a loaded context contract, producing one
// FieldResult per checked field.
type BoundaryValidator struct{}

func NewBoundaryValidator() *BoundaryValidator { return &BoundaryValidator{} }

func (v *BoundaryValidator) checkField(ctx Context, phase string, req RequirementField) FieldResult {
	present, value := ctx.Resolve(phase, req.Name)
	res := FieldResult{Field: req.Name, Severity: req.Severity, Present: present}

	switch {
	case present:
		res.Status = ctypes.PropagationPropagated
	case req.HasDefault:
		ctx.Set(phase, req.Name, req.Default)
		res.Defaulted = true
		res.Present = true
		res.Status = ctypes.PropagationDefaulted
	case req.Severity == ctypes.SeverityBlocking:
		res.Status = ctypes.PropagationFailed
	default:
		res.Status = ctypes.PropagationPartial
	}
	_ = value
	return res
}

// ValidateEntry checks phase's entry requirements plus enrichment
// fields (enrichment is never blocking).
func (v *BoundaryValidator) ValidateEntry(phase string, ctx Context, contract *ContextContract) ValidationResult {
	spec, _ := contract.Phase(phase)
	result := ValidationResult{Phase: phase, Direction: "entry"}
	for _, req := range spec.Entry.Required {
		result.Fields = append(result.Fields, v.checkField(ctx, phase, req))
	}
	for _, req := range spec.Entry.Enrichment {
		req.Severity = ctypes.SeverityAdvisory
		result.Fields = append(result.Fields, v.checkField(ctx, phase, req))
	}
	return result
}

// ValidateEnrichment checks only phase's enrichment fields, forcing
// advisory severity regardless of declared severity.
func (v *BoundaryValidator) ValidateEnrichment(phase string, ctx Context, contract *ContextContract) ValidationResult {
	spec, _ := contract.Phase(phase)
	result := ValidationResult{Phase: phase, Direction: "enrichment"}
	for _, req := range spec.Entry.Enrichment {
		req.Severity = ctypes.SeverityAdvisory
		result.Fields = append(result.Fields, v.checkField(ctx, phase, req))
	}
	return result
}

// ValidateExit checks phase's exit requirements.
func (v *BoundaryValidator) ValidateExit(phase string, ctx Context, contract *ContextContract) ValidationResult {
	spec, _ := contract.Phase(phase)
	result := ValidationResult{Phase: phase, Direction: "exit"}
	for _, req := range spec.Exit.Required {
		result.Fields = append(result.Fields, v.checkField(ctx, phase, req))
	}
	return result
}
