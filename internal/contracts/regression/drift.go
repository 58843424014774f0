// Package regression implements Layer 7 of the contract enforcement
// framework: contract drift detection between two contract versions,
// and a regression gate that compares a current post-execution report
// against a baseline. Grounded on original_source's
// contracts/regression/{drift,gate}.py.
package regression

import (
	"sort"

	"github.com/contextcore/core/internal/contracts/propagation"
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// ChangeType enumerates the kinds of drift the detector can report.
type ChangeType string

const (
	PhaseAdded      ChangeType = "phase_added"
	PhaseRemoved    ChangeType = "phase_removed"
	FieldAdded      ChangeType = "field_added"
	FieldRemoved    ChangeType = "field_removed"
	SeverityChanged ChangeType = "severity_changed"
	ChainAdded      ChangeType = "chain_added"
	ChainRemoved    ChangeType = "chain_removed"
)

// DriftChange is a single detected change between two contract versions.
type DriftChange struct {
	ChangeType  ChangeType
	Phase       string
	Field       string
	Direction   string // entry | enrichment | exit | exit_optional | chain
	Breaking    bool
	Description string
	OldValue    string
	NewValue    string
}

// DriftReport aggregates every DriftChange found between two contract
// versions.
type DriftReport struct {
	Changes          []DriftChange
	TotalChanges     int
	BreakingCount    int
	NonBreakingCount int
	OldPipelineID    string
	NewPipelineID    string
}

func (r DriftReport) HasBreakingChanges() bool { return r.BreakingCount > 0 }

func (r DriftReport) BreakingChanges() []DriftChange {
	var out []DriftChange
	for _, c := range r.Changes {
		if c.Breaking {
			out = append(out, c)
		}
	}
	return out
}

// Detector compares two ContextContract versions and reports
// propagation-breaking drift.
type Detector struct{}

func NewDetector() *Detector { return &Detector{} }

// Compare detects phase_added/removed, field_added/removed,
// severity_changed, and chain_added/removed drift between old and new.
func (d *Detector) Compare(old, new *propagation.ContextContract) DriftReport {
	var changes []DriftChange
	changes = append(changes, detectPhaseChanges(old, new)...)
	changes = append(changes, detectFieldChanges(old, new)...)
	changes = append(changes, detectChainChanges(old, new)...)

	breaking := 0
	for _, c := range changes {
		if c.Breaking {
			breaking++
		}
	}

	return DriftReport{
		Changes:          changes,
		TotalChanges:     len(changes),
		BreakingCount:    breaking,
		NonBreakingCount: len(changes) - breaking,
		OldPipelineID:    old.Pipeline,
		NewPipelineID:    new.Pipeline,
	}
}

func phaseNameSet(c *propagation.ContextContract) map[string]bool {
	set := make(map[string]bool, len(c.Phases))
	for _, p := range c.Phases {
		set[p.Name] = true
	}
	return set
}

func sortedSetDiff(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func detectPhaseChanges(old, new *propagation.ContextContract) []DriftChange {
	oldPhases, newPhases := phaseNameSet(old), phaseNameSet(new)
	var changes []DriftChange

	for _, phase := range sortedSetDiff(newPhases, oldPhases) {
		changes = append(changes, DriftChange{
			ChangeType: PhaseAdded, Phase: phase, Breaking: false,
			Description: "phase " + phase + " added",
		})
	}
	for _, phase := range sortedSetDiff(oldPhases, newPhases) {
		changes = append(changes, DriftChange{
			ChangeType: PhaseRemoved, Phase: phase, Breaking: true,
			Description: "phase " + phase + " removed, may break downstream dependencies",
		})
	}
	return changes
}

func fieldMap(fields []propagation.RequirementField) map[string]propagation.RequirementField {
	m := make(map[string]propagation.RequirementField, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}

func detectFieldChanges(old, new *propagation.ContextContract) []DriftChange {
	oldPhases, newPhases := phaseNameSet(old), phaseNameSet(new)
	var common []string
	for phase := range oldPhases {
		if newPhases[phase] {
			common = append(common, phase)
		}
	}
	sort.Strings(common)

	var changes []DriftChange
	for _, phaseName := range common {
		oldPhase, _ := old.Phase(phaseName)
		newPhase, _ := new.Phase(phaseName)

		changes = append(changes, compareFieldLists(phaseName, "entry", fieldMap(oldPhase.Entry.Required), fieldMap(newPhase.Entry.Required))...)
		changes = append(changes, compareFieldLists(phaseName, "enrichment", fieldMap(oldPhase.Entry.Enrichment), fieldMap(newPhase.Entry.Enrichment))...)
		changes = append(changes, compareFieldLists(phaseName, "exit", fieldMap(oldPhase.Exit.Required), fieldMap(newPhase.Exit.Required))...)
	}
	return changes
}

func compareFieldLists(phase, direction string, oldFields, newFields map[string]propagation.RequirementField) []DriftChange {
	var changes []DriftChange

	var added, removed, common []string
	for name := range newFields {
		if _, ok := oldFields[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range oldFields {
		if _, ok := newFields[name]; !ok {
			removed = append(removed, name)
		} else {
			common = append(common, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(common)

	for _, name := range added {
		newF := newFields[name]
		breaking := (direction == "entry" || direction == "enrichment") && newF.Severity == ctypes.SeverityBlocking
		desc := "field " + name + " added to " + phase + "/" + direction
		if breaking {
			desc += " (BLOCKING — may break existing callers)"
		}
		changes = append(changes, DriftChange{
			ChangeType: FieldAdded, Phase: phase, Field: name, Direction: direction,
			Breaking: breaking, Description: desc, NewValue: string(newF.Severity),
		})
	}

	for _, name := range removed {
		oldF := oldFields[name]
		breaking := direction == "exit" || direction == "exit_optional"
		desc := "field " + name + " removed from " + phase + "/" + direction
		if breaking {
			desc += " (may break downstream phases)"
		}
		changes = append(changes, DriftChange{
			ChangeType: FieldRemoved, Phase: phase, Field: name, Direction: direction,
			Breaking: breaking, Description: desc, OldValue: string(oldF.Severity),
		})
	}

	for _, name := range common {
		oldSev, newSev := oldFields[name].Severity, newFields[name].Severity
		if oldSev == newSev {
			continue
		}
		breaking := newSev == ctypes.SeverityBlocking && oldSev != ctypes.SeverityBlocking
		desc := "field " + name + " in " + phase + "/" + direction + ": severity " + string(oldSev) + " -> " + string(newSev)
		if breaking {
			desc += " (ESCALATED to blocking)"
		}
		changes = append(changes, DriftChange{
			ChangeType: SeverityChanged, Phase: phase, Field: name, Direction: direction,
			Breaking: breaking, Description: desc, OldValue: string(oldSev), NewValue: string(newSev),
		})
	}

	return changes
}

func chainIDSet(c *propagation.ContextContract) map[string]bool {
	set := make(map[string]bool, len(c.Chains))
	for _, ch := range c.Chains {
		set[ch.ID] = true
	}
	return set
}

func detectChainChanges(old, new *propagation.ContextContract) []DriftChange {
	oldChains, newChains := chainIDSet(old), chainIDSet(new)
	var changes []DriftChange

	for _, id := range sortedSetDiff(newChains, oldChains) {
		changes = append(changes, DriftChange{
			ChangeType: ChainAdded, Field: id, Direction: "chain", Breaking: false,
			Description: "propagation chain " + id + " added",
		})
	}
	for _, id := range sortedSetDiff(oldChains, newChains) {
		changes = append(changes, DriftChange{
			ChangeType: ChainRemoved, Field: id, Direction: "chain", Breaking: true,
			Description: "propagation chain " + id + " removed — end-to-end verification lost",
		})
	}
	return changes
}
