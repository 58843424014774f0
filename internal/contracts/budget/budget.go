// Package budget implements the SLO budget companion layer from
// spec.md §4.B.8: per-phase consumption tracked against allocations in
// a shared context, with health mapped onto the chain-status
// vocabulary. Grounded on original_source's contracts/budget/validator.py
// (tracker.py/schema.py were not present in the retrieval pack, so the
// BudgetSpec/Allocation shapes and BudgetTracker's consumption
// bookkeeping below are reconstructed from the validator's usage).
package budget

import (
	"fmt"
	"log/slog"

	"github.com/contextcore/core/internal/contracts/propagation"
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// consumptionKey is the reserved context key under which phase-level
// consumption records travel, mirroring propagation's ProvenanceKey
// convention for reserved, dict-shaped bookkeeping in the context.
const consumptionKey = "_cc_budget_consumed"

// Allocation declares a budget's allowance for one phase.
type Allocation struct {
	Phase  string
	Amount float64
}

// Spec declares one SLO budget's total and its per-phase allocations.
type Spec struct {
	BudgetID    string
	Total       float64
	Allocations []Allocation
}

func (s Spec) allocationFor(phase string) float64 {
	for _, a := range s.Allocations {
		if a.Phase == phase {
			return a.Amount
		}
	}
	return 0.0
}

// PropagationSpec is a loaded budget propagation contract: the full
// set of declared budgets.
type PropagationSpec struct {
	Budgets []Spec
}

// Tracker records and retrieves phase-level consumption within a
// shared propagation.Context, keyed by (budget_id, phase).
type Tracker struct{}

func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) consumption(ctx propagation.Context) map[string]map[string]float64 {
	raw, ok := ctx[consumptionKey].(map[string]map[string]float64)
	if !ok {
		raw = map[string]map[string]float64{}
		ctx[consumptionKey] = raw
	}
	return raw
}

// RecordConsumption adds amount to budgetID's consumption for phase.
func (t *Tracker) RecordConsumption(ctx propagation.Context, budgetID, phase string, amount float64) {
	byPhase := t.consumption(ctx)
	if byPhase[budgetID] == nil {
		byPhase[budgetID] = map[string]float64{}
	}
	byPhase[budgetID][phase] += amount
}

// GetPhaseConsumed returns how much of budgetID has been consumed in phase.
func (t *Tracker) GetPhaseConsumed(ctx propagation.Context, budgetID, phase string) float64 {
	return t.consumption(ctx)[budgetID][phase]
}

// GetConsumed returns budgetID's total consumption across every phase.
func (t *Tracker) GetConsumed(ctx propagation.Context, budgetID string) float64 {
	total := 0.0
	for _, v := range t.consumption(ctx)[budgetID] {
		total += v
	}
	return total
}

// CheckResult is the health of a single budget at a single phase (or
// at "__total__" for the whole-budget view).
type CheckResult struct {
	BudgetID  string
	Phase     string
	Health    ctypes.BudgetHealth
	Allocated float64
	Consumed  float64
	Remaining float64
	Message   string
}

// ChainStatus maps this check's health onto the shared chain-status
// vocabulary for interop with Layer 1/5 tooling.
func (r CheckResult) ChainStatus() ctypes.ChainStatus {
	return ctypes.ChainStatusForBudget(r.Health)
}

// SummaryResult aggregates every CheckResult from one validator call.
type SummaryResult struct {
	Passed             bool
	TotalBudgets       int
	Results            []CheckResult
	ExhaustedCount     int
	OverAllocatedCount int
}

// Validator validates budget consumption recorded in a shared context
// against the allocations declared in a PropagationSpec.
type Validator struct {
	contract *PropagationSpec
	tracker  *Tracker
	logger   *slog.Logger
}

func NewValidator(contract *PropagationSpec, logger *slog.Logger) *Validator {
	return &Validator{contract: contract, tracker: NewTracker(), logger: logger}
}

// assessHealth determines budget health for one phase: exhausted if
// the WHOLE budget is spent, over-allocation if only this phase
// overspent its own slice, within-budget otherwise.
func assessHealth(allocated, consumed, total, totalConsumed float64) ctypes.BudgetHealth {
	if totalConsumed >= total {
		return ctypes.BudgetExhausted
	}
	if consumed > allocated && allocated > 0 {
		return ctypes.BudgetOverAllocation
	}
	return ctypes.BudgetWithinBudget
}

// CheckPhase checks every declared budget's health for a single phase.
func (v *Validator) CheckPhase(phase string, ctx propagation.Context) SummaryResult {
	var results []CheckResult

	for _, b := range v.contract.Budgets {
		allocated := b.allocationFor(phase)
		consumed := v.tracker.GetPhaseConsumed(ctx, b.BudgetID, phase)
		totalConsumed := v.tracker.GetConsumed(ctx, b.BudgetID)
		remaining := allocated - consumed

		health := assessHealth(allocated, consumed, b.Total, totalConsumed)
		result := CheckResult{
			BudgetID: b.BudgetID, Phase: phase, Health: health,
			Allocated: allocated, Consumed: consumed, Remaining: remaining,
			Message: buildMessage(b.BudgetID, phase, health, allocated, consumed, remaining),
		}
		results = append(results, result)

		if v.logger != nil && health != ctypes.BudgetWithinBudget {
			v.logger.Warn("budget check", "budget_id", b.BudgetID, "phase", phase, "health", health, "consumed", consumed, "allocated", allocated)
		}
	}

	return summarize(results)
}

// CheckAll checks every declared budget across every allocated phase,
// plus a whole-budget "__total__" view.
func (v *Validator) CheckAll(ctx propagation.Context) SummaryResult {
	var results []CheckResult

	for _, b := range v.contract.Budgets {
		totalConsumed := v.tracker.GetConsumed(ctx, b.BudgetID)

		for _, alloc := range b.Allocations {
			phaseConsumed := v.tracker.GetPhaseConsumed(ctx, b.BudgetID, alloc.Phase)
			remaining := alloc.Amount - phaseConsumed
			health := assessHealth(alloc.Amount, phaseConsumed, b.Total, totalConsumed)
			results = append(results, CheckResult{
				BudgetID: b.BudgetID, Phase: alloc.Phase, Health: health,
				Allocated: alloc.Amount, Consumed: phaseConsumed, Remaining: remaining,
				Message: buildMessage(b.BudgetID, alloc.Phase, health, alloc.Amount, phaseConsumed, remaining),
			})
		}

		totalRemaining := b.Total - totalConsumed
		var totalHealth ctypes.BudgetHealth
		switch {
		case totalConsumed >= b.Total:
			totalHealth = ctypes.BudgetExhausted
		case totalConsumed > b.Total*0.9:
			totalHealth = ctypes.BudgetOverAllocation
		default:
			totalHealth = ctypes.BudgetWithinBudget
		}
		results = append(results, CheckResult{
			BudgetID: b.BudgetID, Phase: "__total__", Health: totalHealth,
			Allocated: b.Total, Consumed: totalConsumed, Remaining: totalRemaining,
			Message: buildMessage(b.BudgetID, "__total__", totalHealth, b.Total, totalConsumed, totalRemaining),
		})
	}

	return summarize(results)
}

func buildMessage(budgetID, phase string, health ctypes.BudgetHealth, allocated, consumed, remaining float64) string {
	switch health {
	case ctypes.BudgetWithinBudget:
		return fmt.Sprintf("budget %q phase %q: within budget (consumed %.2f / allocated %.2f, remaining %.2f)", budgetID, phase, consumed, allocated, remaining)
	case ctypes.BudgetOverAllocation:
		over := remaining
		if over < 0 {
			over = -over
		}
		return fmt.Sprintf("budget %q phase %q: over-allocated (consumed %.2f / allocated %.2f, over by %.2f)", budgetID, phase, consumed, allocated, over)
	default:
		return fmt.Sprintf("budget %q phase %q: EXHAUSTED (consumed %.2f / allocated %.2f)", budgetID, phase, consumed, allocated)
	}
}

func summarize(results []CheckResult) SummaryResult {
	exhausted, overAlloc := 0, 0
	for _, r := range results {
		switch r.Health {
		case ctypes.BudgetExhausted:
			exhausted++
		case ctypes.BudgetOverAllocation:
			overAlloc++
		}
	}
	return SummaryResult{
		Passed: exhausted == 0, TotalBudgets: len(results), Results: results,
		ExhaustedCount: exhausted, OverAllocatedCount: overAlloc,
	}
}
