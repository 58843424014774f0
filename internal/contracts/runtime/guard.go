// Package runtime implements Layer 4 of the contract enforcement
// framework: a scoped, stateful runtime boundary guard wrapping
// Layer 1's BoundaryValidator with enforcement-mode semantics.
// Grounded on original_source's contracts/runtime/guard.py.
package runtime

import (
	"fmt"
	"log/slog"

	"github.com/contextcore/core/internal/contracts/propagation"
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// BoundaryViolationError is raised (returned) in strict mode when a
// BLOCKING boundary violation occurs.
type BoundaryViolationError struct {
	Phase     string
	Direction string
	Result    propagation.ValidationResult
}

func (e *BoundaryViolationError) Error() string {
	return fmt.Sprintf("runtime: boundary violation in phase %q (%s): blocking fields: %v",
		e.Phase, e.Direction, e.Result.BlockingFailures())
}

// PhaseExecutionRecord collects every boundary validation result for
// a single phase.
type PhaseExecutionRecord struct {
	Phase             string
	EntryResult       *propagation.ValidationResult
	ExitResult        *propagation.ValidationResult
	EnrichmentResult  *propagation.ValidationResult
}

// Passed is true iff no boundary carried a BLOCKING failure.
func (r PhaseExecutionRecord) Passed() bool {
	for _, res := range []*propagation.ValidationResult{r.EntryResult, r.ExitResult, r.EnrichmentResult} {
		if res != nil && !res.Passed() {
			return false
		}
	}
	return true
}

// PropagationStatus is the worst status across every boundary checked
// for this phase.
func (r PhaseExecutionRecord) PropagationStatus() ctypes.PropagationStatus {
	var statuses []ctypes.PropagationStatus
	for _, res := range []*propagation.ValidationResult{r.EntryResult, r.ExitResult, r.EnrichmentResult} {
		if res != nil {
			statuses = append(statuses, res.PropagationStatus())
		}
	}
	return ctypes.Worst(statuses)
}

// WorkflowRunSummary aggregates every PhaseExecutionRecord collected
// across one guard's lifetime.
type WorkflowRunSummary struct {
	Mode                  ctypes.EnforcementMode
	Phases                []PhaseExecutionRecord
	TotalPhases           int
	PassedPhases          int
	FailedPhases          int
	TotalFieldsChecked    int
	TotalBlockingFailures int
	TotalWarnings         int
	TotalDefaultsApplied  int
	OverallPassed         bool
	OverallStatus         ctypes.PropagationStatus
}

// Guard validates context at phase boundaries using a Layer 1
// BoundaryValidator, enforcing it according to mode and accumulating
// a WorkflowRunSummary across the whole run.
type Guard struct {
	contract       *propagation.ContextContract
	mode           ctypes.EnforcementMode
	validator      *propagation.BoundaryValidator
	logger         *slog.Logger
	records        []PhaseExecutionRecord
	currentRecord  *PhaseExecutionRecord
}

// NewGuard constructs a Guard. logger is injected, never a package
// singleton.
func NewGuard(contract *propagation.ContextContract, mode ctypes.EnforcementMode, logger *slog.Logger) *Guard {
	return &Guard{
		contract:  contract,
		mode:      mode,
		validator: propagation.NewBoundaryValidator(),
		logger:    logger,
	}
}

func (g *Guard) Mode() ctypes.EnforcementMode { return g.mode }

func (g *Guard) Records() []PhaseExecutionRecord {
	out := make([]PhaseExecutionRecord, len(g.records))
	copy(out, g.records)
	return out
}

// EnterPhase validates entry requirements and enrichment for phase.
// In strict mode it returns a *BoundaryViolationError if a BLOCKING
// field is missing.
func (g *Guard) EnterPhase(phase string, ctx propagation.Context) (propagation.ValidationResult, error) {
	record := PhaseExecutionRecord{Phase: phase}
	g.currentRecord = &record

	entryResult := g.validator.ValidateEntry(phase, ctx, g.contract)
	record.EntryResult = &entryResult
	if err := g.handleResult(phase, "entry", entryResult); err != nil {
		return entryResult, err
	}

	enrichmentResult := g.validator.ValidateEnrichment(phase, ctx, g.contract)
	record.EnrichmentResult = &enrichmentResult
	g.logResult(phase, "enrichment", enrichmentResult) // enrichment never blocks

	return entryResult, nil
}

// ExitPhase validates exit requirements for phase. In strict mode it
// returns a *BoundaryViolationError if a BLOCKING field is missing.
func (g *Guard) ExitPhase(phase string, ctx propagation.Context) (propagation.ValidationResult, error) {
	exitResult := g.validator.ValidateExit(phase, ctx, g.contract)

	if g.currentRecord != nil && g.currentRecord.Phase == phase {
		g.currentRecord.ExitResult = &exitResult
		g.records = append(g.records, *g.currentRecord)
		g.currentRecord = nil
	} else {
		g.records = append(g.records, PhaseExecutionRecord{Phase: phase, ExitResult: &exitResult})
	}

	return exitResult, g.handleResult(phase, "exit", exitResult)
}

// WithPhase is the scoped-acquisition variant: once entry validation
// passes, exit validation is guaranteed to run on every control-flow
// path out of fn, including a panic or an early return, mirroring the
// original's context-manager `guard.phase(...)`. A BLOCKING entry
// failure under strict mode returns immediately without running fn or
// exit validation, matching the original (the context manager's body
// never executes if `enter_phase` raises).
func (g *Guard) WithPhase(phase string, ctx propagation.Context, fn func() error) error {
	if _, err := g.EnterPhase(phase, ctx); err != nil {
		return err
	}
	var fnErr error
	func() {
		defer func() {
			if _, exitErr := g.ExitPhase(phase, ctx); exitErr != nil && fnErr == nil {
				fnErr = exitErr
			}
		}()
		fnErr = fn()
	}()
	return fnErr
}

// Summarize produces an aggregated WorkflowRunSummary across every
// phase record collected so far.
func (g *Guard) Summarize() WorkflowRunSummary {
	totalFields, totalBlocking, totalWarnings, totalDefaults := 0, 0, 0, 0

	for _, record := range g.records {
		for _, res := range []*propagation.ValidationResult{record.EntryResult, record.ExitResult, record.EnrichmentResult} {
			if res == nil {
				continue
			}
			totalFields += len(res.Fields)
			totalBlocking += len(res.BlockingFailures())
			for _, f := range res.Fields {
				if f.Defaulted {
					totalDefaults++
				}
				if f.Severity == ctypes.SeverityWarning {
					totalWarnings++
				}
			}
		}
	}

	passedPhases := 0
	for _, r := range g.records {
		if r.Passed() {
			passedPhases++
		}
	}
	failedPhases := len(g.records) - passedPhases

	var statuses []ctypes.PropagationStatus
	for _, r := range g.records {
		statuses = append(statuses, r.PropagationStatus())
	}

	return WorkflowRunSummary{
		Mode:                  g.mode,
		Phases:                g.Records(),
		TotalPhases:           len(g.records),
		PassedPhases:          passedPhases,
		FailedPhases:          failedPhases,
		TotalFieldsChecked:    totalFields,
		TotalBlockingFailures: totalBlocking,
		TotalWarnings:         totalWarnings,
		TotalDefaultsApplied:  totalDefaults,
		OverallPassed:         failedPhases == 0,
		OverallStatus:         ctypes.Worst(statuses),
	}
}

// Reset clears all collected records for a fresh run.
func (g *Guard) Reset() {
	g.records = nil
	g.currentRecord = nil
}

func (g *Guard) handleResult(phase, direction string, result propagation.ValidationResult) error {
	g.logResult(phase, direction, result)
	if !result.Passed() && g.mode == ctypes.ModeStrict {
		return &BoundaryViolationError{Phase: phase, Direction: direction, Result: result}
	}
	return nil
}

func (g *Guard) logResult(phase, direction string, result propagation.ValidationResult) {
	if g.logger == nil {
		return
	}
	switch {
	case !result.Passed():
		g.logger.Warn("runtime boundary check failed", "mode", g.mode, "phase", phase, "direction", direction, "blocking", result.BlockingFailures())
	case len(result.Fields) > 0:
		g.logger.Debug("runtime boundary check passed", "mode", g.mode, "phase", phase, "direction", direction)
	}
}
