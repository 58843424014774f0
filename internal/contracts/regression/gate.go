package regression

import (
	"fmt"
	"log/slog"

	"github.com/contextcore/core/internal/contracts/postexec"
)

// HealthScore is a unified health score supplied by the caller's own
// observability layer (Layer 6 in the companion budget/ordering sense);
// only the aggregate figure is needed here.
type HealthScore struct {
	Overall float64
}

// GateCheck is the result of a single regression gate check.
type GateCheck struct {
	CheckID       string
	Passed        bool
	Message       string
	BaselineValue *float64
	CurrentValue  *float64
}

// GateResult aggregates every GateCheck run by one Gate.Check call.
type GateResult struct {
	Passed       bool
	Checks       []GateCheck
	TotalChecks  int
	FailedChecks int
}

func (r GateResult) Failures() []GateCheck {
	var out []GateCheck
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Thresholds configures a Gate's pass/fail boundaries.
type Thresholds struct {
	MinHealthScore              float64
	MaxCompletenessDrop         float64
	MaxBlockingFailureIncrease  int
}

// DefaultThresholds mirrors original_source's DEFAULT_THRESHOLDS.
func DefaultThresholds() Thresholds {
	return Thresholds{MinHealthScore: 70.0, MaxCompletenessDrop: 5.0, MaxBlockingFailureIncrease: 0}
}

// Gate is a CI/CD regression gate comparing current propagation health
// against a baseline.
type Gate struct {
	thresholds         Thresholds
	allowBreakingDrift bool
	logger             *slog.Logger
}

func NewGate(thresholds Thresholds, allowBreakingDrift bool, logger *slog.Logger) *Gate {
	return &Gate{thresholds: thresholds, allowBreakingDrift: allowBreakingDrift, logger: logger}
}

// Check runs every applicable check against the supplied inputs; any
// combination may be nil, and checks that cannot be evaluated from the
// given inputs are skipped.
func (g *Gate) Check(baselineReport, currentReport *postexec.Report, driftReport *DriftReport, baselineHealth, currentHealth *HealthScore) GateResult {
	var checks []GateCheck
	checks = append(checks, g.checkCompleteness(baselineReport, currentReport)...)
	checks = append(checks, g.checkHealth(baselineHealth, currentHealth)...)
	checks = append(checks, g.checkDrift(driftReport)...)
	checks = append(checks, g.checkBlockingFailures(baselineReport, currentReport)...)

	failed := 0
	for _, c := range checks {
		if !c.Passed {
			failed++
		}
	}
	passed := failed == 0

	if g.logger != nil {
		if !passed {
			g.logger.Warn("regression gate failed", "failed", failed, "total", len(checks))
		} else {
			g.logger.Info("regression gate passed", "total", len(checks))
		}
	}

	return GateResult{Passed: passed, Checks: checks, TotalChecks: len(checks), FailedChecks: failed}
}

func f64(v float64) *float64 { return &v }

func (g *Gate) checkCompleteness(baseline, current *postexec.Report) []GateCheck {
	if baseline == nil || current == nil {
		return nil
	}
	drop := baseline.CompletenessPct - current.CompletenessPct
	passed := drop <= g.thresholds.MaxCompletenessDrop
	msg := fmt.Sprintf("completeness OK: %.1f%% (baseline=%.1f%%)", current.CompletenessPct, baseline.CompletenessPct)
	if !passed {
		msg = fmt.Sprintf("completeness dropped by %.1f%% (baseline=%.1f%%, current=%.1f%%, max_allowed=%.1f%%)", drop, baseline.CompletenessPct, current.CompletenessPct, g.thresholds.MaxCompletenessDrop)
	}
	return []GateCheck{{
		CheckID: "completeness_regression", Passed: passed, Message: msg,
		BaselineValue: f64(baseline.CompletenessPct), CurrentValue: f64(current.CompletenessPct),
	}}
}

func (g *Gate) checkHealth(baseline, current *HealthScore) []GateCheck {
	var checks []GateCheck

	if current != nil {
		passed := current.Overall >= g.thresholds.MinHealthScore
		msg := fmt.Sprintf("health score OK: %.1f >= %.1f", current.Overall, g.thresholds.MinHealthScore)
		if !passed {
			msg = fmt.Sprintf("health score %.1f below minimum %.1f", current.Overall, g.thresholds.MinHealthScore)
		}
		checks = append(checks, GateCheck{CheckID: "health_minimum", Passed: passed, Message: msg, CurrentValue: f64(current.Overall)})
	}

	if baseline != nil && current != nil {
		drop := baseline.Overall - current.Overall
		passed := drop <= g.thresholds.MaxCompletenessDrop
		msg := fmt.Sprintf("health regression OK: %.1f (baseline=%.1f)", current.Overall, baseline.Overall)
		if !passed {
			msg = fmt.Sprintf("health score dropped by %.1f (baseline=%.1f, current=%.1f)", drop, baseline.Overall, current.Overall)
		}
		checks = append(checks, GateCheck{CheckID: "health_regression", Passed: passed, Message: msg, BaselineValue: f64(baseline.Overall), CurrentValue: f64(current.Overall)})
	}

	return checks
}

func (g *Gate) checkDrift(drift *DriftReport) []GateCheck {
	if drift == nil {
		return nil
	}
	if !drift.HasBreakingChanges() {
		return []GateCheck{{
			CheckID: "contract_drift", Passed: true,
			Message: fmt.Sprintf("no breaking drift (%d non-breaking changes)", drift.TotalChanges),
		}}
	}

	passed := g.allowBreakingDrift
	breaking := drift.BreakingChanges()
	descLimit := breaking
	suffix := ""
	if len(breaking) > 3 {
		descLimit = breaking[:3]
		suffix = fmt.Sprintf(" ... and %d more", len(breaking)-3)
	}
	desc := ""
	for i, c := range descLimit {
		if i > 0 {
			desc += "; "
		}
		desc += c.Description
	}

	return []GateCheck{{
		CheckID: "contract_drift", Passed: passed,
		Message:      fmt.Sprintf("%d breaking contract changes: %s%s", drift.BreakingCount, desc, suffix),
		CurrentValue: f64(float64(drift.BreakingCount)),
	}}
}

func (g *Gate) checkBlockingFailures(baseline, current *postexec.Report) []GateCheck {
	if current == nil {
		return nil
	}
	currentBroken := current.ChainsBroken
	baselineBroken := 0
	if baseline != nil {
		baselineBroken = baseline.ChainsBroken
	}
	increase := currentBroken - baselineBroken
	passed := increase <= g.thresholds.MaxBlockingFailureIncrease
	msg := fmt.Sprintf("broken chains OK: %d (baseline=%d)", currentBroken, baselineBroken)
	if !passed {
		msg = fmt.Sprintf("broken chains increased by %d (baseline=%d, current=%d)", increase, baselineBroken, currentBroken)
	}
	return []GateCheck{{
		CheckID: "blocking_failures", Passed: passed, Message: msg,
		BaselineValue: f64(float64(baselineBroken)), CurrentValue: f64(float64(currentBroken)),
	}}
}
