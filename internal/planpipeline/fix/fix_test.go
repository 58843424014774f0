package fix

import (
	"strings"
	"testing"
)

const weaverLikePlan = `# Weaver Cross-Repo Alignment Plan

## Overview

This plan establishes a unified schema alignment across all repositories
in the Wayfinder ecosystem. It will implement consistent field naming,
enable cross-repo discovery, and ensure backward compatibility.

## Phase 1: Schema Discovery

**Satisfies:** REQ-001, REQ-002
**Depends on:** None
**Repo:** contextcore

**Deliverables:**
- [ ] ` + "`src/schema.py`" + ` — Schema discovery module

**Validation:** Unit tests pass

## Phase 2: Field Alignment

**Satisfies:** FR-003, REQ-004
**Depends on:** Phase 1
**Repo:** contextcore

**Deliverables:**
- [ ] ` + "`src/alignment.py`" + ` — Alignment engine

**Validation:** Integration tests pass

## Risks

- Schema migration may break existing consumers

## Validation

- All repos pass cross-schema validation
`

const alreadyFixedPlan = `# Already Fixed Plan

## Overview

**Objectives:** Implement unified schema alignment across repos.

**Goals:**
- Complete schema discovery
- Complete field alignment

## Functional Requirements

| ID | Source Phase |
|-----|-------------|
| REQ-001 | Phase 1: Schema Discovery |

## Phase 1: Schema Discovery

**Satisfies:** REQ-001
**Repo:** contextcore

**Deliverables:**
- [ ] ` + "`src/schema.py`" + ` — Schema module

**Validation:** Tests pass

## Risks

- Migration risk

## Validation

- All tests pass
`

func findAction(t *testing.T, actions []FixAction, checkID string) FixAction {
	t.Helper()
	for _, a := range actions {
		if a.CheckID == checkID {
			return a
		}
	}
	t.Fatalf("no action found for check %q", checkID)
	return FixAction{}
}

func TestApply_OverviewObjectivesExtractedFromProse(t *testing.T) {
	result := Apply(weaverLikePlan, "weaver-plan.md")

	action := findAction(t, result.Actions, CheckOverviewObjectives)
	if action.Status != StatusFixed {
		t.Fatalf("expected fixed, got %q (%s)", action.Status, action.Reason)
	}
	if action.Strategy != "extract_from_overview_prose" {
		t.Fatalf("unexpected strategy %q", action.Strategy)
	}
	if !objectivesPresent.MatchString(result.RemediatedContent) {
		t.Fatal("expected **Objectives:** in remediated content")
	}
}

func TestApply_OverviewGoalsSynthesizedFromPhases(t *testing.T) {
	result := Apply(weaverLikePlan, "weaver-plan.md")

	action := findAction(t, result.Actions, CheckOverviewGoals)
	if action.Status != StatusFixed || action.Strategy != "synthesize_from_phases" {
		t.Fatalf("unexpected action %+v", action)
	}
	if !goalsPresent.MatchString(result.RemediatedContent) {
		t.Fatal("expected **Goals:** in remediated content")
	}
}

func TestApply_RequirementsExistBuildsTable(t *testing.T) {
	result := Apply(weaverLikePlan, "weaver-plan.md")

	action := findAction(t, result.Actions, CheckRequirementsExist)
	if action.Status != StatusFixed || action.Strategy != "collect_req_ids_from_satisfies" {
		t.Fatalf("unexpected action %+v", action)
	}
	for _, want := range []string{"## Functional Requirements", "REQ-001", "FR-003"} {
		if !strings.Contains(result.RemediatedContent, want) {
			t.Fatalf("expected remediated content to contain %q", want)
		}
	}
}

func TestApply_IdempotentOnAlreadyFixedPlan(t *testing.T) {
	result := Apply(alreadyFixedPlan, "fixed-plan.md")

	if result.FixedCount != 0 {
		t.Fatalf("expected 0 fixes on already-fixed plan, got %d", result.FixedCount)
	}
	if result.RemediatedContent != result.OriginalContent {
		t.Fatal("expected remediated content to equal original on already-fixed plan")
	}
	for _, id := range FixableCheckIDs {
		if a := findAction(t, result.Actions, id); a.Status != StatusNotApplicable {
			t.Fatalf("expected not_applicable for %q, got %q", id, a.Status)
		}
	}
}

func TestApply_UnfixableObjectivesSkippedWithReason(t *testing.T) {
	content := "# Strict Test Plan\n\n## Overview\n\nShort.\n"
	result := Apply(content, "strict-test.md")

	action := findAction(t, result.Actions, CheckOverviewObjectives)
	if action.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %q", action.Status)
	}
	if len(action.Reason) < 10 {
		t.Fatalf("expected a descriptive skip reason, got %q", action.Reason)
	}
}
