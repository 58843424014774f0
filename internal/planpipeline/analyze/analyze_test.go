package analyze

import (
	"reflect"
	"testing"
	"time"
)

const samplePlan = `# Weaver Cross-Repo Alignment Plan

**Date:** 2026-01-15

## Overview

This plan establishes a unified schema alignment.

## Phase 1: Schema Discovery

**Satisfies:** REQ-001, REQ-002
**Depends on:** None
**Repo:** contextcore

**Deliverables:**
- [ ] src/schema.py — Schema discovery module

**Validation:** Unit tests pass

## Phase 2: Field Alignment

**Satisfies:** FR-003, REQ-004
**Depends on:** Phases 1-1
**Repo:** contextcore

**Deliverables:**
- [ ] src/alignment.py — Alignment engine

**Validation:** Integration tests pass
`

func TestAnalyze_ExtractsPhasesAndTraceability(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	result := Analyze(samplePlan, "weaver-plan.md", nil, now)

	if result.Schema != Schema {
		t.Fatalf("expected schema %q, got %q", Schema, result.Schema)
	}
	if len(result.PhaseMetadata) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(result.PhaseMetadata))
	}
	if result.PhaseMetadata[0].PhaseID != "phase-1" || result.PhaseMetadata[1].PhaseID != "phase-2" {
		t.Fatalf("unexpected phase ids: %+v", result.PhaseMetadata)
	}

	wantSatisfies1 := []string{"REQ-001", "REQ-002"}
	if !reflect.DeepEqual(result.PhaseMetadata[0].Satisfies, wantSatisfies1) {
		t.Fatalf("expected satisfies %v, got %v", wantSatisfies1, result.PhaseMetadata[0].Satisfies)
	}

	if got := result.TraceabilityMatrix["REQ-001"]; len(got) != 1 || got[0] != "phase-1" {
		t.Fatalf("expected REQ-001 traced to phase-1, got %v", got)
	}

	if got := result.DependencyGraph["phase-2"]; len(got) != 1 || got[0] != "phase-1" {
		t.Fatalf("expected phase-2 to depend on phase-1, got %v", got)
	}
}

func TestAnalyze_IsIdempotentExcludingTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	a := Analyze(samplePlan, "weaver-plan.md", nil, now)
	b := Analyze(samplePlan, "weaver-plan.md", nil, now.Add(time.Hour))

	a.GeneratedAt, b.GeneratedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical analysis (excluding GeneratedAt) across repeated runs")
	}
}

func TestAnalyze_DetectsOverlappingRequirementIDs(t *testing.T) {
	docs := []RequirementsInput{
		{Path: "a.md", Text: "REQ-001: First requirement\nREQ-002: Second"},
		{Path: "b.md", Text: "REQ-001: Duplicate of first"},
	}
	result := Analyze("# Plan\n\n## Overview\n\nPlaceholder.\n", "plan.md", docs, time.Time{})

	docsFor := result.ConflictReport.OverlappingIDs["REQ-001"]
	if len(docsFor) != 2 {
		t.Fatalf("expected REQ-001 to overlap across 2 docs, got %v", docsFor)
	}
	if _, overlapping := result.ConflictReport.OverlappingIDs["REQ-002"]; overlapping {
		t.Fatal("REQ-002 only appears once and should not be reported as overlapping")
	}
}
