package manifest

import (
	"strings"
	"testing"
	"time"
)

func TestBuildTemplate_UsesProjectNameThroughout(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	m := BuildTemplate("payments-api", now)

	if m.APIVersion != "contextcore.io/v1alpha2" || m.Kind != "ContextManifest" {
		t.Fatalf("unexpected apiVersion/kind: %+v", m)
	}
	if m.Metadata.Name != "payments-api" {
		t.Fatalf("expected metadata.name payments-api, got %q", m.Metadata.Name)
	}
	if m.Spec.Project.Name != "Payments Api" {
		t.Fatalf("expected display name 'Payments Api', got %q", m.Spec.Project.Name)
	}
	if len(m.Metadata.Changelog) != 1 || m.Metadata.Changelog[0].Date != "2026-01-15" {
		t.Fatalf("expected single changelog entry dated 2026-01-15, got %+v", m.Metadata.Changelog)
	}
}

const samplePlanText = `# Payments Settlement Overhaul

This service will implement real-time settlement for the payments team.
It is P1 priority given its availability impact.

### Goals

- Reduce settlement latency below 200ms
- Eliminate double-processing errors

Alert the team in #payments-oncall when settlement lag exceeds budget.

- Do not bypass the ledger reconciliation step.
`

const sampleRequirementsText = `
Availability target: 99.95% uptime.
p99 latency must stay under 250ms.
Expected throughput: 500 rps.
Error budget: 0.05%.
Owner: payments-platform
`

func TestInfer_ExtractsCoreFieldsFromPlanAndRequirements(t *testing.T) {
	base := BuildTemplate("payments-api", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	result := Infer(base, samplePlanText, sampleRequirementsText, "/repos/payments-api", false)

	if result.Manifest.Spec.Business.Criticality != "high" {
		t.Fatalf("expected high criticality from P1 signal, got %q", result.Manifest.Spec.Business.Criticality)
	}
	if result.Manifest.Spec.Requirements.Availability != "99.95" {
		t.Fatalf("expected availability 99.95, got %q", result.Manifest.Spec.Requirements.Availability)
	}
	if result.Manifest.Spec.Requirements.LatencyP99 != "250ms" {
		t.Fatalf("expected latencyP99 250ms, got %q", result.Manifest.Spec.Requirements.LatencyP99)
	}
	if result.Manifest.Spec.Requirements.Throughput != "500rps" {
		t.Fatalf("expected throughput 500rps, got %q", result.Manifest.Spec.Requirements.Throughput)
	}
	if len(result.Manifest.Spec.Observability.AlertChannels) == 0 || result.Manifest.Spec.Observability.AlertChannels[0] != "#payments-oncall" {
		t.Fatalf("expected #payments-oncall alert channel, got %v", result.Manifest.Spec.Observability.AlertChannels)
	}
	if result.Manifest.Spec.Targets[0].Name != "payments-api" {
		t.Fatalf("expected target name payments-api from project root, got %q", result.Manifest.Spec.Targets[0].Name)
	}
	if len(result.Manifest.Guidance.Constraints) == 0 {
		t.Fatal("expected at least one constraint synthesized from guardrail lines")
	}
	if result.CoreInferredCount < 3 {
		t.Fatalf("expected at least 3 core fields inferred, got %d", result.CoreInferredCount)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no low-confidence warning, got %v", result.Warnings)
	}
}

func TestInfer_WarnsWhenFewCoreFieldsInferred(t *testing.T) {
	base := BuildTemplate("empty-svc", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	result := Infer(base, "# Empty Svc\n", "", "", false)

	if result.CoreInferredCount >= 3 {
		t.Fatalf("expected few core fields inferred from sparse input, got %d", result.CoreInferredCount)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(strings.ToLower(w), "low-confidence") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected low-confidence warning, got %v", result.Warnings)
	}
}

func TestInfer_GuidanceQuestionsOnlyEmittedWhenRequested(t *testing.T) {
	base := BuildTemplate("svc", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	plan := "# Svc\n\nShould we migrate the legacy queue first?\n"

	withoutQ := Infer(base, plan, "", "", false)
	if len(withoutQ.Manifest.Guidance.Questions) != 0 {
		t.Fatal("expected no guidance questions when emitGuidanceQuestions is false")
	}

	withQ := Infer(base, plan, "", "", true)
	if len(withQ.Manifest.Guidance.Questions) != 1 {
		t.Fatalf("expected one guidance question, got %v", withQ.Manifest.Guidance.Questions)
	}
}
