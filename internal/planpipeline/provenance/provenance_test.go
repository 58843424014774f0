package provenance

import (
	"path/filepath"
	"testing"
	"time"
)

func TestComputeSubDocumentChecksum_IsOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1}
	b := map[string]any{"a": 1, "b": 2}

	sumA, err := ComputeSubDocumentChecksum(a)
	if err != nil {
		t.Fatal(err)
	}
	sumB, err := ComputeSubDocumentChecksum(b)
	if err != nil {
		t.Fatal(err)
	}
	if sumA != sumB {
		t.Fatalf("expected identical checksums regardless of key order, got %q vs %q", sumA, sumB)
	}
}

func TestBuildEntry_DerivesArtifactIDFromStageAndRole(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	entry, err := BuildEntry("export", RoleDependencyGraph, "phase dependency graph", "analyze.Analyze",
		"weaver-plan.md", map[string]any{"phase-1": []string{}}, []string{"dashboard"}, "render as DAG", now)
	if err != nil {
		t.Fatal(err)
	}
	if entry.ArtifactID != "export.dependency_graph" {
		t.Fatalf("expected artifact_id export.dependency_graph, got %q", entry.ArtifactID)
	}
	if entry.SHA256 == "" {
		t.Fatal("expected a non-empty checksum")
	}
	if !entry.ProducedAt.Equal(now) {
		t.Fatalf("expected produced_at %v, got %v", now, entry.ProducedAt)
	}
}

func TestExtend_DedupesByArtifactIDAndWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-provenance.json")
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	e1, _ := BuildEntry("export", RoleOpenQuestions, "open questions", "manifest.Infer", "plan.md", []string{"q1"}, nil, "", now)
	inv, err := Extend(path, []Entry{e1}, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Entries) != 1 {
		t.Fatalf("expected 1 entry after first extend, got %d", len(inv.Entries))
	}

	later := now.Add(time.Hour)
	e1Updated, _ := BuildEntry("export", RoleOpenQuestions, "open questions (revised)", "manifest.Infer", "plan.md", []string{"q1", "q2"}, nil, "", later)
	e2, _ := BuildEntry("export", RoleCoverageGaps, "coverage gaps", "analyze.Analyze", "plan.md", []string{"REQ-002"}, nil, "", later)

	inv2, err := Extend(path, []Entry{e1Updated, e2}, later)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv2.Entries) != 2 {
		t.Fatalf("expected 2 entries after dedup extend, got %d", len(inv2.Entries))
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Entries) != 2 {
		t.Fatalf("expected 2 entries reloaded from disk, got %d", len(reloaded.Entries))
	}
	for _, e := range reloaded.Entries {
		if e.ArtifactID == "export.open_questions" && e.Description != "open questions" {
			t.Fatalf("expected the pre-existing entry to win dedup, got description %q", e.Description)
		}
	}
	if reloaded.SchemaVersion != SchemaVersion {
		t.Fatalf("expected schema version %q, got %q", SchemaVersion, reloaded.SchemaVersion)
	}
}

func TestLoad_MissingFileReturnsEmptyInventory(t *testing.T) {
	inv, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Entries) != 0 {
		t.Fatalf("expected no entries for a missing file, got %d", len(inv.Entries))
	}
	if inv.SchemaVersion != SchemaVersion {
		t.Fatalf("expected schema version %q, got %q", SchemaVersion, inv.SchemaVersion)
	}
}
