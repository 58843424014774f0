package storage

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runBackendContract(t *testing.T, backend Backend) {
	t.Helper()

	h := Handoff{
		ID: "h-1", FromAgent: "a1", ToAgent: "a2", CapabilityID: "cap", Task: "do it",
		Priority: PriorityMedium, Status: HandoffPending,
	}
	if err := backend.SaveHandoff("proj-1", h); err != nil {
		t.Fatal(err)
	}
	got, ok, err := backend.GetHandoff("proj-1", "h-1")
	if err != nil || !ok {
		t.Fatalf("expected to find handoff h-1, ok=%v err=%v", ok, err)
	}
	if got.FromAgent != "a1" {
		t.Fatalf("unexpected handoff: %+v", got)
	}

	if err := backend.UpdateHandoffStatus("proj-1", "h-1", HandoffCompleted, "trace-1", ""); err != nil {
		t.Fatal(err)
	}
	got, _, _ = backend.GetHandoff("proj-1", "h-1")
	if got.Status != HandoffCompleted || got.ResultTraceID != "trace-1" {
		t.Fatalf("expected completed status with trace id, got %+v", got)
	}

	list, err := backend.ListHandoffs("proj-1", HandoffFilter{Status: HandoffCompleted})
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 completed handoff, got %v err=%v", list, err)
	}

	s := Session{SessionID: "s-1", AgentID: "a1", ProjectID: "proj-1", Status: SessionActive}
	if err := backend.SaveSession(s); err != nil {
		t.Fatal(err)
	}
	gotSession, ok, err := backend.GetSession("proj-1", "s-1")
	if err != nil || !ok || gotSession.Status != SessionActive {
		t.Fatalf("expected active session, got %+v ok=%v err=%v", gotSession, ok, err)
	}

	ins := Insight{
		ID: "i-1", ProjectID: "proj-1", AgentID: "a1", InsightType: InsightDiscovery,
		Summary: "found something", Confidence: 0.8, Timestamp: time.Now().UTC(),
	}
	if err := backend.SaveInsight(ins); err != nil {
		t.Fatal(err)
	}
	insights, err := backend.ListInsights("proj-1", InsightFilter{})
	if err != nil || len(insights) != 1 {
		t.Fatalf("expected 1 insight, got %v err=%v", insights, err)
	}

	if err := backend.UpdateGuidance("proj-1", map[string]any{"focus": "reliability"}); err != nil {
		t.Fatal(err)
	}
	guidance, err := backend.GetGuidance("proj-1")
	if err != nil || guidance["focus"] != "reliability" {
		t.Fatalf("unexpected guidance: %v err=%v", guidance, err)
	}
}

func TestMemoryStore_SatisfiesBackendContract(t *testing.T) {
	runBackendContract(t, NewMemoryStore())
}

func TestFileStore_SatisfiesBackendContract(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "default", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	runBackendContract(t, store)
}

func TestSaveHandoff_RejectsInvalidPriority(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveHandoff("proj-1", Handoff{ID: "h-1", Priority: "urgent", Status: HandoffPending})
	if err == nil {
		t.Fatal("expected an error for an invalid priority")
	}
}

func TestSaveInsight_RejectsConfidenceOutsideUnitRange(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveInsight(Insight{ID: "i-1", ProjectID: "p", InsightType: InsightDiscovery, Confidence: 1.5})
	if err == nil {
		t.Fatal("expected an error for confidence outside [0,1]")
	}
}

func TestNew_AutodetectsFileBackendWhenTypeUnset(t *testing.T) {
	backend, err := New(Options{BaseDir: t.TempDir(), Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := backend.(*FileStore); !ok {
		t.Fatalf("expected a *FileStore, got %T", backend)
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	backend, err := New(Options{Type: BackendMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := backend.(*MemoryStore); !ok {
		t.Fatalf("expected a *MemoryStore, got %T", backend)
	}
}
