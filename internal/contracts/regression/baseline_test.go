package regression

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/contextcore/core/internal/contracts/postexec"
)

func TestBaselineStore_RecordAndLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.db")
	store, err := OpenBaselineStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	report := &postexec.Report{CompletenessPct: 98.5, ChainsBroken: 1}
	health := &HealthScore{Overall: 82.0}

	if err := store.Record("payments.fulfillment", report, health, now); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Load("payments.fulfillment")
	if err != nil || !ok {
		t.Fatalf("expected a stored baseline, ok=%v err=%v", ok, err)
	}
	if got.CompletenessPct != 98.5 || got.ChainsBroken != 1 || got.HealthOverall != 82.0 {
		t.Fatalf("unexpected baseline: %+v", got)
	}
	if !got.RecordedAt.Equal(now) {
		t.Fatalf("expected recorded_at %v, got %v", now, got.RecordedAt)
	}
}

func TestBaselineStore_RecordUpserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.db")
	store, err := OpenBaselineStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	if err := store.Record("l", &postexec.Report{CompletenessPct: 90}, &HealthScore{Overall: 70}, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Record("l", &postexec.Report{CompletenessPct: 95}, &HealthScore{Overall: 75}, second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Load("l")
	if err != nil || !ok {
		t.Fatal("expected updated baseline")
	}
	if got.CompletenessPct != 95 || !got.RecordedAt.Equal(second) {
		t.Fatalf("expected upsert to overwrite, got %+v", got)
	}
}

func TestBaselineStore_LoadMissingReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.db")
	store, err := OpenBaselineStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, ok, err := store.Load("nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no baseline for an unrecorded label")
	}
}
