package gate

import (
	"testing"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

func TestCheckChecksumChain_PassesOnExactMatch(t *testing.T) {
	r := CheckChecksumChain(ChecksumChainInput{
		GateID:            "g1",
		ExpectedChecksums: map[string]string{"a.json": "abc", "b.json": "def"},
		ActualChecksums:   map[string]string{"a.json": "abc", "b.json": "def"},
	})
	if r.Outcome != ctypes.GatePass {
		t.Fatalf("expected pass, got %s: %s", r.Outcome, r.Reason)
	}
}

func TestCheckChecksumChain_FlagsMismatchAndMissing(t *testing.T) {
	r := CheckChecksumChain(ChecksumChainInput{
		GateID:            "g1",
		Blocking:          true,
		ExpectedChecksums: map[string]string{"a.json": "abc", "b.json": "def"},
		ActualChecksums:   map[string]string{"a.json": "xyz"},
	})
	if r.Outcome != ctypes.GateFail {
		t.Fatalf("expected fail, got %s", r.Outcome)
	}
	if len(r.Evidence) != 2 {
		t.Fatalf("expected 2 evidence items (1 mismatch, 1 missing), got %d", len(r.Evidence))
	}
	if !r.Blocking {
		t.Fatal("expected blocking to propagate from input")
	}
}

func TestCheckMappingCompleteness_FlagsUnmapped(t *testing.T) {
	r := CheckMappingCompleteness(MappingCompletenessInput{
		ArtifactIDs: []string{"art-1", "art-2"},
		TaskMapping: map[string]string{"art-1": "task-1"},
	})
	if r.Outcome != ctypes.GateFail {
		t.Fatalf("expected fail, got %s", r.Outcome)
	}
	if len(r.Evidence) != 1 || r.Evidence[0].Ref != "art-2" {
		t.Fatalf("expected evidence for art-2, got %+v", r.Evidence)
	}
}

func TestCheckGapParity_DetectsMissingAndOrphan(t *testing.T) {
	r := CheckGapParity(GapParityInput{
		GapIDs:     []string{"gap-1", "gap-2"},
		FeatureIDs: []string{"gap-1", "gap-3"},
	})
	if r.Outcome != ctypes.GateFail {
		t.Fatalf("expected fail, got %s", r.Outcome)
	}
	if len(r.Evidence) != 2 {
		t.Fatalf("expected missing gap-2 + orphan gap-3, got %+v", r.Evidence)
	}
}

func TestChecker_AccumulatesAndReportsBlockingFailures(t *testing.T) {
	c := NewChecker("trace-1")
	c.CheckChecksumChain(ChecksumChainInput{GateID: "g1", ExpectedChecksums: map[string]string{"a": "1"}, ActualChecksums: map[string]string{"a": "1"}})
	c.CheckMappingCompleteness(MappingCompletenessInput{GateID: "g2", Blocking: true, ArtifactIDs: []string{"x"}, TaskMapping: map[string]string{}})

	if c.AllPassed() {
		t.Fatal("expected AllPassed to be false")
	}
	if !c.HasBlockingFailure() {
		t.Fatal("expected a blocking failure")
	}
	failures := c.BlockingFailures()
	if len(failures) != 1 || failures[0].GateID != "g2" {
		t.Fatalf("unexpected blocking failures: %+v", failures)
	}
	for _, r := range c.Results {
		if r.TraceID != "trace-1" {
			t.Fatalf("expected trace id to propagate to every result, got %q", r.TraceID)
		}
	}

	summary := c.Summary()
	if summary["total_gates"] != 2 || summary["blocking_failures"] != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
