package ordering

import (
	"testing"
	"time"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

func TestPhaseGraph_RejectsSelfLoopAndCycle(t *testing.T) {
	g := NewPhaseGraph()
	if err := g.AddEdge("plan", "plan"); err == nil {
		t.Fatal("expected a self-loop to be rejected")
	}
	if err := g.AddEdge("plan", "exec"); err != nil {
		t.Fatalf("expected plan -> exec to be accepted: %v", err)
	}
	if err := g.AddEdge("exec", "plan"); err == nil {
		t.Fatal("expected the reverse edge to be rejected as a cycle")
	}
}

func TestCausalOrderGate_PassesOnConsistentOrder(t *testing.T) {
	g := NewPhaseGraph()
	_ = g.AddEdge("plan", "exec")
	_ = g.AddEdge("exec", "verify")

	cog := NewCausalOrderGate(g)
	result := cog.Check("g1", "task-1", []string{"plan", "exec", "verify"}, time.Now())
	if result.Outcome != ctypes.GatePass {
		t.Fatalf("expected pass, got %s: %s", result.Outcome, result.Reason)
	}
}

func TestCausalOrderGate_FlagsOutOfOrderExit(t *testing.T) {
	g := NewPhaseGraph()
	_ = g.AddEdge("plan", "exec")

	cog := NewCausalOrderGate(g)
	result := cog.Check("g1", "task-1", []string{"exec", "plan"}, time.Now())
	if result.Outcome != ctypes.GateFail {
		t.Fatalf("expected fail, got %s", result.Outcome)
	}
	if !result.Blocking {
		t.Fatal("expected a causal order violation to be blocking")
	}
	if len(result.Evidence) != 1 {
		t.Fatalf("expected 1 evidence item, got %d", len(result.Evidence))
	}
}

func TestCausalOrderGate_FlagsMissingDependency(t *testing.T) {
	g := NewPhaseGraph()
	_ = g.AddEdge("plan", "exec")

	cog := NewCausalOrderGate(g)
	result := cog.Check("g1", "task-1", []string{"exec"}, time.Now())
	if result.Outcome != ctypes.GateFail {
		t.Fatalf("expected fail since plan never exited before exec, got %s", result.Outcome)
	}
}
