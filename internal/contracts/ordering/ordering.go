// Package ordering implements the causal-ordering companion layer from
// spec.md §4.B.8 (expansion): it verifies that the phase execution
// order observed by the Layer 4 runtime guard is consistent with a
// declared phase dependency graph. Grounded on internal/graph/dag.go's
// edge/cycle-check machinery, adapted from a SQL-backed DAG to a small
// in-memory adjacency map — this companion layer has no persistence
// requirement of its own.
package ordering

import (
	"fmt"
	"time"

	"github.com/contextcore/core/internal/contracts/gate"
	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// PhaseGraph is a declared set of causal dependencies between phases:
// an edge (from, to) means "to" depends on "from" and must not exit
// before "from" has exited.
type PhaseGraph struct {
	edges map[string][]string // to -> froms (dependencies of "to")
}

func NewPhaseGraph() *PhaseGraph {
	return &PhaseGraph{edges: map[string][]string{}}
}

// AddEdge declares that "to" depends on "from". Rejects self-loops and
// edges that would introduce a cycle.
func (g *PhaseGraph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("ordering: self-loop edges are not allowed (%q)", from)
	}
	if g.reachable(from, to) {
		return fmt.Errorf("ordering: adding edge %q -> %q would create a cycle", from, to)
	}
	g.edges[to] = append(g.edges[to], from)
	return nil
}

// reachable reports whether target is reachable from start by walking
// dependency edges, used to pre-check for cycles before AddEdge commits.
func (g *PhaseGraph) reachable(start, target string) bool {
	if start == target {
		return true
	}
	visited := map[string]bool{}
	var walk func(node string) bool
	walk = func(node string) bool {
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, dep := range g.edges[node] {
			if dep == target || walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(start)
}

// DependenciesOf returns the phases that "to" causally depends on.
func (g *PhaseGraph) DependenciesOf(to string) []string {
	out := make([]string, len(g.edges[to]))
	copy(out, g.edges[to])
	return out
}

// CausalOrderGate checks a recorded phase exit order against a
// PhaseGraph, failing if any phase exited before a phase it depends on.
type CausalOrderGate struct {
	graph *PhaseGraph
}

func NewCausalOrderGate(graph *PhaseGraph) *CausalOrderGate {
	return &CausalOrderGate{graph: graph}
}

// Check verifies exitOrder (the sequence in which phases were observed
// to exit by the Layer 4 runtime guard) against the declared graph,
// emitting a gate.Result in the same shape as the other phase gates.
func (g *CausalOrderGate) Check(gateID, taskID string, exitOrder []string, checkedAt time.Time) gate.Result {
	exitedBefore := make(map[string]int, len(exitOrder)) // phase -> exit index
	for i, phase := range exitOrder {
		exitedBefore[phase] = i
	}

	var violations []string
	var evidence []gate.EvidenceItem
	for i, phase := range exitOrder {
		for _, dep := range g.graph.DependenciesOf(phase) {
			depIndex, seen := exitedBefore[dep]
			if !seen || depIndex > i {
				violations = append(violations, fmt.Sprintf("%s before %s", phase, dep))
				evidence = append(evidence, gate.EvidenceItem{
					Type: "causal_order_violation", Ref: phase,
					Description: fmt.Sprintf("phase %q exited before its dependency %q", phase, dep),
				})
			}
		}
	}

	if len(violations) > 0 {
		return gate.Result{
			GateID: gateID, TaskID: taskID, Phase: "causal_ordering",
			Outcome: ctypes.GateFail, Severity: gate.SeverityError,
			Reason:     fmt.Sprintf("causal order violated: %v", violations),
			NextAction: "re-run the affected phases in an order consistent with the declared dependency graph",
			Blocking:   true, Evidence: evidence, CheckedAt: checkedAt,
		}
	}

	return gate.Result{
		GateID: gateID, TaskID: taskID, Phase: "causal_ordering",
		Outcome: ctypes.GatePass, Severity: gate.SeverityInfo,
		Reason:     fmt.Sprintf("%d phase(s) exited in an order consistent with the dependency graph", len(exitOrder)),
		NextAction: "proceed",
		Blocking:   false,
		CheckedAt:  checkedAt,
	}
}
