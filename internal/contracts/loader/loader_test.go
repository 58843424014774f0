package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validContract = `
pipeline: plan-ingestion
phases:
  - name: analyze
    entry:
      required:
        - name: plan_text
          severity: blocking
    exit:
      required:
        - name: plan_analysis
          severity: blocking
  - name: fix
    entry:
      required:
        - name: plan_analysis
          severity: blocking
    exit: {}
chains:
  - id: plan-analysis-flow
    source_phase: analyze
    source_field: plan_analysis
    dest_phase: fix
    dest_field: plan_analysis
    guard: "dest != \"\" and dest == source"
`

func TestLoadContextContract_ParsesValidDocument(t *testing.T) {
	path := writeTemp(t, "contract.yaml", validContract)
	contract, err := LoadContextContract(path)
	if err != nil {
		t.Fatal(err)
	}
	if contract.Pipeline != "plan-ingestion" {
		t.Fatalf("expected pipeline plan-ingestion, got %q", contract.Pipeline)
	}
	if len(contract.Phases) != 2 || len(contract.Chains) != 1 {
		t.Fatalf("expected 2 phases and 1 chain, got %d phases %d chains", len(contract.Phases), len(contract.Chains))
	}
}

func TestLoadContextContract_RejectsUnknownTopLevelKey(t *testing.T) {
	path := writeTemp(t, "contract.yaml", validContract+"\nextra_field: true\n")
	if _, err := LoadContextContract(path); err == nil {
		t.Fatal("expected an error for an unknown top-level key")
	}
}

func TestLoadContextContract_RejectsUnknownNestedPhaseKey(t *testing.T) {
	bad := `
pipeline: p
phases:
  - name: analyze
    entry:
      required: []
    exit: {}
    bogus: true
chains: []
`
	path := writeTemp(t, "contract.yaml", bad)
	if _, err := LoadContextContract(path); err == nil {
		t.Fatal("expected an error for an unknown phase-level key")
	}
}

func TestLoadContextContract_RejectsInvalidGuardExpression(t *testing.T) {
	bad := `
pipeline: p
phases:
  - name: analyze
    entry: {}
    exit: {}
  - name: fix
    entry: {}
    exit: {}
chains:
  - id: c1
    source_phase: analyze
    source_field: x
    dest_phase: fix
    dest_field: y
    guard: "os.system('rm -rf /')"
`
	path := writeTemp(t, "contract.yaml", bad)
	if _, err := LoadContextContract(path); err == nil {
		t.Fatal("expected an error for a guard expression outside the allowed identifier roots")
	}
}

func TestLoadContextContract_RejectsChainReferencingUndeclaredPhase(t *testing.T) {
	bad := `
pipeline: p
phases:
  - name: analyze
    entry: {}
    exit: {}
chains:
  - id: c1
    source_phase: analyze
    source_field: x
    dest_phase: nonexistent
    dest_field: y
    guard: ""
`
	path := writeTemp(t, "contract.yaml", bad)
	if _, err := LoadContextContract(path); err == nil {
		t.Fatal("expected an error for a chain referencing an undeclared destination phase")
	}
}

const validCompatSpec = `
mappings:
  - source_service: planner
    target_service: executor
    source_field: status
    target_field: state
    source_type: str
    source_values: ["ok", "error"]
    mapping:
      ok: success
      error: failure
    severity: blocking
`

func TestLoadCompatibilitySpec_ParsesValidDocument(t *testing.T) {
	path := writeTemp(t, "compat.yaml", validCompatSpec)
	spec, err := LoadCompatibilitySpec(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.Mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(spec.Mappings))
	}
	m, ok := spec.FindMapping("planner", "executor", "status")
	if !ok || m.TargetField != "state" {
		t.Fatalf("expected mapping status->state, got %+v ok=%v", m, ok)
	}
}

func TestLoadCompatibilitySpec_RejectsUnknownKey(t *testing.T) {
	path := writeTemp(t, "compat.yaml", validCompatSpec+"\nbogus: true\n")
	if _, err := LoadCompatibilitySpec(path); err == nil {
		t.Fatal("expected an error for an unknown top-level key")
	}
}
