// Package provenance builds and maintains the run-provenance inventory
// that records which pipeline stage produced each artifact, for which
// downstream consumers, and with what content checksum. Grounded on
// original_source/src/contextcore/utils/artifact_inventory.py.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Role is one of the well-known artifact roles a stage can produce.
type Role string

// Export-stage roles, produced once plan ingestion completes.
const (
	RoleDerivationRules   Role = "derivation_rules"
	RoleResolvedParams    Role = "resolved_parameters"
	RoleOutputContracts   Role = "output_contracts"
	RoleDependencyGraph   Role = "dependency_graph"
	RoleCalibrationHints  Role = "calibration_hints"
	RoleOpenQuestions     Role = "open_questions"
	RoleParameterSources  Role = "parameter_sources"
	RoleSemanticConventions Role = "semantic_conventions"
	RoleExampleArtifacts  Role = "example_artifacts"
	RoleCoverageGaps      Role = "coverage_gaps"
)

// Pre-pipeline roles, produced before the export stage runs.
const (
	RoleProjectContext  Role = "project_context"
	RolePolishReport    Role = "polish_report"
	RoleFixReport       Role = "fix_report"
	RoleRemediatedPlan  Role = "remediated_plan"
)

// ExportInventoryRoles and PrePipelineInventoryRoles enumerate the
// roles this package knows how to classify by stage.
var ExportInventoryRoles = []Role{
	RoleDerivationRules, RoleResolvedParams, RoleOutputContracts, RoleDependencyGraph,
	RoleCalibrationHints, RoleOpenQuestions, RoleParameterSources, RoleSemanticConventions,
	RoleExampleArtifacts, RoleCoverageGaps,
}

var PrePipelineInventoryRoles = []Role{
	RoleProjectContext, RolePolishReport, RoleFixReport, RoleRemediatedPlan,
}

// Entry is one artifact-inventory record.
type Entry struct {
	ArtifactID      string    `json:"artifact_id"`
	Role            Role      `json:"role"`
	Description     string    `json:"description"`
	ProducedBy      string    `json:"produced_by"`
	Stage           string    `json:"stage"`
	SourceFile      string    `json:"source_file"`
	SHA256          string    `json:"sha256"`
	ProducedAt      time.Time `json:"produced_at"`
	Consumers       []string  `json:"consumers"`
	ConsumptionHint string    `json:"consumption_hint,omitempty"`
	JSONPath        string    `json:"json_path,omitempty"`
	Freshness       string    `json:"freshness,omitempty"`
}

// Inventory is the run-provenance document: schema version 2.0.0.
type Inventory struct {
	SchemaVersion string  `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Entries       []Entry `json:"entries"`
}

const SchemaVersion = "2.0.0"

// ComputeSubDocumentChecksum returns the SHA-256 hex digest of data
// marshaled with sorted map keys, so semantically equal documents
// checksum identically regardless of field ordering.
func ComputeSubDocumentChecksum(data any) (string, error) {
	canonical, err := canonicalJSON(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []any:
		out := []byte("[")
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			ib, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ib...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}

// BuildEntry constructs one Entry, computing its artifact_id as
// "{stage}.{role}" and its checksum from content.
func BuildEntry(stage string, role Role, description, producedBy, sourceFile string, content any, consumers []string, consumptionHint string, now time.Time) (Entry, error) {
	checksum, err := ComputeSubDocumentChecksum(content)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ArtifactID:      stage + "." + string(role),
		Role:            role,
		Description:     description,
		ProducedBy:      producedBy,
		Stage:           stage,
		SourceFile:      sourceFile,
		SHA256:          checksum,
		ProducedAt:      now,
		Consumers:       consumers,
		ConsumptionHint: consumptionHint,
	}, nil
}

// BuildExportInventory assembles a fresh Inventory from entries produced
// during one export run.
func BuildExportInventory(entries []Entry, now time.Time) Inventory {
	return Inventory{SchemaVersion: SchemaVersion, GeneratedAt: now, Entries: entries}
}

// Load reads an inventory file, upgrading a schema-version-1 document
// (bare entries list with no schema_version field) to v2 in memory.
func Load(path string) (Inventory, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Inventory{SchemaVersion: SchemaVersion}, nil
	}
	if err != nil {
		return Inventory{}, err
	}

	// v1 document: bare entries array, no envelope.
	var v1Entries []Entry
	if err := json.Unmarshal(raw, &v1Entries); err == nil {
		return Inventory{SchemaVersion: SchemaVersion, Entries: v1Entries}, nil
	}

	var withVersion struct {
		SchemaVersion string  `json:"schema_version"`
		GeneratedAt   time.Time `json:"generated_at"`
		Entries       []Entry `json:"entries"`
	}
	if err := json.Unmarshal(raw, &withVersion); err != nil {
		return Inventory{}, err
	}
	if withVersion.SchemaVersion == "" {
		withVersion.SchemaVersion = SchemaVersion
	}
	return Inventory(withVersion), nil
}

// Extend merges newEntries into the inventory at path, deduplicating by
// artifact_id (existing entries win) and writing atomically via a
// temp-file-then-rename so a crash mid-write never corrupts the
// existing file. Once an artifact_id is registered its record is
// immutable; only genuinely new ids are appended.
func Extend(path string, newEntries []Entry, now time.Time) (Inventory, error) {
	inv, err := Load(path)
	if err != nil {
		return Inventory{}, err
	}

	byID := map[string]Entry{}
	var order []string
	for _, e := range inv.Entries {
		if _, exists := byID[e.ArtifactID]; !exists {
			order = append(order, e.ArtifactID)
		}
		byID[e.ArtifactID] = e
	}
	for _, e := range newEntries {
		if _, exists := byID[e.ArtifactID]; exists {
			continue
		}
		byID[e.ArtifactID] = e
		order = append(order, e.ArtifactID)
	}

	merged := make([]Entry, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}

	out := Inventory{SchemaVersion: SchemaVersion, GeneratedAt: now, Entries: merged}
	if err := writeAtomic(path, out); err != nil {
		return Inventory{}, err
	}
	return out, nil
}

func writeAtomic(path string, inv Inventory) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".run-provenance-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
