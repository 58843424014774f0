// Package gate implements the reusable phase-gate library from
// spec.md §4.B.8: checksum-chain integrity, artifact-task mapping
// completeness, and gap parity, each emitting a typed GateResult.
// Grounded on original_source's contracts/a2a/gates.py.
package gate

import (
	"fmt"
	"sort"
	"time"

	ctypes "github.com/contextcore/core/internal/contracts/types"
)

// EvidenceItem records one concrete piece of evidence backing a gate
// outcome.
type EvidenceItem struct {
	Type        string
	Ref         string
	Description string
}

// Severity mirrors the original's GateSeverity.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Result is the typed outcome of one phase gate check.
type Result struct {
	GateID     string
	TraceID    string
	TaskID     string
	Phase      string
	Outcome    ctypes.GateOutcome
	Severity   Severity
	Reason     string
	NextAction string
	Blocking   bool
	Evidence   []EvidenceItem
	CheckedAt  time.Time
}

// ChecksumChainInput parameterizes a checksum-chain integrity check.
type ChecksumChainInput struct {
	GateID            string
	TaskID            string
	Phase             string
	ExpectedChecksums map[string]string
	ActualChecksums   map[string]string
	TraceID           string
	Blocking          bool
	CheckedAt         time.Time
}

// CheckChecksumChain verifies that every expected checksum is present
// in actual and matches exactly.
func CheckChecksumChain(in ChecksumChainInput) Result {
	var mismatches, missing []string
	var evidence []EvidenceItem

	keys := make([]string, 0, len(in.ExpectedChecksums))
	for k := range in.ExpectedChecksums {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := in.ExpectedChecksums[key]
		actual, ok := in.ActualChecksums[key]
		switch {
		case !ok:
			missing = append(missing, key)
			evidence = append(evidence, EvidenceItem{Type: "checksum_missing", Ref: key,
				Description: fmt.Sprintf("expected checksum for %q but not found in actual checksums", key)})
		case actual != expected:
			mismatches = append(mismatches, key)
			evidence = append(evidence, EvidenceItem{Type: "checksum_mismatch", Ref: key,
				Description: fmt.Sprintf("checksum mismatch for %q: expected=%s, actual=%s", key, expected, actual)})
		}
	}

	if len(mismatches) > 0 || len(missing) > 0 {
		reason := "checksum chain broken"
		if len(mismatches) > 0 {
			reason += fmt.Sprintf(" — mismatched: %v", mismatches)
		}
		if len(missing) > 0 {
			reason += fmt.Sprintf("; missing: %v", missing)
		}
		return Result{
			GateID: in.GateID, TraceID: in.TraceID, TaskID: in.TaskID, Phase: in.Phase,
			Outcome: ctypes.GateFail, Severity: SeverityError, Reason: reason,
			NextAction: "regenerate upstream artifacts with matching checksums before proceeding",
			Blocking:   in.Blocking, Evidence: evidence, CheckedAt: in.CheckedAt,
		}
	}

	return Result{
		GateID: in.GateID, TraceID: in.TraceID, TaskID: in.TaskID, Phase: in.Phase,
		Outcome: ctypes.GatePass, Severity: SeverityInfo,
		Reason:     "all checksums match expected chain",
		NextAction: fmt.Sprintf("proceed to next phase after %s", in.Phase),
		Blocking:   false,
		Evidence: []EvidenceItem{{Type: "checksum_verified", Ref: "all",
			Description: fmt.Sprintf("verified %d checksum(s)", len(in.ExpectedChecksums))}},
		CheckedAt: in.CheckedAt,
	}
}

// MappingCompletenessInput parameterizes an artifact-task mapping
// completeness check.
type MappingCompletenessInput struct {
	GateID      string
	TaskID      string
	Phase       string
	ArtifactIDs []string
	TaskMapping map[string]string
	TraceID     string
	Blocking    bool
	CheckedAt   time.Time
}

// CheckMappingCompleteness verifies every artifact ID has a
// corresponding task mapping entry.
func CheckMappingCompleteness(in MappingCompletenessInput) Result {
	var unmapped []string
	var evidence []EvidenceItem
	for _, aid := range in.ArtifactIDs {
		if _, ok := in.TaskMapping[aid]; !ok {
			unmapped = append(unmapped, aid)
			evidence = append(evidence, EvidenceItem{Type: "unmapped_artifact", Ref: aid,
				Description: fmt.Sprintf("artifact %q has no task mapping entry", aid)})
		}
	}

	if len(unmapped) > 0 {
		return Result{
			GateID: in.GateID, TraceID: in.TraceID, TaskID: in.TaskID, Phase: in.Phase,
			Outcome: ctypes.GateFail, Severity: SeverityError,
			Reason:     fmt.Sprintf("mapping incomplete: %d artifact(s) unmapped — %v", len(unmapped), unmapped),
			NextAction: "add task mapping entries for all unmapped artifacts before proceeding",
			Blocking:   in.Blocking, Evidence: evidence, CheckedAt: in.CheckedAt,
		}
	}

	return Result{
		GateID: in.GateID, TraceID: in.TraceID, TaskID: in.TaskID, Phase: in.Phase,
		Outcome: ctypes.GatePass, Severity: SeverityInfo,
		Reason:     fmt.Sprintf("all %d artifact(s) mapped to tasks", len(in.ArtifactIDs)),
		NextAction: fmt.Sprintf("proceed to next phase after %s", in.Phase),
		Blocking:   false,
		Evidence: []EvidenceItem{{Type: "mapping_complete", Ref: "artifact_task_mapping",
			Description: fmt.Sprintf("verified %d mapping(s)", len(in.ArtifactIDs))}},
		CheckedAt: in.CheckedAt,
	}
}

// GapParityInput parameterizes a coverage-gap-to-feature parity check.
type GapParityInput struct {
	GateID     string
	TaskID     string
	Phase      string
	GapIDs     []string
	FeatureIDs []string
	TraceID    string
	Blocking   bool
	CheckedAt  time.Time
}

// CheckGapParity verifies every coverage gap produced a matching
// parsed feature, and no feature is orphaned (present without a gap) —
// catching artifacts silently dropped during parse/transform.
func CheckGapParity(in GapParityInput) Result {
	gapSet := toSet(in.GapIDs)
	featureSet := toSet(in.FeatureIDs)

	var missingFeatures, orphanFeatures []string
	for g := range gapSet {
		if !featureSet[g] {
			missingFeatures = append(missingFeatures, g)
		}
	}
	for f := range featureSet {
		if !gapSet[f] {
			orphanFeatures = append(orphanFeatures, f)
		}
	}
	sort.Strings(missingFeatures)
	sort.Strings(orphanFeatures)

	var problems []string
	var evidence []EvidenceItem
	if len(missingFeatures) > 0 {
		problems = append(problems, fmt.Sprintf("%d gap(s) have no matching feature", len(missingFeatures)))
		for _, gid := range missingFeatures {
			evidence = append(evidence, EvidenceItem{Type: "missing_feature", Ref: gid,
				Description: fmt.Sprintf("gap %q has no corresponding parsed feature", gid)})
		}
	}
	if len(orphanFeatures) > 0 {
		problems = append(problems, fmt.Sprintf("%d feature(s) have no matching gap", len(orphanFeatures)))
		for _, fid := range orphanFeatures {
			evidence = append(evidence, EvidenceItem{Type: "orphan_feature", Ref: fid,
				Description: fmt.Sprintf("feature %q has no corresponding gap", fid)})
		}
	}

	if len(problems) > 0 {
		reason := "gap parity broken: "
		for i, p := range problems {
			if i > 0 {
				reason += "; "
			}
			reason += p
		}
		return Result{
			GateID: in.GateID, TraceID: in.TraceID, TaskID: in.TaskID, Phase: in.Phase,
			Outcome: ctypes.GateFail, Severity: SeverityError, Reason: reason,
			NextAction: "re-run parse/transform to ensure all gaps produce features and no artifacts are dropped",
			Blocking:   in.Blocking, Evidence: evidence, CheckedAt: in.CheckedAt,
		}
	}

	return Result{
		GateID: in.GateID, TraceID: in.TraceID, TaskID: in.TaskID, Phase: in.Phase,
		Outcome: ctypes.GatePass, Severity: SeverityInfo,
		Reason:     fmt.Sprintf("gap parity verified: %d gap(s) <-> %d feature(s)", len(in.GapIDs), len(in.FeatureIDs)),
		NextAction: fmt.Sprintf("proceed to next phase after %s", in.Phase),
		Blocking:   false,
		Evidence: []EvidenceItem{{Type: "gap_parity_verified", Ref: "coverage",
			Description: fmt.Sprintf("all %d gap(s) have matching features", len(in.GapIDs))}},
		CheckedAt: in.CheckedAt,
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Checker is a convenience wrapper carrying a shared trace ID across
// multiple gate checks and accumulating their results.
type Checker struct {
	TraceID string
	Results []Result
}

func NewChecker(traceID string) *Checker {
	return &Checker{TraceID: traceID}
}

func (c *Checker) record(r Result) Result {
	c.Results = append(c.Results, r)
	return r
}

func (c *Checker) CheckChecksumChain(in ChecksumChainInput) Result {
	in.TraceID = c.TraceID
	return c.record(CheckChecksumChain(in))
}

func (c *Checker) CheckMappingCompleteness(in MappingCompletenessInput) Result {
	in.TraceID = c.TraceID
	return c.record(CheckMappingCompleteness(in))
}

func (c *Checker) CheckGapParity(in GapParityInput) Result {
	in.TraceID = c.TraceID
	return c.record(CheckGapParity(in))
}

// HasBlockingFailure is true iff any recorded result is blocking and failed.
func (c *Checker) HasBlockingFailure() bool {
	for _, r := range c.Results {
		if r.Blocking && r.Outcome == ctypes.GateFail {
			return true
		}
	}
	return false
}

func (c *Checker) BlockingFailures() []Result {
	var out []Result
	for _, r := range c.Results {
		if r.Blocking && r.Outcome == ctypes.GateFail {
			out = append(out, r)
		}
	}
	return out
}

func (c *Checker) AllPassed() bool {
	for _, r := range c.Results {
		if r.Outcome != ctypes.GatePass {
			return false
		}
	}
	return true
}

// Summary returns a compact, loggable summary of every check run so far.
func (c *Checker) Summary() map[string]any {
	passed, failed := 0, 0
	ids := make([]string, 0, len(c.Results))
	for _, r := range c.Results {
		if r.Outcome == ctypes.GatePass {
			passed++
		} else {
			failed++
		}
		ids = append(ids, r.GateID)
	}
	return map[string]any{
		"total_gates":       len(c.Results),
		"passed":            passed,
		"failed":            failed,
		"blocking_failures": len(c.BlockingFailures()),
		"all_passed":        c.AllPassed(),
		"gate_ids":          ids,
	}
}
