// Package manifest implements the manifest-initialization half of
// spec.md §4.C: a baseline v2 manifest template, enriched by
// regex/heading-driven inference from plan and requirements text, with
// every inference recorded as (field_path, value, source, confidence).
// Grounded on
// original_source/src/contextcore/cli/init_from_plan_ops.py.
package manifest

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Owner is one entry in metadata.owners.
type Owner struct {
	Team  string
	Slack string
	Email string
}

// ChangelogEntry is one metadata.changelog entry.
type ChangelogEntry struct {
	Version string
	Date    string
	Author  string
	Summary string
	Changes []string
}

type Metadata struct {
	Name      string
	Owners    []Owner
	Changelog []ChangelogEntry
	RepoLink  string
}

type Project struct {
	ID          string
	Name        string
	Description string
}

type Business struct {
	Criticality string
	Owner       string
	Value       string
}

type Requirements struct {
	Availability string
	LatencyP99   string
	Throughput   string
	ErrorBudget  string
}

type Risk struct {
	Type        string
	Description string
	Priority    string
	Mitigation  string
}

type Target struct {
	Kind      string
	Name      string
	Namespace string
}

type Observability struct {
	TraceSampling   float64
	MetricsInterval string
	AlertChannels   []string
	LogLevel        string
}

type Spec struct {
	Project       Project
	Business      Business
	Requirements  Requirements
	Risks         []Risk
	Targets       []Target
	Observability Observability
}

type KeyResult struct {
	MetricKey      string
	Unit           string
	Target         float64
	TargetOperator string
	Window         string
}

type Objective struct {
	ID          string
	Description string
	KeyResults  []KeyResult
}

type Tactic struct {
	ID               string
	Description      string
	Status           string
	LinkedObjectives []string
}

type Strategy struct {
	Objectives []Objective
	Tactics    []Tactic
}

type Constraint struct {
	ID        string
	Rule      string
	Severity  string
	Rationale string
	AppliesTo []string
}

type Question struct {
	ID       string
	Question string
	Status   string
	Priority string
}

type Guidance struct {
	FocusAreas  []string
	FocusReason string
	Constraints []Constraint
	Questions   []Question
}

// Manifest is the contextcore.io/v1alpha2 ContextManifest.
type Manifest struct {
	APIVersion string
	Kind       string
	Metadata   Metadata
	Spec       Spec
	Strategy   Strategy
	Guidance   Guidance
}

// BuildTemplate constructs the baseline v2 manifest for a project named
// name, matching build_v2_manifest_template's defaults.
func BuildTemplate(name string, now time.Time) Manifest {
	today := now.Format("2006-01-02")
	display := displayName(name)
	return Manifest{
		APIVersion: "contextcore.io/v1alpha2",
		Kind:       "ContextManifest",
		Metadata: Metadata{
			Name:   name,
			Owners: []Owner{{Team: "engineering", Slack: "#alerts", Email: "team@example.com"}},
			Changelog: []ChangelogEntry{{
				Version: "2.0", Date: today, Author: "you",
				Summary: "Initial v2.0 manifest for " + name, Changes: []string{"Initial v2.0 manifest"},
			}},
			RepoLink: "https://github.com/your-org/" + name,
		},
		Spec: Spec{
			Project: Project{ID: name, Name: display, Description: display + " service - update this description."},
			Business: Business{Criticality: "medium", Owner: "engineering", Value: "enabler"},
			Requirements: Requirements{Availability: "99.9", LatencyP99: "500ms", Throughput: "100rps", ErrorBudget: "0.1"},
			Risks: []Risk{{Type: "availability", Description: "Example risk - update or remove", Priority: "P3", Mitigation: "Example mitigation"}},
			Targets: []Target{{Kind: "Deployment", Name: name, Namespace: "default"}},
			Observability: Observability{TraceSampling: 1.0, MetricsInterval: "30s", AlertChannels: []string{"#alerts"}, LogLevel: "info"},
		},
		Strategy: Strategy{
			Objectives: []Objective{{
				ID: "OBJ-001", Description: "Example objective - update with real business goal",
				KeyResults: []KeyResult{{MetricKey: "availability", Unit: "%", Target: 99.9, TargetOperator: "gte", Window: "30d"}},
			}},
			Tactics: []Tactic{{ID: "TAC-001", Description: "Example tactic - update with real action item", Status: "planned", LinkedObjectives: []string{"OBJ-001"}}},
		},
		Guidance: Guidance{
			FocusAreas: []string{"reliability"}, FocusReason: "Focus on core stability",
		},
	}
}

func displayName(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Inference records one field this package's inference derived.
type Inference struct {
	FieldPath  string
	Value      any
	Source     string
	Confidence float64
}

// InferResult is infer_init_from_plan's output.
type InferResult struct {
	Manifest         Manifest
	Inferences       []Inference
	Warnings         []string
	CoreInferredCount int
}

var (
	criticalityExplicit = regexp.MustCompile(`(?i)(?:criticality|severity|priority)\s*[:\-]?\s*(critical|high|medium|low)`)
	criticalityP1       = regexp.MustCompile(`(?i)\bp1\b|\bp0\b|\bsev-?1\b|\bcritical\b`)
	criticalityP2       = regexp.MustCompile(`(?i)\bp2\b|\bhigh\b`)
	criticalityP3       = regexp.MustCompile(`(?i)\bp3\b|\bmedium\b`)
	criticalityP4       = regexp.MustCompile(`(?i)\bp4\b`)
	availabilityPattern = regexp.MustCompile(`(?i)(\d{2,3}(?:\.\d+)?)\s*%?\s*(?:availability|uptime|slo)`)
	latencyPattern      = regexp.MustCompile(`(?i)(?:p99|99th|latency)[^0-9]{0,20}(\d+(?:\.\d+)?)\s*(ms|s|sec|seconds)`)
	throughputPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:rps|req/s|requests/s|qps)`)
	errorBudgetPattern  = regexp.MustCompile(`(?i)error\s*budget[^0-9]{0,20}(\d+(?:\.\d+)?)\s*%?`)
	channelPattern      = regexp.MustCompile(`#[-a-zA-Z0-9_]+`)
	ownerPattern        = regexp.MustCompile(`(?i)(?:owner|team)[:\s]+([a-zA-Z0-9_-]+)`)
	riskPattern         = regexp.MustCompile(`(?i)\b(risk|blocker)\b`)
)

// Infer enriches a baseline Manifest with fields inferred from plan and
// requirements text, per spec.md §4.C's inference rule set.
func Infer(base Manifest, planText, requirementsText, projectRoot string, emitGuidanceQuestions bool) InferResult {
	m := base
	var inferences []Inference
	var warnings []string

	add := func(fieldPath string, value any, source string, confidence float64) {
		inferences = append(inferences, Inference{FieldPath: fieldPath, Value: value, Source: source, Confidence: confidence})
	}

	combined := planText + "\n" + requirementsText
	lowered := strings.ToLower(combined)
	planLines := nonEmptyTrimmed(planText)

	var heading string
	for _, ln := range planLines {
		if strings.HasPrefix(ln, "# ") {
			heading = strings.TrimSpace(ln[2:])
			break
		}
	}

	var desc string
	for _, ln := range planLines {
		if strings.HasPrefix(ln, "#") || isMetadataLine(ln) || len(ln) < 20 {
			continue
		}
		desc = ln
		break
	}

	var descriptionValue string
	switch {
	case heading != "" && desc != "":
		d := desc
		if len(d) > 220 {
			d = d[:220]
		}
		descriptionValue = heading + ". " + d
	case heading != "":
		descriptionValue = heading
	default:
		descriptionValue = desc
	}
	if descriptionValue != "" {
		if len(descriptionValue) > 300 {
			descriptionValue = descriptionValue[:300]
		}
		m.Spec.Project.Description = descriptionValue
		add("spec.project.description", descriptionValue, "plan:heading_plus_first_meaningful_line", 0.9)
	}

	var crit string
	switch {
	case criticalityExplicit.MatchString(lowered):
		crit = strings.ToLower(criticalityExplicit.FindStringSubmatch(lowered)[1])
	case criticalityP1.MatchString(lowered):
		crit = "high"
	case criticalityP2.MatchString(lowered):
		crit = "high"
	case criticalityP3.MatchString(lowered):
		crit = "medium"
	case criticalityP4.MatchString(lowered):
		crit = "low"
	}
	if crit != "" {
		m.Spec.Business.Criticality = crit
		add("spec.business.criticality", crit, "plan+requirements:contextual_criticality_detection", 0.82)
	}

	// SLO numbers come from the requirements text when it has a match,
	// and from the plan text otherwise.
	requirementsLowered := strings.ToLower(requirementsText)
	sloMatch := func(p *regexp.Regexp) []string {
		if mm := p.FindStringSubmatch(requirementsLowered); mm != nil {
			return mm
		}
		return p.FindStringSubmatch(lowered)
	}
	if mm := sloMatch(availabilityPattern); mm != nil {
		m.Spec.Requirements.Availability = mm[1]
		add("spec.requirements.availability", mm[1], "requirements:regex", 0.8)
	}
	if mm := sloMatch(latencyPattern); mm != nil {
		latency := mm[1] + mm[2]
		m.Spec.Requirements.LatencyP99 = latency
		add("spec.requirements.latencyP99", latency, "requirements:regex", 0.75)
	}
	if mm := sloMatch(throughputPattern); mm != nil {
		throughput := mm[1] + "rps"
		m.Spec.Requirements.Throughput = throughput
		add("spec.requirements.throughput", throughput, "requirements:regex", 0.72)
	}
	if mm := sloMatch(errorBudgetPattern); mm != nil {
		m.Spec.Requirements.ErrorBudget = mm[1]
		add("spec.requirements.errorBudget", mm[1], "requirements:regex", 0.7)
	}

	if channels := uniqueSorted(channelPattern.FindAllString(combined, -1)); len(channels) > 0 {
		m.Spec.Observability.AlertChannels = channels
		add("spec.observability.alertChannels", channels, "plan+requirements:channel_extraction", 0.7)
	}

	if mm := ownerPattern.FindStringSubmatch(lowered); mm != nil {
		owner := mm[1]
		m.Spec.Business.Owner = owner
		if len(m.Metadata.Owners) > 0 {
			m.Metadata.Owners[0].Team = owner
		}
		add("spec.business.owner", owner, "plan+requirements:regex", 0.65)
	}

	if projectRoot != "" {
		targetName := strings.ReplaceAll(filepath.Base(projectRoot), "_", "-")
		if len(m.Spec.Targets) > 0 {
			m.Spec.Targets[0].Name = targetName
		}
		add("spec.targets[0].name", targetName, "project_root:basename", 0.8)
	}

	var risks []string
	for _, ln := range planLines {
		if riskPattern.MatchString(strings.ToLower(ln)) {
			r := ln
			if len(r) > 180 {
				r = r[:180]
			}
			risks = append(risks, r)
			if len(risks) == 3 {
				break
			}
		}
	}
	if len(risks) > 0 {
		m.Spec.Risks = make([]Risk, 0, len(risks))
		for _, r := range risks {
			m.Spec.Risks = append(m.Spec.Risks, Risk{
				Type: "availability", Description: r, Priority: "P2",
				Mitigation: "Define mitigation in implementation plan",
			})
		}
		add("spec.risks", m.Spec.Risks, "plan:risk_line_extraction", 0.65)
	}

	var guardrails []string
	for _, ln := range planLines {
		l := strings.ToLower(ln)
		if strings.HasPrefix(l, "- do not ") || strings.HasPrefix(l, "- keep ") {
			guardrails = append(guardrails, strings.TrimSpace(strings.TrimPrefix(ln, "-")))
			if len(guardrails) == 5 {
				break
			}
		}
	}
	if len(guardrails) > 0 {
		var ids []string
		m.Guidance.Constraints = make([]Constraint, 0, len(guardrails))
		for i, g := range guardrails {
			id := "C-PLAN-" + pad3(i+1)
			ids = append(ids, id)
			m.Guidance.Constraints = append(m.Guidance.Constraints, Constraint{
				ID: id, Rule: g, Severity: "blocking",
				Rationale: "Imported from implementation plan guardrails",
			})
		}
		add("guidance.constraints", ids, "plan:guardrail_to_constraint", 0.88)
	}

	var goals []string
	inGoals, inExecutionScope := false, false
	for _, ln := range planLines {
		lowerLine := strings.ToLower(ln)
		switch {
		case strings.HasPrefix(lowerLine, "### goals"):
			inGoals, inExecutionScope = true, false
			continue
		case strings.HasPrefix(lowerLine, "### execution scope"):
			inExecutionScope, inGoals = true, false
			continue
		}
		if (inGoals || inExecutionScope) && strings.HasPrefix(ln, "### ") {
			inGoals, inExecutionScope = false, false
		}
		if (inGoals || inExecutionScope) && strings.HasPrefix(ln, "- ") {
			goals = append(goals, strings.TrimSpace(strings.TrimPrefix(ln, "-")))
		}
	}
	if len(goals) > 0 {
		desc := goals[0]
		if len(desc) > 180 {
			desc = desc[:180]
		}
		availTarget, _ := strconv.ParseFloat(m.Spec.Requirements.Availability, 64)
		m.Strategy.Objectives = []Objective{{
			ID: "OBJ-PLAN-001", Description: desc,
			KeyResults: []KeyResult{{MetricKey: "availability", Unit: "%", Target: availTarget, TargetOperator: "gte", Window: "30d"}},
		}}
		add("strategy.objectives[0].description", desc, "plan:goals_or_execution_scope_extraction", 0.8)
	}

	if emitGuidanceQuestions {
		var questions []string
		for _, ln := range planLines {
			if strings.HasSuffix(ln, "?") {
				q := ln
				if len(q) > 220 {
					q = q[:220]
				}
				questions = append(questions, q)
				if len(questions) == 5 {
					break
				}
			}
		}
		if len(questions) > 0 {
			var ids []string
			m.Guidance.Questions = make([]Question, 0, len(questions))
			for i, q := range questions {
				id := "Q-" + pad3(i+1)
				ids = append(ids, id)
				m.Guidance.Questions = append(m.Guidance.Questions, Question{ID: id, Question: q, Status: "open", Priority: "medium"})
			}
			add("guidance.questions", ids, "plan:question_line_extraction", 0.6)
		}
	}

	coreFields := map[string]bool{
		"spec.project.description": true, "spec.business.criticality": true,
		"spec.requirements.availability": true, "spec.targets[0].name": true,
		"spec.business.owner": true, "guidance.constraints": true,
		"strategy.objectives[0].description": true,
	}
	coreCount := 0
	seenCore := map[string]bool{}
	for _, inf := range inferences {
		if coreFields[inf.FieldPath] && !seenCore[inf.FieldPath] {
			seenCore[inf.FieldPath] = true
			coreCount++
		}
	}
	if coreCount < 3 {
		warnings = append(warnings, "Low-confidence init-from-plan: fewer than 3 core fields were inferred from inputs.")
	}

	return InferResult{Manifest: m, Inferences: inferences, Warnings: warnings, CoreInferredCount: coreCount}
}

func nonEmptyTrimmed(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		t := strings.TrimSpace(ln)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isMetadataLine(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	switch {
	case strings.HasPrefix(l, "**date:"), strings.HasPrefix(l, "**status:"),
		strings.HasPrefix(l, "**scope:"), strings.HasPrefix(l, "**requirements source:"):
		return true
	case l == "---" || l == "___":
		return true
	}
	return false
}

func uniqueSorted(items []string) []string {
	set := map[string]bool{}
	for _, i := range items {
		set[i] = true
	}
	var out []string
	for i := range set {
		out = append(out, i)
	}
	sort.Strings(out)
	return out
}

func pad3(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
