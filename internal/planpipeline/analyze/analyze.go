package analyze

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// RequirementRef is one REQ/FR/NFR identifier discovered in a document,
// with whatever title text followed it on the same line.
type RequirementRef struct {
	ID    string
	Title string
}

// RequirementDoc is one requirements document's extracted inventory.
type RequirementDoc struct {
	SourcePath string
	IDs        []RequirementRef
}

// PhaseMetadata is one plan phase's extracted structure.
type PhaseMetadata struct {
	PhaseID     string
	Heading     string
	Satisfies   []string
	DependsOn   string
	Repo        string
	Deliverables *DeliverablesSummary
}

type DeliverablesSummary struct {
	Summary   string
	FileCount int
}

// PlanMetadata is the plan document's header: title/date/declared
// requirements/companions.
type PlanMetadata struct {
	Title                string
	Date                 string
	DeclaredRequirements []string
	DeclaredCompanions   []string
}

// ConflictReport records requirement IDs that appear in more than one
// requirements document.
type ConflictReport struct {
	OverlappingIDs map[string][]string
}

// Statistics summarizes coverage across the requirement inventory.
type Statistics struct {
	TotalRequirements  int
	TotalPhases        int
	CoveredRequirements int
	CoverageRatio      float64
}

// PlanAnalysis is the `contextcore.io/plan-analysis/v1` document.
type PlanAnalysis struct {
	Schema               string
	GeneratedAt          time.Time
	PlanPath             string
	PlanMetadata         PlanMetadata
	RequirementInventory map[string]RequirementDoc
	PlanRequirementIDs   []RequirementRef
	PhaseMetadata        []PhaseMetadata
	TraceabilityMatrix   map[string][]string
	DependencyGraph      map[string][]string
	ConflictReport       ConflictReport
	Statistics           Statistics
}

const Schema = "contextcore.io/plan-analysis/v1"

// RequirementsInput is one requirements document supplied to Analyze.
type RequirementsInput struct {
	Path string
	Text string
}

// Analyze parses planText and its requirements documents into a
// PlanAnalysis. now is injected so callers (and tests asserting
// idempotency modulo GeneratedAt) control the timestamp.
func Analyze(planText, planPath string, requirementsDocs []RequirementsInput, now time.Time) PlanAnalysis {
	planLines := nonEmptyTrimmedLines(planText)

	planMeta := extractPlanHeaderMetadata(planLines)

	reqInventory := map[string]RequirementDoc{}
	for _, doc := range requirementsDocs {
		name := doc.Path
		if idx := strings.LastIndex(doc.Path, "/"); idx >= 0 {
			name = doc.Path[idx+1:]
		}
		reqInventory[name] = RequirementDoc{SourcePath: doc.Path, IDs: extractRequirementIDs(doc.Text)}
	}

	planIDs := extractRequirementIDs(planText)

	phases := extractPhaseMetadata(planLines)
	traceability := buildTraceabilityMatrix(phases, reqInventory)
	depGraph := buildDependencyGraph(phases)
	conflicts := detectConflicts(reqInventory)

	totalReqs := 0
	for _, d := range reqInventory {
		totalReqs += len(d.IDs)
	}
	coveredReqs := 0
	for _, phaseList := range traceability {
		if len(phaseList) > 0 {
			coveredReqs++
		}
	}
	coverageRatio := 0.0
	if totalReqs > 0 {
		coverageRatio = round3(float64(coveredReqs) / float64(totalReqs))
	}

	return PlanAnalysis{
		Schema:               Schema,
		GeneratedAt:          now,
		PlanPath:             planPath,
		PlanMetadata:         planMeta,
		RequirementInventory: reqInventory,
		PlanRequirementIDs:   planIDs,
		PhaseMetadata:        phases,
		TraceabilityMatrix:   traceability,
		DependencyGraph:      depGraph,
		ConflictReport:       conflicts,
		Statistics: Statistics{
			TotalRequirements:   totalReqs,
			TotalPhases:         len(phases),
			CoveredRequirements: coveredReqs,
			CoverageRatio:       coverageRatio,
		},
	}
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

func nonEmptyTrimmedLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		t := strings.TrimSpace(ln)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func extractRequirementIDs(text string) []RequirementRef {
	var out []RequirementRef
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		locs := reqIDPattern.FindAllStringIndex(line, -1)
		for _, loc := range locs {
			id := normalizeReqID(line[loc[0]:loc[1]])
			if seen[id] {
				continue
			}
			seen[id] = true

			after := strings.TrimSpace(line[loc[1]:])
			title := ""
			switch {
			case strings.HasPrefix(after, ":"), strings.HasPrefix(after, "—"), strings.HasPrefix(after, "-"):
				title = strings.TrimSpace(strings.TrimLeft(after, ":—- "))
			case after != "" && !isDigit(after[0]):
				title = after
			}
			if len(title) > 150 {
				title = title[:150]
			}
			out = append(out, RequirementRef{ID: id, Title: title})
		}
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func extractPhaseMetadata(planLines []string) []PhaseMetadata {
	var phases []PhaseMetadata
	var current *PhaseMetadata
	var deliverableLines []string
	collectingDeliverables := false
	phaseCounter := 0

	flush := func() {
		if current == nil {
			return
		}
		if len(deliverableLines) > 0 {
			summaryLines := deliverableLines
			if len(summaryLines) > 5 {
				summaryLines = summaryLines[:5]
			}
			current.Deliverables = &DeliverablesSummary{
				Summary:   strings.Join(summaryLines, "; "),
				FileCount: len(deliverableLines),
			}
		}
		phases = append(phases, *current)
		current = nil
		deliverableLines = nil
		collectingDeliverables = false
	}

	for _, stripped := range planLines {
		lowered := strings.ToLower(stripped)

		if phaseHeadingPattern.MatchString(lowered) {
			flush()
			phaseCounter++
			heading := strings.TrimSpace(stripHeadingMarker(stripped))
			current = &PhaseMetadata{PhaseID: "phase-" + strconv.Itoa(phaseCounter), Heading: heading}
			continue
		}

		if strings.HasPrefix(stripped, "## ") && current != nil && !phaseHeadingPattern.MatchString(lowered) {
			flush()
			continue
		}

		if current == nil {
			continue
		}

		if m := satisfiesPattern.FindStringSubmatch(stripped); m != nil {
			raw := strings.TrimSpace(m[1])
			ids := reqIDMatches(raw)
			if len(ids) > 0 {
				current.Satisfies = ids
			} else {
				current.Satisfies = []string{raw}
			}
			continue
		}
		if m := dependsOnPattern.FindStringSubmatch(stripped); m != nil {
			current.DependsOn = strings.TrimSpace(m[1])
			continue
		}
		if m := repoPattern.FindStringSubmatch(stripped); m != nil {
			current.Repo = strings.TrimSpace(m[1])
			continue
		}
		if m := deliverablesPattern.FindStringSubmatch(stripped); m != nil {
			inline := strings.TrimSpace(m[1])
			if inline != "" {
				deliverableLines = append(deliverableLines, inline)
			}
			collectingDeliverables = true
			continue
		}
		if validationPattern.MatchString(stripped) {
			collectingDeliverables = false
			continue
		}
		if collectingDeliverables {
			if m := checklistPattern.FindStringSubmatch(stripped); m != nil {
				deliverableLines = append(deliverableLines, strings.TrimSpace(m[1]))
				continue
			}
			if stripped != "" && !strings.HasPrefix(stripped, " ") && !strings.HasPrefix(stripped, "-") {
				collectingDeliverables = false
			}
		}
	}
	flush()
	return phases
}

func stripHeadingMarker(s string) string {
	i := 0
	for i < len(s) && s[i] == '#' {
		i++
	}
	return strings.TrimSpace(s[i:])
}

func buildTraceabilityMatrix(phases []PhaseMetadata, reqInventory map[string]RequirementDoc) map[string][]string {
	matrix := map[string][]string{}
	for _, doc := range reqInventory {
		for _, entry := range doc.IDs {
			if _, ok := matrix[entry.ID]; !ok {
				matrix[entry.ID] = nil
			}
		}
	}
	for _, phase := range phases {
		for _, rid := range phase.Satisfies {
			ridUpper := normalizeReqID(rid)
			matrix[ridUpper] = append(matrix[ridUpper], phase.PhaseID)
		}
	}
	return matrix
}

func buildDependencyGraph(phases []PhaseMetadata) map[string][]string {
	graph := map[string][]string{}
	phaseIDs := map[string]bool{}
	for _, p := range phases {
		phaseIDs[p.PhaseID] = true
	}

	for _, phase := range phases {
		var deps []string
		depStr := strings.ToLower(phase.DependsOn)
		if depStr != "" && phasesWordPattern.MatchString(depStr) {
			rangeNums := map[string]bool{}
			for _, m := range phaseRangePattern.FindAllStringSubmatch(depStr, -1) {
				start, _ := strconv.Atoi(m[1])
				end, _ := strconv.Atoi(m[2])
				for n := start; n <= end; n++ {
					rangeNums[strconv.Itoa(n)] = true
				}
			}
			added := map[string]bool{}
			for _, numStr := range numberPattern.FindAllString(depStr, -1) {
				depID := "phase-" + numStr
				if phaseIDs[depID] && !added[depID] {
					deps = append(deps, depID)
					added[depID] = true
				}
			}
			var sortedRange []string
			for n := range rangeNums {
				sortedRange = append(sortedRange, n)
			}
			sort.Slice(sortedRange, func(i, j int) bool {
				a, _ := strconv.Atoi(sortedRange[i])
				b, _ := strconv.Atoi(sortedRange[j])
				return a < b
			})
			for _, numStr := range sortedRange {
				depID := "phase-" + numStr
				if phaseIDs[depID] && !added[depID] {
					deps = append(deps, depID)
					added[depID] = true
				}
			}
		}
		graph[phase.PhaseID] = deps
	}
	return graph
}

func detectConflicts(reqInventory map[string]RequirementDoc) ConflictReport {
	idToDocs := map[string][]string{}
	var docNames []string
	for name := range reqInventory {
		docNames = append(docNames, name)
	}
	sort.Strings(docNames)
	for _, name := range docNames {
		for _, entry := range reqInventory[name].IDs {
			idToDocs[entry.ID] = append(idToDocs[entry.ID], name)
		}
	}
	overlapping := map[string][]string{}
	for rid, docs := range idToDocs {
		if len(docs) > 1 {
			overlapping[rid] = docs
		}
	}
	return ConflictReport{OverlappingIDs: overlapping}
}

func extractPlanHeaderMetadata(planLines []string) PlanMetadata {
	meta := PlanMetadata{}
	limit := len(planLines)
	if limit > 30 {
		limit = 30
	}
	for _, stripped := range planLines[:limit] {
		if meta.Title == "" {
			if m := titlePattern.FindStringSubmatch(stripped); m != nil {
				meta.Title = strings.TrimSpace(m[1])
				continue
			}
		}
		if m := dateHeader.FindStringSubmatch(stripped); m != nil {
			meta.Date = strings.TrimSpace(m[1])
			continue
		}
		if m := requirementsHeader.FindStringSubmatch(stripped); m != nil {
			meta.DeclaredRequirements = append(meta.DeclaredRequirements, strings.TrimSpace(m[1]))
			continue
		}
		if m := companionHeader.FindStringSubmatch(stripped); m != nil {
			meta.DeclaredCompanions = append(meta.DeclaredCompanions, strings.TrimSpace(m[1]))
			continue
		}
	}
	return meta
}
