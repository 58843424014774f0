// Package analyze implements plan analysis (spec.md §4.C): parsing a
// human-authored plan document and its requirements documents into
// the structured `contextcore.io/plan-analysis/v1` schema. Grounded
// on original_source/src/contextcore/cli/{analyze_plan_ops,
// init_from_plan_ops}.py; the shared line-pattern regexes those two
// Python modules import from a third, unretrieved module are
// reconstructed here directly from spec.md §4.C's prose description.
package analyze

import "regexp"

var (
	reqIDPattern       = regexp.MustCompile(`(?i)\b(REQ|FR|NFR)-[A-Z]*-?(\d+)\b`)
	satisfiesPattern   = regexp.MustCompile(`(?i)^\*{0,2}Satisfies:?\*{0,2}\s*(.+)$`)
	dependsOnPattern   = regexp.MustCompile(`(?i)^\*{0,2}Depends\s+on:?\*{0,2}\s*(.+)$`)
	repoPattern        = regexp.MustCompile(`(?i)^\*{0,2}Repo:?\*{0,2}\s*(.+)$`)
	deliverablesPattern = regexp.MustCompile(`(?i)^\*{0,2}Deliverables:?\*{0,2}\s*(.*)$`)
	validationPattern  = regexp.MustCompile(`(?i)^\*{0,2}Validation:?\*{0,2}\s*(.*)$`)
	checklistPattern   = regexp.MustCompile(`^-\s*\[[ xX]\]\s*(.+)$`)

	phaseHeadingPattern = regexp.MustCompile(`(?i)^#{2,3}\s*(phase|milestone|action|step|task)\b`)
	titlePattern        = regexp.MustCompile(`(?m)^#\s+(.+)`)
	requirementsHeader  = regexp.MustCompile(`(?i)^\*{0,2}Requirements?:?\*{0,2}\s*` + "`?" + `([^` + "`" + `\n]+)` + "`?" + `$`)
	companionHeader     = regexp.MustCompile(`(?i)^\*{0,2}Companion\s+to:?\*{0,2}\s*` + "`?" + `([^` + "`" + `\n]+)` + "`?" + `$`)
	dateHeader          = regexp.MustCompile(`(?i)^\*{0,2}Date:?\*{0,2}\s*([\d\-/]+)`)

	phaseRangePattern = regexp.MustCompile(`(?i)phases?\s*(\d+)\s*[-\x{2013}]\s*(\d+)`)
	numberPattern     = regexp.MustCompile(`\b(\d+)\b`)
	phasesWordPattern = regexp.MustCompile(`(?i)phases?`)
)

// reqIDMatches returns every distinct REQ/FR/NFR id found in text,
// uppercased, first occurrence order preserved.
func reqIDMatches(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range reqIDPattern.FindAllString(text, -1) {
		id := normalizeReqID(m)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func normalizeReqID(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
