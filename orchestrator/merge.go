package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/workflow"
)

// ============================================================================
// DISPLAY MERGING
// ============================================================================

// domainPriority orders merged sections: domain expertise first, general
// reasoning last.
var domainPriority = map[config.Domain]int{
	config.DomainMedical:     0,
	config.DomainLaw:         1,
	config.DomainMath:        2,
	config.DomainCommonsense: 3,
}

// MergeForDisplay renders the run's results as one human-readable document,
// grouped by domain priority. It is used for logging and as the verbatim
// answer when the retry budget is exhausted; mock results are included so a
// degraded run is visible in its output.
func MergeForDisplay(results map[string]workflow.SubTaskResult) string {
	if len(results) == 0 {
		return ""
	}

	ordered := make([]workflow.SubTaskResult, 0, len(results))
	for _, res := range results {
		ordered = append(ordered, res)
	}
	sort.Slice(ordered, func(i, j int) bool {
		pi, pj := priorityOf(ordered[i].Domain), priorityOf(ordered[j].Domain)
		if pi != pj {
			return pi < pj
		}
		return ordered[i].NodeID < ordered[j].NodeID
	})

	var sections []string
	for _, res := range ordered {
		if res.Text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("[%s]\n%s",
			strings.ToUpper(string(res.Domain)), res.Text))
	}
	return strings.Join(sections, "\n\n")
}

func priorityOf(d config.Domain) int {
	if p, ok := domainPriority[d]; ok {
		return p
	}
	return len(domainPriority)
}

// FormatDAGSummary renders a decomposition for logs.
func FormatDAGSummary(dag *workflow.TaskDAG) string {
	var b strings.Builder
	b.WriteString("Task Dependency Graph:\n\nNodes:\n")

	for _, t := range dag.Tasks {
		preview := t.Content
		if runes := []rune(preview); len(runes) > 60 {
			preview = string(runes[:60]) + "..."
		}
		fmt.Fprintf(&b, "  - %s (%s): %s\n", t.ID, t.Domain, preview)
	}

	b.WriteString("\nDependencies:\n")
	edges := 0
	for _, t := range dag.Tasks {
		for _, dep := range t.Dependencies {
			fmt.Fprintf(&b, "  - %s -> %s\n", dep, t.ID)
			edges++
		}
	}
	if edges == 0 {
		b.WriteString("  - No dependencies (parallel execution)\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
