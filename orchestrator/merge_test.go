package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/workflow"
	"github.com/stretchr/testify/assert"
)

func TestMergeForDisplay_DomainPriorityOrder(t *testing.T) {
	results := map[string]workflow.SubTaskResult{
		"c": {NodeID: "c", Domain: config.DomainCommonsense, Text: "general reasoning"},
		"m": {NodeID: "m", Domain: config.DomainMedical, Text: "clinical finding"},
		"l": {NodeID: "l", Domain: config.DomainLaw, Text: "legal analysis"},
		"x": {NodeID: "x", Domain: config.DomainMath, Text: "numeric result"},
	}

	merged := MergeForDisplay(results)

	medical := strings.Index(merged, "[MEDICAL]")
	law := strings.Index(merged, "[LAW]")
	math := strings.Index(merged, "[MATH]")
	commonsense := strings.Index(merged, "[COMMONSENSE]")

	assert.True(t, medical < law && law < math && math < commonsense,
		"expected medical < law < math < commonsense, got %q", merged)
	assert.Contains(t, merged, "clinical finding")
}

func TestMergeForDisplay_Empty(t *testing.T) {
	assert.Empty(t, MergeForDisplay(nil))
	assert.Empty(t, MergeForDisplay(map[string]workflow.SubTaskResult{}))
}

func TestMergeForDisplay_SkipsEmptyTexts(t *testing.T) {
	results := map[string]workflow.SubTaskResult{
		"a": {NodeID: "a", Domain: config.DomainMath, Text: ""},
		"b": {NodeID: "b", Domain: config.DomainLaw, Text: "holding applies"},
	}

	merged := MergeForDisplay(results)
	assert.Equal(t, "[LAW]\nholding applies", merged)
}

func TestFormatDAGSummary(t *testing.T) {
	dag := &workflow.TaskDAG{Tasks: []workflow.SubTask{
		{ID: "task1", Domain: config.DomainMedical, Content: "Assess the wound healing timeline for the postoperative patient today"},
		{ID: "task2", Domain: config.DomainLaw, Content: "Evaluate parental consent requirements for non-emergency care of the minor", Dependencies: []string{"task1"}},
	}}

	summary := FormatDAGSummary(dag)
	assert.Contains(t, summary, "task1 (medical)")
	assert.Contains(t, summary, "task2 (law)")
	assert.Contains(t, summary, "task1 -> task2")
}

func TestFormatDAGSummary_NoEdges(t *testing.T) {
	summary := FormatDAGSummary(FallbackDAG("explain the situation using everyday reasoning and plain language"))
	assert.Contains(t, summary, "No dependencies (parallel execution)")
}

func TestFormatDAGSummary_TruncatesLongContentOnRuneBoundaries(t *testing.T) {
	dag := &workflow.TaskDAG{Tasks: []workflow.SubTask{
		{ID: "task1", Domain: config.DomainMedical, Content: strings.Repeat("術後の創傷治癒経過を評価する", 10)},
	}}

	summary := FormatDAGSummary(dag)
	assert.True(t, utf8.ValidString(summary))
	assert.Contains(t, summary, "...")
}
