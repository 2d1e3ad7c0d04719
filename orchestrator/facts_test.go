package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFacts_WoundCareScenario(t *testing.T) {
	task := "A home health agency is deciding whether to start in-home wound-care visits for a 17-year-old; " +
		"visits cost $250 per day for 4 days (total $1,000). Policy requires a parent or legal guardian to " +
		"consent for non-emergency services, and the wound is documented as stable."

	facts := ExtractFacts(task)

	require.NotEmpty(t, facts.Constraints)
	joined := facts.PromptSection()
	assert.Contains(t, joined, "minor (age 17)")
	assert.Contains(t, joined, "consent is required")
	assert.Contains(t, joined, "documented as stable")
	assert.Contains(t, joined, "non-emergency")
	assert.Contains(t, joined, "Total cost: $1000, Offered: $250")
	assert.Contains(t, joined, "Timeline involves 4 days")
}

func TestExtractFacts_AdultIsNotAMinorConstraint(t *testing.T) {
	facts := ExtractFacts("A 45-year-old runner asks about knee pain after long runs")
	for _, c := range facts.Constraints {
		assert.NotContains(t, c, "minor")
	}
}

func TestExtractFacts_PlainTaskHasNoSection(t *testing.T) {
	facts := ExtractFacts("Explain why the sky appears blue during the day")
	assert.Empty(t, facts.Constraints)
	assert.Empty(t, facts.PromptSection())
}
