package agent

import (
	"strings"
	"testing"

	"github.com/kadirpekel/maestro/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDomainConfig(t *testing.T, d config.Domain) config.DomainConfig {
	t.Helper()
	cfg, err := config.Default().Domain(d)
	require.NoError(t, err)
	return cfg
}

func TestAgent_Prompt(t *testing.T) {
	ag := New(config.DomainMath, testDomainConfig(t, config.DomainMath))

	prompt := ag.Prompt("Compute the derivative of the given polynomial expression", map[string]string{
		"task1":   "background result",
		"user_id": "u-42",
		"task2":   "",
	})

	assert.True(t, strings.HasPrefix(prompt, ag.Config.Template))
	assert.Contains(t, prompt, "\n\nTask: Compute the derivative of the given polynomial expression")
	assert.Contains(t, prompt, "\n\nContext: task1: background result")
	assert.True(t, strings.HasSuffix(prompt, "\n\nResponse:"))

	// Bookkeeping keys and empty values stay out of the prompt.
	assert.NotContains(t, prompt, "user_id")
	assert.NotContains(t, prompt, "u-42")
	assert.NotContains(t, prompt, "task2")
}

func TestAgent_Prompt_NoContext(t *testing.T) {
	ag := New(config.DomainCommonsense, testDomainConfig(t, config.DomainCommonsense))

	prompt := ag.Prompt("Explain why people greet each other with a handshake", nil)
	assert.NotContains(t, prompt, "Context:")
	assert.True(t, strings.HasSuffix(prompt, "\n\nResponse:"))
}

func TestAgent_Prompt_ContextOrderIsStable(t *testing.T) {
	ag := New(config.DomainLaw, testDomainConfig(t, config.DomainLaw))

	ctx := map[string]string{"b": "second", "a": "first", "c": "third"}
	p1 := ag.Prompt("Summarize the relevant statutes governing the disputed clause", ctx)
	p2 := ag.Prompt("Summarize the relevant statutes governing the disputed clause", ctx)

	assert.Equal(t, p1, p2)
	assert.Less(t, strings.Index(p1, "a: first"), strings.Index(p1, "b: second"))
	assert.Less(t, strings.Index(p1, "b: second"), strings.Index(p1, "c: third"))
}
