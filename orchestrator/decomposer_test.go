package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecomposer(provider *scriptedProvider, collector *metrics.Collector) *Decomposer {
	cfg := config.Default()
	return NewDecomposer(provider, cfg.Planner, cfg.Orchestrator.MaxRetry, collector, nil)
}

func TestDecompose_ValidFirstAttempt(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueue("decomposer", validDAGJSON)

	d := newTestDecomposer(provider, metrics.NewCollector(nil))
	dag := d.Decompose(context.Background(), "Compute the derivative", "", "")

	require.Len(t, dag.Tasks, 1)
	assert.Equal(t, "task1", dag.Tasks[0].ID)
	assert.Equal(t, config.DomainMath, dag.Tasks[0].Domain)

	reqs := provider.requestsFor("decomposer")
	require.Len(t, reqs, 1)
	assert.NotNil(t, reqs[0].GuidedJSON)
	assert.Contains(t, reqs[0].Prompt, "Original Task: Compute the derivative")
}

func TestDecompose_RetriesOnInvalidDAG(t *testing.T) {
	invalid := `{"tasks":[{"id":"task1","domain":"math","content":"Calculate the derivative of the given polynomial and evaluate it at two","dependencies":["ghost"]}]}`

	provider := newScriptedProvider()
	provider.enqueue("decomposer", invalid)
	provider.enqueue("decomposer", invalid)
	provider.enqueue("decomposer", validDAGJSON)

	collector := metrics.NewCollector(nil)
	d := newTestDecomposer(provider, collector)
	dag := d.Decompose(context.Background(), "some task", "", "")

	require.Len(t, dag.Tasks, 1)
	assert.Empty(t, dag.Tasks[0].Dependencies)

	// Every attempt that produced text is accounted.
	assert.Equal(t, 3, collector.Summary().Classes[metrics.ClassDecomposer].Calls)

	// The third prompt carries the previous two validation errors.
	reqs := provider.requestsFor("decomposer")
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[2].Prompt, "Previous attempts had validation issues")
	assert.Contains(t, reqs[2].Prompt, "ghost")
	assert.NotContains(t, reqs[0].Prompt, "validation issues")
}

func TestDecompose_FallbackAfterExhaustion(t *testing.T) {
	provider := newScriptedProvider()
	for i := 0; i < 3; i++ {
		provider.enqueue("decomposer", "not json at all")
	}

	d := newTestDecomposer(provider, metrics.NewCollector(nil))
	dag := d.Decompose(context.Background(), "explain the task in plain words", "", "")

	require.Len(t, dag.Tasks, 1)
	assert.Equal(t, "task1", dag.Tasks[0].ID)
	assert.Equal(t, config.DomainCommonsense, dag.Tasks[0].Domain)
	assert.Equal(t, "explain the task in plain words", dag.Tasks[0].Content)
	assert.Empty(t, dag.Tasks[0].Dependencies)
}

func TestDecompose_TransportErrorsAlsoRetry(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueueErr("decomposer", errors.New("connection refused"))
	provider.enqueue("decomposer", validDAGJSON)

	d := newTestDecomposer(provider, metrics.NewCollector(nil))
	dag := d.Decompose(context.Background(), "some task", "", "")

	assert.Len(t, dag.Tasks, 1)
	assert.Len(t, provider.requestsFor("decomposer"), 2)
}

func TestDecompose_RefinementPromptIncludesFeedback(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueue("decomposer", validDAGJSON)

	d := newTestDecomposer(provider, metrics.NewCollector(nil))
	d.Decompose(context.Background(), "original task", "add medical detail", "[MATH]\nprevious output")

	reqs := provider.requestsFor("decomposer")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Previous task decomposition was insufficient")
	assert.Contains(t, reqs[0].Prompt, "Feedback: add medical detail")
	assert.Contains(t, reqs[0].Prompt, "previous output")
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"tasks":[]}`, `{"tasks":[]}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
		{"json_fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare_fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence_with_prose", "Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONResponse(tt.in))
		})
	}
}

func TestParseDAG_RejectsInvalid(t *testing.T) {
	_, err := parseDAG(`{"tasks":[{"id":"a","domain":"math","content":"short","dependencies":[]}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 10")
}
