package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/llms"
	"github.com/kadirpekel/maestro/metrics"
	"github.com/kadirpekel/maestro/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned responses per label, in order. Labels
// without a script get a generic worker answer.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts map[string][]scriptStep
	reqs    []llms.GenerateRequest
}

type scriptStep struct {
	text string
	err  error
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{scripts: make(map[string][]scriptStep)}
}

func (p *scriptedProvider) enqueue(label, text string) {
	p.scripts[label] = append(p.scripts[label], scriptStep{text: text})
}

func (p *scriptedProvider) enqueueErr(label string, err error) {
	p.scripts[label] = append(p.scripts[label], scriptStep{err: err})
}

func (p *scriptedProvider) Generate(ctx context.Context, req llms.GenerateRequest) (*llms.GenerateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)

	queue := p.scripts[req.Label]
	if len(queue) == 0 {
		return &llms.GenerateResult{
			Text:  "worker answer for " + req.Label + " covering the requested analysis in detail",
			Usage: llms.Usage{PromptTokens: 50, CompletionTokens: 25, TotalTokens: 75},
		}, nil
	}

	step := queue[0]
	p.scripts[req.Label] = queue[1:]
	if step.err != nil {
		return nil, step.err
	}
	return &llms.GenerateResult{
		Text:  step.text,
		Usage: llms.Usage{PromptTokens: 50, CompletionTokens: 25, TotalTokens: 75},
	}, nil
}

func (p *scriptedProvider) Healthy(ctx context.Context, size config.ModelSize) bool {
	return true
}

func (p *scriptedProvider) requestsFor(label string) []llms.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []llms.GenerateRequest
	for _, r := range p.reqs {
		if r.Label == label {
			out = append(out, r)
		}
	}
	return out
}

const validDAGJSON = `{"tasks":[{"id":"task1","domain":"math","content":"Calculate the derivative of the given polynomial and evaluate it at two","dependencies":[]}]}`

const twoNodeDAGJSON = `{"tasks":[
	{"id":"task1","domain":"medical","content":"Assess the clinical stability of the described postoperative wound in detail","dependencies":[]},
	{"id":"task2","domain":"law","content":"Evaluate the parental consent requirements for non-emergency care of a minor","dependencies":["task1"]}
]}`

func newTestOrchestrator(t *testing.T, provider llms.Provider) (*Orchestrator, *metrics.Collector) {
	t.Helper()
	cfg := config.Default()
	collector := metrics.NewCollector(nil)

	decomposer := NewDecomposer(provider, cfg.Planner, cfg.Orchestrator.MaxRetry, collector, nil)
	synthesizer := NewSynthesizer(provider, cfg.Planner, cfg.Orchestrator.MaxRetry, collector, nil)
	executor := &testExecutor{provider: provider, collector: collector}
	scheduler := workflow.NewScheduler(executor, cfg.Scheduler, nil)

	return New(cfg, decomposer, scheduler, synthesizer, collector, nil), collector
}

// testExecutor is a minimal worker that calls the provider directly,
// bypassing routing.
type testExecutor struct {
	provider  llms.Provider
	collector *metrics.Collector
}

func (e *testExecutor) Execute(ctx context.Context, node workflow.SubTask, execCtx map[string]string) workflow.SubTaskResult {
	result, err := e.provider.Generate(ctx, llms.GenerateRequest{
		Size:        config.ModelSizeSmall,
		Model:       "csqa-lora",
		Prompt:      node.Content,
		MaxTokens:   128,
		Temperature: 0.3,
		Label:       node.ID,
	})
	if err != nil {
		return workflow.SubTaskResult{
			NodeID: node.ID, Domain: node.Domain, SubtaskContent: node.Content,
			Text: workflow.MockText(node.ID, node.Content), Status: workflow.StatusMock,
			ModelSize: config.ModelSizeSmall,
		}
	}
	e.collector.RecordWorker(config.ModelSizeSmall, result.Usage)
	return workflow.SubTaskResult{
		NodeID: node.ID, Domain: node.Domain, SubtaskContent: node.Content,
		Text: result.Text, Usage: result.Usage, Status: workflow.StatusOK,
		ModelSize: config.ModelSizeSmall,
	}
}

func TestProcess_SucceedsFirstIteration(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueue("decomposer", validDAGJSON)
	provider.enqueue("synthesizer", `{"answer":"The derivative is 6x + 2, which evaluates to 14 at x equals 2.","used_agents":["task1"]}`)

	o, collector := newTestOrchestrator(t, provider)
	result := o.Process(context.Background(), "Compute the derivative of 3x^2 + 2x + 1 and evaluate at x=2.", "u-1")

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, "completed", result.Reason)
	assert.Contains(t, result.FinalAnswer, "14")
	assert.NotEmpty(t, result.RunID)

	summary := collector.Summary()
	assert.Positive(t, summary.TotalTokens)
	assert.Equal(t, 1, summary.Classes[metrics.ClassDecomposer].Calls)
	assert.Equal(t, 1, summary.Classes[metrics.ClassWorker].Calls)
	assert.Equal(t, 1, summary.Classes[metrics.ClassSynthesizer].Calls)
}

func TestProcess_RefinementLoop(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueue("decomposer", validDAGJSON)
	provider.enqueue("synthesizer", `{"answer":""}`)
	provider.enqueue("synthesizer", `{"answer":"A complete answer produced on the second refinement iteration."}`)

	o, _ := newTestOrchestrator(t, provider)
	result := o.Process(context.Background(), "some task", "u-1")

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Iterations)

	// The DAG is reused: only one decomposer call across both iterations.
	assert.Len(t, provider.requestsFor("decomposer"), 1)
	assert.Len(t, provider.requestsFor("synthesizer"), 2)
}

func TestProcess_RetryBudgetExhausted(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueue("decomposer", validDAGJSON)
	for i := 0; i < 3; i++ {
		provider.enqueue("synthesizer", `{"answer":""}`)
	}

	o, _ := newTestOrchestrator(t, provider)
	result := o.Process(context.Background(), "some task", "u-1")

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, "max_retry_reached", result.Reason)

	// The merged worker output stands in for a final answer.
	assert.Contains(t, result.FinalAnswer, "[MATH]")
	assert.Contains(t, result.FinalAnswer, "worker answer for task1")
}

func TestProcess_RedecomposeOnRetry(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueue("decomposer", validDAGJSON)
	provider.enqueue("decomposer", validDAGJSON)
	provider.enqueue("synthesizer", `{"answer":""}`)
	provider.enqueue("synthesizer", `{"answer":"A complete answer produced after a fresh decomposition pass."}`)

	cfg := config.Default()
	cfg.Orchestrator.RedecomposeOnRetry = true
	collector := metrics.NewCollector(nil)
	decomposer := NewDecomposer(provider, cfg.Planner, cfg.Orchestrator.MaxRetry, collector, nil)
	synthesizer := NewSynthesizer(provider, cfg.Planner, cfg.Orchestrator.MaxRetry, collector, nil)
	scheduler := workflow.NewScheduler(&testExecutor{provider: provider, collector: collector}, cfg.Scheduler, nil)
	o := New(cfg, decomposer, scheduler, synthesizer, collector, nil)

	result := o.Process(context.Background(), "some task", "u-1")

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Iterations)
	assert.Len(t, provider.requestsFor("decomposer"), 2)

	// The second decomposition carries the refinement feedback.
	second := provider.requestsFor("decomposer")[1]
	assert.Contains(t, second.Prompt, "Feedback:")
}

func TestProcess_MockedWorkersStillTerminate(t *testing.T) {
	provider := newScriptedProvider()
	provider.enqueue("decomposer", twoNodeDAGJSON)
	provider.enqueueErr("task1", errors.New("endpoint down"))
	provider.enqueue("synthesizer", `{"answer":"No, the agency must wait for guardian consent before starting visits."}`)

	o, _ := newTestOrchestrator(t, provider)
	result := o.Process(context.Background(), "wound care consent question", "u-1")

	require.True(t, result.Success)
	assert.Contains(t, result.FinalAnswer, "No")

	// The synthesizer saw only the surviving law node.
	synthReqs := provider.requestsFor("synthesizer")
	require.Len(t, synthReqs, 1)
	assert.NotContains(t, synthReqs[0].Prompt, "[MOCK RESPONSE")
	assert.Contains(t, synthReqs[0].Prompt, "task2")
}
