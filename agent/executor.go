package agent

import (
	"context"
	"log/slog"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/llms"
	"github.com/kadirpekel/maestro/metrics"
	"github.com/kadirpekel/maestro/router"
	"github.com/kadirpekel/maestro/utils"
	"github.com/kadirpekel/maestro/workflow"
)

// ============================================================================
// SUBTASK EXECUTOR
// ============================================================================

// Router decides model size per subtask. *router.Client is the production
// implementation.
type Router interface {
	Route(ctx context.Context, domain config.Domain, task string, taskCtx map[string]string) router.RouteDecision
	Disabled() bool
}

// Executor runs one subtask end to end: route, resolve the model, build the
// prompt, call the LLM, account metrics. It never fails a node; an LLM error
// degrades to a mock result so the DAG keeps running.
type Executor struct {
	cfg       *config.Config
	provider  llms.Provider
	router    Router
	collector *metrics.Collector
	log       *slog.Logger
}

// NewExecutor wires the subtask executor.
func NewExecutor(cfg *config.Config, provider llms.Provider, r Router, collector *metrics.Collector, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		cfg:       cfg,
		provider:  provider,
		router:    r,
		collector: collector,
		log:       log,
	}
}

// Execute implements workflow.Executor.
func (e *Executor) Execute(ctx context.Context, node workflow.SubTask, execCtx map[string]string) workflow.SubTaskResult {
	domainCfg, err := e.cfg.Domain(node.Domain)
	if err != nil {
		e.log.Error("unknown domain for node, recording mock result",
			"node", node.ID, "domain", node.Domain)
		return workflow.NewMockResult(node, config.ModelSizeSmall)
	}
	ag := New(node.Domain, domainCfg)

	decision := e.router.Route(ctx, node.Domain, node.Content, execCtx)
	if !e.router.Disabled() {
		// The classifier reports no usage block; estimate from the routed
		// text.
		e.collector.Record(metrics.ClassRouting, metrics.ParamsForClass(metrics.ClassRouting),
			llms.Usage{PromptTokens: utils.EstimateTokens(node.Content), TotalTokens: utils.EstimateTokens(node.Content)})
	}

	model := domainCfg.ModelForSize(decision.Size)
	prompt := ag.Prompt(node.Content, execCtx)

	e.log.Debug("executing subtask",
		"node", node.ID, "domain", node.Domain, "size", decision.Size,
		"probability", decision.Probability, "model", model)

	result, err := e.provider.Generate(ctx, llms.GenerateRequest{
		Size:        decision.Size,
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   domainCfg.MaxTokens,
		Temperature: domainCfg.Temperature,
		Label:       node.ID,
	})
	if err != nil {
		e.log.Warn("subtask llm call failed, degrading to mock result",
			"node", node.ID, "domain", node.Domain, "model", model, "error", err)
		return workflow.SubTaskResult{
			NodeID:         node.ID,
			Domain:         node.Domain,
			SubtaskContent: node.Content,
			Text:           workflow.MockText(node.ID, prompt),
			ModelSize:      decision.Size,
			Status:         workflow.StatusMock,
		}
	}

	usage := result.Usage
	if usage.TotalTokens == 0 {
		promptTokens := utils.CountTokens(model, prompt)
		completionTokens := utils.CountTokens(model, result.Text)
		usage = llms.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}
	e.collector.RecordWorker(decision.Size, usage)

	return workflow.SubTaskResult{
		NodeID:         node.ID,
		Domain:         node.Domain,
		SubtaskContent: node.Content,
		Text:           result.Text,
		Usage:          usage,
		ModelSize:      decision.Size,
		Status:         workflow.StatusOK,
	}
}
