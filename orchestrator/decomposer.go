// Package orchestrator contains the outer refinement loop: task
// decomposition, DAG execution handoff, and result synthesis.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/llms"
	"github.com/kadirpekel/maestro/metrics"
	"github.com/kadirpekel/maestro/utils"
	"github.com/kadirpekel/maestro/workflow"
)

// ============================================================================
// DECOMPOSER PROMPTS
// ============================================================================

const decomposerSystemPrompt = `You are a task decomposition engine that breaks complex tasks into domain-specific subtasks.

Your responsibilities:
1. Analyze the input task and identify required domains
2. Generate subtasks for four domain-specific agents: Commonsense, Medical, Law, Math
3. Create a dependency graph (DAG) showing task relationships
4. Output JSON format only

Available Domains (USE EXACT NAMES):
- commonsense: General reasoning, logic, common knowledge
- medical: Healthcare, diagnosis, treatment, clinical tasks
- law: Legal analysis, contracts, regulations, case law (NOT "legal")
- math: Calculations, equations, quantitative reasoning

CRITICAL: Use exact domain names: "commonsense", "medical", "law", "math"
DO NOT use: "legal", "legal_analysis", "mathematics", "healthcare", "medicine"

Rules:
- Create detailed, actionable task descriptions in IMPERATIVE/COMMAND format
  GOOD: "Analyze wound healing timeline for post-surgery patient"
  BAD: "Patient needs wound-care after surgery" (declarative statement)
- Start task descriptions with action verbs: Analyze, Calculate, Evaluate, Assess, Determine, Check, Review
- Each task description must be at least ten words with specific requirements and context
- Identify ALL domains needed for the task; multi-domain tasks require separate subtasks per domain
- Create dependencies when one subtask needs results from another
- Independent subtasks should have empty dependencies []
- Each task must have a unique ID`

const decomposerUserTemplate = `Original Task: %s

Please decompose this task into subtasks with dependency graph.
Output JSON only, no explanation.`

const decomposerRefinementTemplate = `Previous task decomposition was insufficient.

Original Task: %s

Previous Results: %s

Feedback: %s

Please create an improved task decomposition addressing the feedback.
Output JSON only, no explanation.`

// ============================================================================
// DECOMPOSER
// ============================================================================

// Decomposer turns a task (plus optional refinement feedback) into a
// validated TaskDAG via guided-JSON generation with a bounded retry loop.
type Decomposer struct {
	provider  llms.Provider
	cfg       config.PlannerConfig
	maxRetry  int
	collector *metrics.Collector
	log       *slog.Logger

	schema *jsonschema.Schema
}

// NewDecomposer creates a decomposer. maxRetry bounds schema-retry attempts.
func NewDecomposer(provider llms.Provider, cfg config.PlannerConfig, maxRetry int, collector *metrics.Collector, log *slog.Logger) *Decomposer {
	if log == nil {
		log = slog.Default()
	}
	return &Decomposer{
		provider:  provider,
		cfg:       cfg,
		maxRetry:  maxRetry,
		collector: collector,
		log:       log,
		schema:    dagSchema(),
	}
}

// dagSchema reflects the TaskDAG schema inline, without $ref indirection,
// as required for server-side guided decoding.
func dagSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	return reflector.Reflect(&workflow.TaskDAG{})
}

// Decompose produces a validated TaskDAG. It never fails: when every attempt
// is rejected it falls back to a single commonsense node wrapping the whole
// task.
func (d *Decomposer) Decompose(ctx context.Context, task, feedback, previousMerged string) *workflow.TaskDAG {
	var errs []string
	var total llms.Usage

	for attempt := 1; attempt <= d.maxRetry; attempt++ {
		prompt := d.buildPrompt(task, feedback, previousMerged, errs)

		result, err := d.provider.Generate(ctx, llms.GenerateRequest{
			Size:        config.ModelSizeLarge,
			Model:       d.cfg.DecomposerModel,
			Prompt:      prompt,
			MaxTokens:   d.cfg.DecomposeMaxTokens,
			Temperature: d.cfg.DecomposeTemperature,
			GuidedJSON:  d.schema,
			Label:       "decomposer",
		})
		if err != nil {
			d.log.Warn("decomposer llm call failed", "attempt", attempt, "error", err)
			errs = append(errs, fmt.Sprintf("Attempt %d llm error: %v", attempt, err))
			continue
		}
		total.Add(d.recordUsage(prompt, result))

		dag, err := parseDAG(result.Text)
		if err != nil {
			d.log.Warn("decomposer produced invalid dag", "attempt", attempt, "error", err)
			errs = append(errs, fmt.Sprintf("Attempt %d validation error: %v", attempt, err))
			continue
		}

		d.log.Info("task decomposed",
			"attempt", attempt, "nodes", len(dag.Tasks), "total_tokens", total.TotalTokens)
		return dag
	}

	d.log.Warn("decomposition attempts exhausted, using fallback single-node dag",
		"attempts", d.maxRetry)
	return FallbackDAG(task)
}

// buildPrompt composes the system prompt, the first-time or refinement user
// block, and, after failed attempts, the last two validation errors.
func (d *Decomposer) buildPrompt(task, feedback, previousMerged string, errs []string) string {
	var user string
	if feedback != "" && previousMerged != "" {
		user = fmt.Sprintf(decomposerRefinementTemplate, task, previousMerged, feedback)
	} else {
		user = fmt.Sprintf(decomposerUserTemplate, task)
	}

	errBlock := ""
	if len(errs) > 0 {
		recent := errs
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		lines := make([]string, 0, len(recent))
		for _, msg := range recent {
			lines = append(lines, "- "+msg)
		}
		errBlock = "\n\nPrevious attempts had validation issues:\n" +
			strings.Join(lines, "\n") +
			"\nPlease correct these issues in your response."
	}

	return decomposerSystemPrompt + "\n\n" + user + errBlock
}

func (d *Decomposer) recordUsage(prompt string, result *llms.GenerateResult) llms.Usage {
	usage := result.Usage
	if usage.TotalTokens == 0 {
		promptTokens := utils.CountTokens(d.cfg.DecomposerModel, prompt)
		completionTokens := utils.CountTokens(d.cfg.DecomposerModel, result.Text)
		usage = llms.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}
	d.collector.Record(metrics.ClassDecomposer, metrics.ParamsForClass(metrics.ClassDecomposer), usage)
	return usage
}

// parseDAG decodes and validates a DAG from raw LLM output.
func parseDAG(raw string) (*workflow.TaskDAG, error) {
	cleaned := CleanJSONResponse(raw)

	var dag workflow.TaskDAG
	if err := json.Unmarshal([]byte(cleaned), &dag); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := dag.Validate(); err != nil {
		return nil, err
	}
	return &dag, nil
}

// FallbackDAG wraps the whole task in a single commonsense node.
func FallbackDAG(task string) *workflow.TaskDAG {
	return &workflow.TaskDAG{Tasks: []workflow.SubTask{{
		ID:           "task1",
		Domain:       config.DomainCommonsense,
		Content:      task,
		Dependencies: []string{},
	}}}
}

// fencePattern extracts the payload of a Markdown code fence, with or
// without a language tag.
var fencePattern = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")

// CleanJSONResponse strips Markdown code fences the model may emit even
// under guided decoding.
func CleanJSONResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.Contains(cleaned, "```") {
		return cleaned
	}

	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}

	var kept []string
	for _, line := range strings.Split(cleaned, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
