package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/llms"
	"github.com/kadirpekel/maestro/metrics"
	"github.com/kadirpekel/maestro/utils"
	"github.com/kadirpekel/maestro/workflow"
)

// ============================================================================
// SYNTHESIS TYPES
// ============================================================================

// OutcomeStatus classifies a synthesis verdict.
type OutcomeStatus string

const (
	// OutcomeOK means the answer is accepted as final.
	OutcomeOK OutcomeStatus = "ok"

	// OutcomeInsufficient requests another refinement iteration.
	OutcomeInsufficient OutcomeStatus = "insufficient"
)

// Outcome is the synthesizer verdict: a final answer, or feedback for the
// next iteration.
type Outcome struct {
	Status   OutcomeStatus
	Answer   string
	Feedback string

	// UsedAgents lists the node ids the model reports drawing from.
	UsedAgents []string
}

// synthesisResponse is the guided-JSON shape the synthesizer model emits.
type synthesisResponse struct {
	Answer     string   `json:"answer" jsonschema:"required,description=Direct answer to the original task or empty string if information is insufficient"`
	UsedAgents []string `json:"used_agents,omitempty" jsonschema:"description=IDs of the agent results the answer draws from"`
}

// placeholderAnswers are model outputs that read as refusals; they classify
// the synthesis as insufficient.
var placeholderAnswers = map[string]bool{
	"no answer":                true,
	"insufficient information": true,
	"unable to answer":         true,
	"cannot answer":            true,
	"[no result available]":    true,
}

// minAnswerLength is the shortest answer, in runes, accepted as substantive.
const minAnswerLength = 20

// ============================================================================
// SYNTHESIZER
// ============================================================================

// Synthesizer turns the per-node results into either a final answer or
// structured refinement feedback.
type Synthesizer struct {
	provider  llms.Provider
	cfg       config.PlannerConfig
	maxRetry  int
	collector *metrics.Collector
	log       *slog.Logger

	schema *jsonschema.Schema
}

// NewSynthesizer creates a synthesizer. maxRetry is the outer loop's budget;
// at or past it the synthesizer is bypassed and the merged text is returned
// verbatim.
func NewSynthesizer(provider llms.Provider, cfg config.PlannerConfig, maxRetry int, collector *metrics.Collector, log *slog.Logger) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	return &Synthesizer{
		provider:  provider,
		cfg:       cfg,
		maxRetry:  maxRetry,
		collector: collector,
		log:       log,
		schema:    reflector.Reflect(&synthesisResponse{}),
	}
}

// Synthesize evaluates the run's results against the original task.
// iteration is the zero-based outer loop counter; once it reaches the retry
// budget the merged text is accepted verbatim.
func (s *Synthesizer) Synthesize(ctx context.Context, task string, results map[string]workflow.SubTaskResult, dag *workflow.TaskDAG, iteration int) Outcome {
	if iteration >= s.maxRetry {
		s.log.Info("retry budget exhausted, returning merged results verbatim")
		return Outcome{Status: OutcomeOK, Answer: MergeForDisplay(results)}
	}

	structured := structuredContext(results, dag)
	if structured == "" {
		return Outcome{
			Status:   OutcomeInsufficient,
			Feedback: "No agent produced a usable result; every subtask failed or returned a placeholder.",
		}
	}

	prompt := s.buildPrompt(task, structured)

	result, err := s.provider.Generate(ctx, llms.GenerateRequest{
		Size:        config.ModelSizeLarge,
		Model:       s.cfg.SynthesizerModel,
		Prompt:      prompt,
		MaxTokens:   s.cfg.SynthesizeMaxTokens,
		Temperature: s.cfg.SynthesizeTemperature,
		GuidedJSON:  s.schema,
		Label:       "synthesizer",
	})
	if err != nil {
		s.log.Warn("synthesizer llm call failed", "error", err)
		return Outcome{
			Status:   OutcomeInsufficient,
			Feedback: fmt.Sprintf("Synthesis failed: %v. Provide more direct, self-contained subtask results.", err),
		}
	}
	s.recordUsage(prompt, result)

	parsed, err := parseSynthesis(result.Text)
	if err != nil {
		s.log.Warn("synthesizer produced unparseable json", "error", err)
		return Outcome{
			Status:   OutcomeInsufficient,
			Feedback: fmt.Sprintf("Synthesis output was not valid JSON: %v.", err),
		}
	}

	answer := strings.TrimSpace(parsed.Answer)
	if isInsufficientAnswer(answer) {
		s.log.Info("synthesized answer classified insufficient",
			"answer_length", utf8.RuneCountInString(answer))
		return Outcome{
			Status:   OutcomeInsufficient,
			Feedback: insufficiencyFeedback(answer),
		}
	}

	return Outcome{Status: OutcomeOK, Answer: answer, UsedAgents: parsed.UsedAgents}
}

func (s *Synthesizer) buildPrompt(task, structured string) string {
	factsBlock := ""
	if section := ExtractFacts(task).PromptSection(); section != "" {
		factsBlock = "\n\n" + section
	}

	return fmt.Sprintf(`You are a result synthesizer. Domain agents have completed subtasks for the original task below. Treat their results as retrieved reference material; do not judge or grade them.

Original Task:
%s%s

Agent Results:
%s

Instructions:
- Answer the original task directly, using the agent results as evidence
- Be specific and complete; do not describe the agents or the process
- If the results do not contain enough information to answer, return an empty answer

Output JSON only.`, task, factsBlock, structured)
}

func (s *Synthesizer) recordUsage(prompt string, result *llms.GenerateResult) {
	usage := result.Usage
	if usage.TotalTokens == 0 {
		promptTokens := utils.CountTokens(s.cfg.SynthesizerModel, prompt)
		completionTokens := utils.CountTokens(s.cfg.SynthesizerModel, result.Text)
		usage = llms.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}
	s.collector.Record(metrics.ClassSynthesizer, metrics.ParamsForClass(metrics.ClassSynthesizer), usage)
}

// structuredContext renders every non-mock result as a block of id, domain,
// dependencies, subtask, and response. Mock and error nodes are omitted
// entirely.
func structuredContext(results map[string]workflow.SubTaskResult, dag *workflow.TaskDAG) string {
	ids := make([]string, 0, len(results))
	for id, res := range results {
		if res.Status == workflow.StatusOK {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var blocks []string
	for _, id := range ids {
		res := results[id]
		deps := "none"
		if node, ok := dag.Node(id); ok && len(node.Dependencies) > 0 {
			deps = strings.Join(node.Dependencies, ", ")
		}
		blocks = append(blocks, fmt.Sprintf(
			"Agent %s (domain: %s, depends on: %s)\nSubtask: %s\nResult: %s",
			id, res.Domain, deps, res.SubtaskContent, res.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// parseSynthesis decodes the guided-JSON response, repairing a truncated
// object by closing the trailing string and brace.
func parseSynthesis(raw string) (*synthesisResponse, error) {
	cleaned := CleanJSONResponse(raw)

	var parsed synthesisResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		return &parsed, nil
	}

	// Truncated emission: the decoder ran out of budget mid-string.
	repaired := cleaned + `"}`
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable synthesis response: %w", err)
	}
	return &parsed, nil
}

func isInsufficientAnswer(answer string) bool {
	if utf8.RuneCountInString(answer) < minAnswerLength {
		return true
	}
	return placeholderAnswers[strings.ToLower(answer)]
}

func insufficiencyFeedback(answer string) string {
	if answer == "" {
		return "The synthesized answer was empty. Subtask results lacked the information needed to answer the original task; produce more specific, self-contained results."
	}
	return fmt.Sprintf("The synthesized answer %q was too short or a placeholder. Produce subtask results that directly address the original task.", answer)
}
