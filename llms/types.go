// Package llms provides HTTP clients for OpenAI-compatible completion
// endpoints, including guided-JSON and guided-regex generation.
package llms

import (
	"context"
	"fmt"

	"github.com/kadirpekel/maestro/config"
)

// ============================================================================
// REQUEST AND RESULT TYPES
// ============================================================================

// Usage represents token usage information as reported by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// GenerateRequest describes one completion call. Size selects the endpoint;
// Model may be a base model identifier or a LoRA adapter name.
type GenerateRequest struct {
	Size        config.ModelSize
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64

	// GuidedJSON constrains decoding to a JSON schema; GuidedRegex to a
	// regular expression. At most one may be set.
	GuidedJSON  any
	GuidedRegex string

	// Label identifies the caller in logs and mock sentinels.
	Label string
}

// Validate checks the request invariants.
func (r *GenerateRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if r.GuidedJSON != nil && r.GuidedRegex != "" {
		return fmt.Errorf("guided_json and guided_regex are mutually exclusive")
	}
	if !r.Size.Valid() {
		return fmt.Errorf("model size %q is not valid", r.Size)
	}
	return nil
}

// GenerateResult holds the first choice's trimmed text and the reported usage.
type GenerateResult struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Provider is the generation interface consumed by the executor, decomposer,
// and synthesizer. Implementations must be safe for concurrent use.
type Provider interface {
	// Generate issues one completion request and returns text plus usage.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// Healthy probes the endpoint for the given size.
	Healthy(ctx context.Context, size config.ModelSize) bool
}

// ============================================================================
// ERRORS
// ============================================================================

// ErrorKind classifies LLM call failures.
type ErrorKind string

const (
	// KindTransport covers connection failures, timeouts, and non-2xx
	// responses.
	KindTransport ErrorKind = "transport"

	// KindEmptyResponse covers 2xx responses with no choices or blank text.
	KindEmptyResponse ErrorKind = "empty_response"
)

// Error represents an LLM call failure. The caller decides policy: the
// executor degrades to a mock result, the decomposer retries, the synthesizer
// reports insufficiency.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Model    string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s error (%s, model %s): %s: %v", e.Kind, e.Endpoint, e.Model, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s error (%s, model %s): %s", e.Kind, e.Endpoint, e.Model, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new LLM error.
func NewError(kind ErrorKind, endpoint, model, message string, err error) *Error {
	return &Error{Kind: kind, Endpoint: endpoint, Model: model, Message: message, Err: err}
}
