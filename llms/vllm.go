// Package llms provides HTTP clients for OpenAI-compatible completion
// endpoints, including guided-JSON and guided-regex generation.
package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/internal/httpclient"
)

// ============================================================================
// VLLM PROVIDER IMPLEMENTATION
// ============================================================================

// adapterMarkers identify LoRA adapter models, which get stricter decoding
// control than base models.
var adapterMarkers = []string{"lora", "medqa", "casehold", "mathqa", "csqa"}

// VLLMProvider implements Provider against vLLM's OpenAI-compatible
// /completions endpoint, one instance covering both the small and large
// services.
type VLLMProvider struct {
	endpoints config.EndpointConfig
	client    *httpclient.Client
	log       *slog.Logger
}

// completionRequest is the /completions request payload.
type completionRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	MaxTokens         int      `json:"max_tokens"`
	Temperature       float64  `json:"temperature"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	Stop              []string `json:"stop"`
	GuidedJSON        any      `json:"guided_json,omitempty"`
	GuidedRegex       string   `json:"guided_regex,omitempty"`
}

// completionResponse is the /completions response payload.
type completionResponse struct {
	Choices []completionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// completionChoice represents a response choice.
type completionChoice struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// NewVLLMProvider creates a provider over the configured endpoint pair.
func NewVLLMProvider(endpoints config.EndpointConfig, log *slog.Logger) *VLLMProvider {
	if log == nil {
		log = slog.Default()
	}
	return &VLLMProvider{
		endpoints: endpoints,
		client: httpclient.New(
			httpclient.WithTimeout(time.Duration(endpoints.Timeout) * time.Second),
		),
		log: log,
	}
}

// Generate issues one completion request and returns the first choice's
// trimmed text plus the usage exactly as reported, zero-valued if absent.
func (p *VLLMProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generate request: %w", err)
	}

	endpoint := p.endpoints.ForSize(req.Size)
	url := endpoint + "/completions"

	payload := completionRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		GuidedJSON:  req.GuidedJSON,
		GuidedRegex: req.GuidedRegex,
	}

	// Adapter models get stricter decoding control than base models.
	if isAdapterModel(req.Model) {
		payload.RepetitionPenalty = 1.1
		payload.Stop = []string{"\n\n\n", "Task:", "Response:"}
	} else {
		payload.RepetitionPenalty = 1.0
		payload.Stop = []string{"\n\n\n"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewError(KindTransport, endpoint, req.Model, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(KindTransport, endpoint, req.Model, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		p.log.Warn("llm request failed",
			"label", req.Label, "endpoint", endpoint, "model", req.Model, "error", err)
		return nil, NewError(KindTransport, endpoint, req.Model, "request failed", err)
	}
	defer resp.Body.Close()

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, NewError(KindTransport, endpoint, req.Model, "failed to decode response", err)
	}

	if len(decoded.Choices) == 0 {
		return nil, NewError(KindEmptyResponse, endpoint, req.Model, "no choices in response", nil)
	}

	choice := decoded.Choices[0]
	text := strings.TrimSpace(choice.Text)
	if text == "" {
		p.log.Warn("llm returned empty text",
			"label", req.Label, "model", req.Model, "finish_reason", choice.FinishReason,
			"completion_tokens", decoded.Usage.CompletionTokens)
		return nil, NewError(KindEmptyResponse, endpoint, req.Model, "empty text in first choice", nil)
	}

	p.log.Debug("llm call completed",
		"label", req.Label, "model", req.Model, "size", req.Size,
		"total_tokens", decoded.Usage.TotalTokens, "duration", time.Since(start))

	return &GenerateResult{
		Text:         text,
		FinishReason: choice.FinishReason,
		Usage:        decoded.Usage,
	}, nil
}

// Healthy probes GET {endpoint}/models for the given size.
func (p *VLLMProvider) Healthy(ctx context.Context, size config.ModelSize) bool {
	url := p.endpoints.ForSize(size) + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// isAdapterModel reports whether the model name refers to a LoRA adapter.
func isAdapterModel(model string) bool {
	lower := strings.ToLower(model)
	for _, marker := range adapterMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
