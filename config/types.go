// Package config provides configuration types and utilities for the orchestrator.
// This file contains all configuration types in a unified structure.
package config

import (
	"fmt"
	"strings"
)

// ============================================================================
// DOMAIN AND MODEL SIZE ENUMS
// ============================================================================

// Domain tags a subtask with its required expertise and selects the prompt
// template and model pair used to execute it.
type Domain string

const (
	DomainCommonsense Domain = "commonsense"
	DomainMedical     Domain = "medical"
	DomainLaw         Domain = "law"
	DomainMath        Domain = "math"
)

// AllDomains returns the closed set of recognized domains.
func AllDomains() []Domain {
	return []Domain{DomainCommonsense, DomainMedical, DomainLaw, DomainMath}
}

// Valid reports whether d is a member of the closed domain set.
func (d Domain) Valid() bool {
	switch d {
	case DomainCommonsense, DomainMedical, DomainLaw, DomainMath:
		return true
	}
	return false
}

// ParseDomain normalizes and validates a domain string.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown domain %q (expected one of: commonsense, medical, law, math)", s)
	}
	return d, nil
}

// ModelSize selects between the small and large model endpoints.
type ModelSize string

const (
	ModelSizeSmall ModelSize = "small"
	ModelSizeLarge ModelSize = "large"
)

// Valid reports whether s is a recognized model size.
func (s ModelSize) Valid() bool {
	return s == ModelSizeSmall || s == ModelSizeLarge
}

// ============================================================================
// ENDPOINT CONFIGURATION
// ============================================================================

// EndpointConfig maps model sizes to OpenAI-compatible completion endpoints.
type EndpointConfig struct {
	Small   string `yaml:"small" json:"small"`     // Base URL of the small-model service
	Large   string `yaml:"large" json:"large"`     // Base URL of the large-model service
	Timeout int    `yaml:"timeout" json:"timeout"` // Request timeout in seconds
}

// Validate implements Config.Validate for EndpointConfig
func (c *EndpointConfig) Validate() error {
	if c.Small == "" {
		return fmt.Errorf("small endpoint is required")
	}
	if c.Large == "" {
		return fmt.Errorf("large endpoint is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for EndpointConfig
func (c *EndpointConfig) SetDefaults() {
	if c.Small == "" {
		c.Small = envOr("VLLM_LLAMA_1B_ENDPOINT", "http://localhost:8000/v1")
	}
	if c.Large == "" {
		c.Large = envOr("VLLM_LLAMA_8B_ENDPOINT", "http://localhost:8001/v1")
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	c.Small = strings.TrimSuffix(c.Small, "/")
	c.Large = strings.TrimSuffix(c.Large, "/")
}

// ForSize returns the endpoint URL for the given model size.
func (c *EndpointConfig) ForSize(size ModelSize) string {
	if size == ModelSizeLarge {
		return c.Large
	}
	return c.Small
}

// ============================================================================
// DOMAIN CONFIGURATION
// ============================================================================

// DomainConfig holds the per-domain execution parameters: the keyword list used
// by the heuristic domain fallback, the LoRA adapter name per model size, the
// prompt template prefix, and the sampling defaults. Immutable after Load.
type DomainConfig struct {
	Keywords    []string `yaml:"keywords" json:"keywords"`
	SmallModel  string   `yaml:"small_model" json:"small_model"`
	LargeModel  string   `yaml:"large_model" json:"large_model"`
	Template    string   `yaml:"template" json:"template"`
	Temperature float64  `yaml:"temperature" json:"temperature"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens"`
}

// Validate implements Config.Validate for DomainConfig
func (c *DomainConfig) Validate() error {
	if c.SmallModel == "" {
		return fmt.Errorf("small_model is required")
	}
	if c.LargeModel == "" {
		return fmt.Errorf("large_model is required")
	}
	if c.Template == "" {
		return fmt.Errorf("template is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}

// ModelForSize returns the adapter (or base model) name for the given size.
func (c *DomainConfig) ModelForSize(size ModelSize) string {
	if size == ModelSizeLarge {
		return c.LargeModel
	}
	return c.SmallModel
}

// ============================================================================
// ROUTER CONFIGURATION
// ============================================================================

// RouterConfig configures the routing-classifier client.
type RouterConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Timeout int    `yaml:"timeout" json:"timeout"` // Request timeout in seconds

	// Threshold is the minimum probability required to honor a "large"
	// verdict. Zero honors the raw verdict.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// Disabled forces the conservative small-model default without
	// contacting the router service.
	Disabled bool `yaml:"disabled" json:"disabled"`
}

// Validate implements Config.Validate for RouterConfig
func (c *RouterConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0, 1], got %g", c.Threshold)
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for RouterConfig
func (c *RouterConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = envOr("ROUTER_SERVICE_URL", "http://localhost:8002")
	}
	if c.Timeout == 0 {
		c.Timeout = 5
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// ============================================================================
// PLANNER CONFIGURATION
// ============================================================================

// PlannerConfig configures the decomposer and synthesizer calls, both of which
// run against the large-model endpoint with a base (non-adapter) model.
type PlannerConfig struct {
	DecomposerModel  string `yaml:"decomposer_model" json:"decomposer_model"`
	SynthesizerModel string `yaml:"synthesizer_model" json:"synthesizer_model"`

	DecomposeTemperature  float64 `yaml:"decompose_temperature" json:"decompose_temperature"`
	DecomposeMaxTokens    int     `yaml:"decompose_max_tokens" json:"decompose_max_tokens"`
	SynthesizeTemperature float64 `yaml:"synthesize_temperature" json:"synthesize_temperature"`
	SynthesizeMaxTokens   int     `yaml:"synthesize_max_tokens" json:"synthesize_max_tokens"`
}

// Validate implements Config.Validate for PlannerConfig
func (c *PlannerConfig) Validate() error {
	if c.DecomposerModel == "" {
		return fmt.Errorf("decomposer_model is required")
	}
	if c.SynthesizerModel == "" {
		return fmt.Errorf("synthesizer_model is required")
	}
	if c.DecomposeMaxTokens <= 0 || c.SynthesizeMaxTokens <= 0 {
		return fmt.Errorf("max token budgets must be positive")
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for PlannerConfig
func (c *PlannerConfig) SetDefaults() {
	if c.DecomposerModel == "" {
		c.DecomposerModel = envOr("GLOBAL_ROUTER_MODEL_NAME", "meta-llama/Llama-3.1-8B")
	}
	if c.SynthesizerModel == "" {
		c.SynthesizerModel = envOr("RESULT_HANDLER_MODEL", "meta-llama/Llama-3.1-8B")
	}
	if c.DecomposeTemperature == 0 {
		c.DecomposeTemperature = 0.7
	}
	if c.DecomposeMaxTokens == 0 {
		c.DecomposeMaxTokens = 1024
	}
	if c.SynthesizeTemperature == 0 {
		c.SynthesizeTemperature = 0.5
	}
	if c.SynthesizeMaxTokens == 0 {
		c.SynthesizeMaxTokens = 2048
	}
}

// ============================================================================
// SCHEDULER CONFIGURATION
// ============================================================================

// ContextScope selects which completed results are threaded into downstream
// subtask prompts.
type ContextScope string

const (
	// ContextScopeAll passes every already-completed result downstream.
	// Dependencies express ordering, not information scoping.
	ContextScopeAll ContextScope = "all"

	// ContextScopeDeps restricts downstream context to declared dependencies.
	ContextScopeDeps ContextScope = "deps"
)

// SchedulerConfig configures DAG execution.
type SchedulerConfig struct {
	MaxConcurrency int          `yaml:"max_concurrency" json:"max_concurrency"`
	ContextScope   ContextScope `yaml:"context_scope" json:"context_scope"`
}

// Validate implements Config.Validate for SchedulerConfig
func (c *SchedulerConfig) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if c.ContextScope != ContextScopeAll && c.ContextScope != ContextScopeDeps {
		return fmt.Errorf("context_scope must be %q or %q", ContextScopeAll, ContextScopeDeps)
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for SchedulerConfig
func (c *SchedulerConfig) SetDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 16
	}
	if c.ContextScope == "" {
		c.ContextScope = ContextScopeAll
	}
}

// ============================================================================
// ORCHESTRATOR CONFIGURATION
// ============================================================================

// OrchestratorConfig configures the outer refinement loop.
type OrchestratorConfig struct {
	MaxRetry int `yaml:"max_retry" json:"max_retry"`

	// RedecomposeOnRetry re-runs the decomposer with synthesizer feedback on
	// later iterations instead of reusing the initial DAG.
	RedecomposeOnRetry bool `yaml:"redecompose_on_retry" json:"redecompose_on_retry"`
}

// Validate implements Config.Validate for OrchestratorConfig
func (c *OrchestratorConfig) Validate() error {
	if c.MaxRetry <= 0 {
		return fmt.Errorf("max_retry must be positive")
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for OrchestratorConfig
func (c *OrchestratorConfig) SetDefaults() {
	if c.MaxRetry == 0 {
		c.MaxRetry = 3
	}
}

// ============================================================================
// SERVER AND LOGGING CONFIGURATION
// ============================================================================

// ServerConfig configures the HTTP surface exposing the run entry.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// SetDefaults implements Config.SetDefaults for ServerConfig
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = envOr("MAESTRO_ADDR", ":8080")
	}
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text or json
}

// SetDefaults implements Config.SetDefaults for LoggingConfig
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}
