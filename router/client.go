// Package router provides the client for the routing-classifier service that
// decides model size per subtask.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kadirpekel/maestro/config"
)

// ============================================================================
// ROUTE DECISION TYPES
// ============================================================================

// RouteDecision is the classifier verdict for one subtask.
type RouteDecision struct {
	Size        config.ModelSize `json:"size"`
	Probability float64          `json:"probability"`
}

// routeRequest is the POST /route/{domain} payload.
type routeRequest struct {
	Task    string            `json:"task"`
	Context map[string]string `json:"context"`
}

// routeResponse is the classifier service response. Prediction is "1b" or
// "8b"; probability is the softmax mass on the large model.
type routeResponse struct {
	Prediction    string    `json:"prediction"`
	Probability   float64   `json:"probability"`
	Label         string    `json:"label"`
	SoftmaxScores []float64 `json:"softmax_scores"`
}

// fallbackDecision is the conservative default when routing is unavailable.
func fallbackDecision() RouteDecision {
	return RouteDecision{Size: config.ModelSizeSmall, Probability: 0.0}
}

// ============================================================================
// ROUTER CLIENT
// ============================================================================

// Client talks to the routing-classifier service. Construction probes
// GET /health; an unreachable service switches the client to disabled mode,
// in which every Route call returns the small-model default. Routing failure
// is never fatal to a run.
type Client struct {
	cfg      config.RouterConfig
	client   *http.Client
	log      *slog.Logger
	disabled bool
}

// NewClient creates a router client and probes service health.
func NewClient(cfg config.RouterConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		cfg:      cfg,
		client:   &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		log:      log,
		disabled: cfg.Disabled,
	}

	if !c.disabled && !c.healthCheck() {
		log.Warn("router service unreachable, routing disabled", "base_url", cfg.BaseURL)
		c.disabled = true
	}

	return c
}

// Disabled reports whether the client is in disabled mode.
func (c *Client) Disabled() bool {
	return c.disabled
}

// Route decides the model size for a (domain, task, context) triple. In
// disabled mode, or on any failure, it returns the small-model default. A
// "large" verdict below the configured probability threshold is demoted to
// small; with a zero threshold the raw verdict is honored.
func (c *Client) Route(ctx context.Context, domain config.Domain, task string, taskCtx map[string]string) RouteDecision {
	if c.disabled {
		return fallbackDecision()
	}

	decision, err := c.route(ctx, domain, task, taskCtx)
	if err != nil {
		c.log.Warn("routing failed, defaulting to small model",
			"domain", domain, "error", err)
		return fallbackDecision()
	}

	if decision.Size == config.ModelSizeLarge && decision.Probability < c.cfg.Threshold {
		c.log.Debug("large verdict below threshold, demoting to small",
			"domain", domain, "probability", decision.Probability, "threshold", c.cfg.Threshold)
		decision.Size = config.ModelSizeSmall
	}

	return decision
}

func (c *Client) route(ctx context.Context, domain config.Domain, task string, taskCtx map[string]string) (RouteDecision, error) {
	body, err := json.Marshal(routeRequest{Task: task, Context: taskCtx})
	if err != nil {
		return RouteDecision{}, fmt.Errorf("failed to encode route request: %w", err)
	}

	url := fmt.Sprintf("%s/route/%s", c.cfg.BaseURL, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return RouteDecision{}, fmt.Errorf("failed to build route request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return RouteDecision{}, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RouteDecision{}, fmt.Errorf("route request returned HTTP %d", resp.StatusCode)
	}

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return RouteDecision{}, fmt.Errorf("failed to decode route response: %w", err)
	}

	switch decoded.Prediction {
	case "1b":
		return RouteDecision{Size: config.ModelSizeSmall, Probability: decoded.Probability}, nil
	case "8b":
		return RouteDecision{Size: config.ModelSizeLarge, Probability: decoded.Probability}, nil
	default:
		return RouteDecision{}, fmt.Errorf("unknown prediction %q", decoded.Prediction)
	}
}

// healthCheck probes GET /health with the configured timeout.
func (c *Client) healthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.cfg.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
