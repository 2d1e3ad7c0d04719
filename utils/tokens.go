// Package utils provides utility functions for the orchestrator.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ============================================================================
// TOKEN COUNTING
// ============================================================================

// TokenCounter handles accurate token counting per model. It backs the usage
// estimates recorded when an endpoint omits its usage block.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	// Cache encodings to avoid repeated initialization
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for a specific model, falling back to the
// cl100k_base encoding for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count of the text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimateTokens provides a rough token estimation when no encoding is
// available.
func EstimateTokens(text string) int {
	// Rough estimation: 4 characters per token
	return len(text) / 4
}

// CountTokens counts tokens in text using the model's encoding, degrading to
// EstimateTokens when no encoding can be initialized.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	counter, err := NewTokenCounter(model)
	if err != nil {
		return EstimateTokens(text)
	}
	return counter.Count(text)
}
