// Package config provides configuration types and utilities for the orchestrator.
// This file contains environment variable utilities for configuration processing.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// ============================================================================
// ENVIRONMENT VARIABLE UTILITIES
// ============================================================================

var (
	// Pre-compiled regex patterns for better performance
	envVarPatterns = struct {
		withDefault *regexp.Regexp // ${VAR:-default}
		braced      *regexp.Regexp // ${VAR}
		simple      *regexp.Regexp // $VAR
	}{
		withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
		braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
		simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
	}
)

// expandEnvVars expands environment variables in a string
// Supports formats: ${VAR:-default}, ${VAR}, $VAR
// Processes patterns in order to avoid conflicts
func expandEnvVars(s string) string {
	// Early return if no environment variables detected
	if !strings.Contains(s, "$") {
		return s
	}

	// Process ${VAR:-default} first (most specific)
	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) == 3 {
			if val := os.Getenv(parts[1]); val != "" {
				return val
			}
			return parts[2]
		}
		return match
	})

	// Process ${VAR} format (must come after ${VAR:-default})
	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	// Process $VAR format (simple, least specific)
	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	return s
}

// envOr returns the value of the environment variable or the fallback when it
// is unset or empty.
func envOr(name, fallback string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return fallback
}

// LoadEnvFiles loads environment variables from .env files
// Loads in priority order: .env.local (highest) → .env → system environment (lowest)
func LoadEnvFiles() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}
