// Package config provides configuration types and utilities for the orchestrator.
// This file contains the main unified configuration entry point.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config is the complete orchestrator configuration. It is assembled once per
// process (Load or Default) and read-only afterward.
type Config struct {
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`

	Endpoints    EndpointConfig          `yaml:"endpoints,omitempty" json:"endpoints"`
	Router       RouterConfig            `yaml:"router,omitempty" json:"router"`
	Planner      PlannerConfig           `yaml:"planner,omitempty" json:"planner"`
	Domains      map[Domain]DomainConfig `yaml:"domains,omitempty" json:"domains"`
	Scheduler    SchedulerConfig         `yaml:"scheduler,omitempty" json:"scheduler"`
	Orchestrator OrchestratorConfig      `yaml:"orchestrator,omitempty" json:"orchestrator"`
	Server       ServerConfig            `yaml:"server,omitempty" json:"server"`
	Logging      LoggingConfig           `yaml:"logging,omitempty" json:"logging"`
}

// Validate implements Config.Validate for Config
func (c *Config) Validate() error {
	if err := c.Endpoints.Validate(); err != nil {
		return fmt.Errorf("endpoints validation failed: %w", err)
	}
	if err := c.Router.Validate(); err != nil {
		return fmt.Errorf("router validation failed: %w", err)
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner validation failed: %w", err)
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("at least one domain is required")
	}
	for domain, dc := range c.Domains {
		if !domain.Valid() {
			return fmt.Errorf("domain %q is not in the closed domain set", domain)
		}
		if err := dc.Validate(); err != nil {
			return fmt.Errorf("domain '%s' validation failed: %w", domain, err)
		}
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler validation failed: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for Config
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "maestro"
	}

	c.Endpoints.SetDefaults()
	c.Router.SetDefaults()
	c.Planner.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.Server.SetDefaults()
	c.Logging.SetDefaults()

	// Zero-config: ship the built-in domain table, filling in any domain the
	// file omitted. Partially specified domains keep their overrides.
	defaults := defaultDomains()
	if c.Domains == nil {
		c.Domains = make(map[Domain]DomainConfig, len(defaults))
	}
	for domain, def := range defaults {
		dc, ok := c.Domains[domain]
		if !ok {
			c.Domains[domain] = def
			continue
		}
		if len(dc.Keywords) == 0 {
			dc.Keywords = def.Keywords
		}
		if dc.SmallModel == "" {
			dc.SmallModel = def.SmallModel
		}
		if dc.LargeModel == "" {
			dc.LargeModel = def.LargeModel
		}
		if dc.Template == "" {
			dc.Template = def.Template
		}
		if dc.Temperature == 0 {
			dc.Temperature = def.Temperature
		}
		if dc.MaxTokens == 0 {
			dc.MaxTokens = def.MaxTokens
		}
		c.Domains[domain] = dc
	}
}

// Domain returns the configuration for a domain.
func (c *Config) Domain(d Domain) (DomainConfig, error) {
	dc, ok := c.Domains[d]
	if !ok {
		return DomainConfig{}, fmt.Errorf("domain %q is not configured", d)
	}
	return dc, nil
}

// Default returns the zero-config setup: built-in domain table plus
// environment-derived endpoints.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads, expands, defaults, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML with environment variable
// expansion applied to the document before decoding.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
