// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command maestro runs the multi-agent task orchestrator.
//
// Usage:
//
//	maestro run "Compute the derivative of 3x^2 + 2x + 1 and evaluate at x=2."
//	maestro serve --config config.yaml
//	maestro validate --config config.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kadirpekel/maestro/agent"
	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/llms"
	"github.com/kadirpekel/maestro/logger"
	"github.com/kadirpekel/maestro/metrics"
	"github.com/kadirpekel/maestro/orchestrator"
	"github.com/kadirpekel/maestro/router"
	"github.com/kadirpekel/maestro/server"
	"github.com/kadirpekel/maestro/workflow"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Process a single task and print the result."`
	Serve    ServeCmd    `cmd:"" help:"Start the orchestrator HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text or json)." default:"text"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("maestro version %s\n", version)
	return nil
}

// RunCmd processes one task from the command line.
type RunCmd struct {
	Task   string `arg:"" help:"Task to process."`
	UserID string `name:"user-id" help:"User identifier threaded into subtask context." default:"cli"`
	JSON   bool   `help:"Print the full result record as JSON."`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	o, _ := buildOrchestrator(cfg, nil, log)
	result := o.Process(ctx, c.Task, c.UserID)

	if c.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Println(result.FinalAnswer)
	if !result.Success {
		fmt.Fprintf(os.Stderr, "\nrun did not converge (%s after %d iterations)\n",
			result.Reason, result.Iterations)
	}
	fmt.Fprintf(os.Stderr, "\ntokens: %d, compute: %.2f TFLOPs, iterations: %d\n",
		result.Metrics.TotalTokens, result.Metrics.TotalTFLOPs, result.Iterations)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	ctx, cancel := signalContext()
	defer cancel()

	registry := prometheus.NewRegistry()
	o, _ := buildOrchestrator(cfg, registry, log)
	srv := server.New(cfg.Server, o, registry, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ValidateCmd checks a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	fmt.Printf("%s is valid\n", cli.Config)
	return nil
}

// setup loads env files, configuration, and logging for a command.
func setup(cli *CLI) (*config.Config, *slog.Logger, error) {
	_ = config.LoadEnvFiles()

	var cfg *config.Config
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	return cfg, log, nil
}

// buildOrchestrator wires the full pipeline: provider, router, metrics,
// executor, scheduler, decomposer, synthesizer.
func buildOrchestrator(cfg *config.Config, registry *prometheus.Registry, log *slog.Logger) (*orchestrator.Orchestrator, *metrics.Collector) {
	var prom *metrics.PromMetrics
	if registry != nil {
		prom = metrics.NewPromMetrics(registry)
	}
	collector := metrics.NewCollector(prom)

	provider := llms.NewVLLMProvider(cfg.Endpoints, log)
	probeEndpoints(provider, log)
	routerClient := router.NewClient(cfg.Router, log)

	executor := agent.NewExecutor(cfg, provider, routerClient, collector, log)
	scheduler := workflow.NewScheduler(executor, cfg.Scheduler, log)

	decomposer := orchestrator.NewDecomposer(provider, cfg.Planner, cfg.Orchestrator.MaxRetry, collector, log)
	synthesizer := orchestrator.NewSynthesizer(provider, cfg.Planner, cfg.Orchestrator.MaxRetry, collector, log)

	return orchestrator.New(cfg, decomposer, scheduler, synthesizer, collector, log), collector
}

// probeEndpoints checks both completion endpoints at startup. An unreachable
// endpoint is not fatal: its calls degrade to mock results at run time.
func probeEndpoints(provider llms.Provider, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, size := range []config.ModelSize{config.ModelSizeSmall, config.ModelSizeLarge} {
		if !provider.Healthy(ctx, size) {
			log.Warn("llm endpoint not responding, its calls will degrade to mock results", "size", size)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("maestro"),
		kong.Description("Multi-agent task orchestrator with DAG scheduling and model routing."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
