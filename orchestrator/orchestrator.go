package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/metrics"
	"github.com/kadirpekel/maestro/workflow"
)

// ============================================================================
// ORCHESTRATOR
// ============================================================================

// Result is the structured outcome of one run. Every run terminates with a
// Result; no failure mode escapes Process.
type Result struct {
	RunID       string          `json:"run_id"`
	Success     bool            `json:"success"`
	FinalAnswer string          `json:"final_answer"`
	Iterations  int             `json:"iterations"`
	Reason      string          `json:"reason"`
	Metrics     metrics.Summary `json:"metrics"`
	Duration    time.Duration   `json:"duration"`
}

// Orchestrator runs the outer refinement loop: decompose once, execute the
// DAG, synthesize, and re-run synthesis with feedback while the budget
// allows.
type Orchestrator struct {
	cfg         *config.Config
	decomposer  *Decomposer
	scheduler   *workflow.Scheduler
	synthesizer *Synthesizer
	collector   *metrics.Collector
	log         *slog.Logger
}

// New wires an orchestrator from its parts.
func New(cfg *config.Config, decomposer *Decomposer, scheduler *workflow.Scheduler, synthesizer *Synthesizer, collector *metrics.Collector, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:         cfg,
		decomposer:  decomposer,
		scheduler:   scheduler,
		synthesizer: synthesizer,
		collector:   collector,
		log:         log,
	}
}

// Process runs one task to a structured result. The accounting collector is
// reset at the start and accumulates across every iteration of this run.
//
// By default the DAG produced on the first iteration is reused unchanged on
// later iterations; only synthesis re-runs with feedback. The
// redecompose_on_retry option instead feeds the feedback and merged results
// back into a fresh decomposition each iteration.
func (o *Orchestrator) Process(ctx context.Context, task, userID string) *Result {
	runID := uuid.NewString()
	start := time.Now()
	maxRetry := o.cfg.Orchestrator.MaxRetry

	o.collector.Reset()
	log := o.log.With("run_id", runID)
	log.Info("run started", "task_length", len(task), "max_retry", maxRetry)

	initialContext := map[string]string{}
	if userID != "" {
		initialContext["user_id"] = userID
	}

	var (
		dag      *workflow.TaskDAG
		feedback string
		merged   string
	)

	for iteration := 0; iteration < maxRetry; iteration++ {
		if dag == nil || (o.cfg.Orchestrator.RedecomposeOnRetry && iteration > 0) {
			dag = o.decomposer.Decompose(ctx, task, feedback, merged)
			log.Info("decomposition ready", "iteration", iteration, "nodes", len(dag.Tasks))
			log.Debug("dag summary", "summary", FormatDAGSummary(dag))
		}

		results := o.scheduler.Execute(ctx, dag, initialContext)
		merged = MergeForDisplay(results)

		outcome := o.synthesizer.Synthesize(ctx, task, results, dag, iteration)
		if outcome.Status == OutcomeOK {
			log.Info("run succeeded", "iterations", iteration+1, "duration", time.Since(start))
			return &Result{
				RunID:       runID,
				Success:     true,
				FinalAnswer: outcome.Answer,
				Iterations:  iteration + 1,
				Reason:      "completed",
				Metrics:     o.collector.Summary(),
				Duration:    time.Since(start),
			}
		}

		feedback = outcome.Feedback
		log.Info("iteration insufficient, refining", "iteration", iteration, "feedback", feedback)
	}

	log.Warn("retry budget exhausted", "iterations", maxRetry, "duration", time.Since(start))
	return &Result{
		RunID:       runID,
		Success:     false,
		FinalAnswer: merged,
		Iterations:  maxRetry,
		Reason:      "max_retry_reached",
		Metrics:     o.collector.Summary(),
		Duration:    time.Since(start),
	}
}
