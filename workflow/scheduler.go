package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/maestro/config"
)

// ============================================================================
// SCHEDULER
// ============================================================================

// Executor runs one subtask. Implementations must not return an error: a
// failed node is reported as a mock or error status result so the DAG always
// runs to completion.
type Executor interface {
	Execute(ctx context.Context, node SubTask, execCtx map[string]string) SubTaskResult
}

// Scheduler runs a validated TaskDAG with maximal concurrency across
// independent branches. Nodes dispatch as soon as every dependency has
// completed; parallelism is bounded by the configured cap.
type Scheduler struct {
	executor Executor
	cfg      config.SchedulerConfig
	log      *slog.Logger
}

// NewScheduler creates a scheduler over the given executor.
func NewScheduler(executor Executor, cfg config.SchedulerConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{executor: executor, cfg: cfg, log: log}
}

// Execute runs the DAG to completion and returns one result per node. The
// DAG must already be validated; behavior on a cyclic graph is undefined.
//
// The context passed to each node is the union of initialContext and the
// texts of nodes completed before it started. Dependencies express ordering,
// not information scoping, so by default a node sees every completed result;
// the deps scope restricts visibility to declared dependencies.
func (s *Scheduler) Execute(ctx context.Context, dag *TaskDAG, initialContext map[string]string) map[string]SubTaskResult {
	n := len(dag.Tasks)

	nodes := make(map[string]SubTask, n)
	indeg := make(map[string]int, n)
	adj := make(map[string][]string, n)
	for _, t := range dag.Tasks {
		nodes[t.ID] = t
		indeg[t.ID] = len(t.Dependencies)
		for _, dep := range t.Dependencies {
			adj[dep] = append(adj[dep], t.ID)
		}
	}

	var (
		mu      sync.Mutex
		results = make(map[string]SubTaskResult, n)
		done    = make(chan SubTaskResult, n)
		sem     = semaphore.NewWeighted(int64(s.cfg.MaxConcurrency))
	)

	start := time.Now()
	s.log.Info("dag execution started", "nodes", n, "max_concurrency", s.cfg.MaxConcurrency)

	dispatch := func(id string) {
		node := nodes[id]
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				// Run cancelled while queued; the node still reports a
				// result so the DAG completes.
				done <- NewMockResult(node, config.ModelSizeSmall)
				return
			}
			defer sem.Release(1)
			done <- s.runNode(ctx, node, initialContext, &mu, results)
		}()
	}

	for _, t := range dag.Tasks {
		if indeg[t.ID] == 0 {
			dispatch(t.ID)
		}
	}

	for completed := 0; completed < n; completed++ {
		res := <-done

		// Disjoint keys by DAG invariant; the mutex covers readers building
		// downstream context.
		mu.Lock()
		results[res.NodeID] = res
		mu.Unlock()

		for _, succ := range adj[res.NodeID] {
			indeg[succ]--
			if indeg[succ] == 0 {
				dispatch(succ)
			}
		}
	}

	s.log.Info("dag execution completed", "nodes", n, "duration", time.Since(start))
	return results
}

// runNode snapshots the visible context and executes one node, converting a
// panicking executor into a mock result.
func (s *Scheduler) runNode(ctx context.Context, node SubTask, initialContext map[string]string, mu *sync.Mutex, results map[string]SubTaskResult) (res SubTaskResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("executor panicked, recording mock result", "node", node.ID, "panic", r)
			res = NewMockResult(node, config.ModelSizeSmall)
		}
	}()

	execCtx := make(map[string]string, len(initialContext)+len(results))
	for k, v := range initialContext {
		execCtx[k] = v
	}

	mu.Lock()
	if s.cfg.ContextScope == config.ContextScopeDeps {
		for _, dep := range node.Dependencies {
			if r, ok := results[dep]; ok {
				execCtx[dep] = r.Text
			}
		}
	} else {
		for id, r := range results {
			execCtx[id] = r.Text
		}
	}
	mu.Unlock()

	return s.executor.Execute(ctx, node, execCtx)
}
