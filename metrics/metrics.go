// Package metrics accumulates per-run token and compute accounting for
// orchestrator LLM calls.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/llms"
)

// ============================================================================
// CALL CLASSES AND PARAMETER TABLE
// ============================================================================

// CallClass tags which orchestrator stage issued an LLM call.
type CallClass string

const (
	ClassDecomposer  CallClass = "decomposer"
	ClassRouting     CallClass = "routing"
	ClassWorker      CallClass = "worker"
	ClassSynthesizer CallClass = "synthesizer"
)

// Model parameter counts in billions, used for the compute estimate.
const (
	paramsSmall       = 1.0
	paramsLarge       = 8.0
	paramsDecomposer  = 8.0
	paramsSynthesizer = 8.0
	paramsRouter      = 1.0
)

// ParamsForSize maps a worker model size to its parameter count in billions.
func ParamsForSize(size config.ModelSize) float64 {
	if size == config.ModelSizeLarge {
		return paramsLarge
	}
	return paramsSmall
}

// ParamsForClass returns the fixed parameter count for the non-worker stages.
func ParamsForClass(class CallClass) float64 {
	switch class {
	case ClassDecomposer:
		return paramsDecomposer
	case ClassSynthesizer:
		return paramsSynthesizer
	case ClassRouting:
		return paramsRouter
	default:
		return paramsSmall
	}
}

// TFLOPs estimates inference compute as 2 * params * tokens, reported in
// teraFLOPs. The 2x factor covers the multiply-accumulate per parameter per
// token.
func TFLOPs(paramsBillion float64, totalTokens int) float64 {
	return 2 * paramsBillion * 1e9 * float64(totalTokens) / 1e12
}

// ============================================================================
// COLLECTOR
// ============================================================================

// ClassStats aggregates one call class within a run.
type ClassStats struct {
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TFLOPs           float64 `json:"tflops"`
}

// Summary is the per-run accounting snapshot.
type Summary struct {
	Classes     map[CallClass]ClassStats `json:"classes"`
	TotalCalls  int                      `json:"total_calls"`
	TotalTokens int                      `json:"total_tokens"`
	TotalTFLOPs float64                  `json:"total_tflops"`
}

// Collector accumulates call records for one orchestrator run. It is safe for
// concurrent use; the scheduler records worker calls from parallel goroutines.
type Collector struct {
	mu      sync.Mutex
	classes map[CallClass]ClassStats

	prom *PromMetrics
}

// NewCollector creates an empty collector. prom may be nil when Prometheus
// export is not wired.
func NewCollector(prom *PromMetrics) *Collector {
	return &Collector{
		classes: make(map[CallClass]ClassStats),
		prom:    prom,
	}
}

// Record accounts one LLM call under the given class with the given parameter
// count in billions.
func (c *Collector) Record(class CallClass, paramsBillion float64, usage llms.Usage) {
	tflops := TFLOPs(paramsBillion, usage.TotalTokens)

	c.mu.Lock()
	stats := c.classes[class]
	stats.Calls++
	stats.PromptTokens += usage.PromptTokens
	stats.CompletionTokens += usage.CompletionTokens
	stats.TotalTokens += usage.TotalTokens
	stats.TFLOPs += tflops
	c.classes[class] = stats
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.observe(class, usage, tflops)
	}
}

// RecordWorker accounts a worker call, resolving parameters from the routed
// model size.
func (c *Collector) RecordWorker(size config.ModelSize, usage llms.Usage) {
	c.Record(ClassWorker, ParamsForSize(size), usage)
}

// Summary snapshots the accumulated accounting.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Summary{Classes: make(map[CallClass]ClassStats, len(c.classes))}
	for class, stats := range c.classes {
		out.Classes[class] = stats
		out.TotalCalls += stats.Calls
		out.TotalTokens += stats.TotalTokens
		out.TotalTFLOPs += stats.TFLOPs
	}
	return out
}

// Reset clears the per-run accounting. Prometheus counters are cumulative and
// are not reset.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes = make(map[CallClass]ClassStats)
}

// SortedClasses returns the recorded classes in stable order, for summaries.
func (s Summary) SortedClasses() []CallClass {
	out := make([]CallClass, 0, len(s.Classes))
	for class := range s.Classes {
		out = append(out, class)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ============================================================================
// PROMETHEUS EXPORT
// ============================================================================

// PromMetrics exports cumulative call accounting to a Prometheus registry.
type PromMetrics struct {
	calls  *prometheus.CounterVec
	tokens *prometheus.CounterVec
	tflops *prometheus.CounterVec
}

// NewPromMetrics registers the orchestrator counters on the given registerer.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_llm_calls_total",
			Help: "LLM calls issued, by orchestrator stage.",
		}, []string{"class"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_llm_tokens_total",
			Help: "Tokens consumed, by orchestrator stage and kind.",
		}, []string{"class", "kind"}),
		tflops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_llm_tflops_total",
			Help: "Estimated inference compute in teraFLOPs, by orchestrator stage.",
		}, []string{"class"}),
	}
	reg.MustRegister(m.calls, m.tokens, m.tflops)
	return m
}

func (m *PromMetrics) observe(class CallClass, usage llms.Usage, tflops float64) {
	label := string(class)
	m.calls.WithLabelValues(label).Inc()
	m.tokens.WithLabelValues(label, "prompt").Add(float64(usage.PromptTokens))
	m.tokens.WithLabelValues(label, "completion").Add(float64(usage.CompletionTokens))
	m.tflops.WithLabelValues(label).Add(tflops)
}
