// Package workflow defines the task DAG model and the scheduler that runs it.
package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kadirpekel/maestro/config"
	"github.com/kadirpekel/maestro/llms"
)

// ============================================================================
// DAG TYPES
// ============================================================================

// minContentWords is the minimum subtask length the decomposer schema
// enforces; the validator rejects shorter content with a readable error that
// feeds the retry prompt.
const minContentWords = 10

// SubTask is one node of a decomposition DAG.
type SubTask struct {
	ID           string        `json:"id" jsonschema:"required,description=Unique identifier for this subtask"`
	Domain       config.Domain `json:"domain" jsonschema:"required,enum=commonsense,enum=medical,enum=law,enum=math"`
	Content      string        `json:"content" jsonschema:"required,description=Imperative description of the subtask in at least ten words"`
	Dependencies []string      `json:"dependencies" jsonschema:"description=IDs of subtasks whose results this subtask needs"`
}

// TaskDAG is a decomposition: a set of subtasks whose dependency edges form
// a directed acyclic graph. Disconnected independent subtasks are legal.
type TaskDAG struct {
	Tasks []SubTask `json:"tasks" jsonschema:"required,description=The list of subtasks"`
}

// Validate checks the DAG invariants and returns every violation in one
// readable error, suitable for feeding back into a retry prompt.
func (d *TaskDAG) Validate() error {
	var problems []string

	if len(d.Tasks) == 0 {
		return fmt.Errorf("dag must contain at least one task")
	}

	ids := make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.ID == "" {
			problems = append(problems, "a task has an empty id")
			continue
		}
		if ids[t.ID] {
			problems = append(problems, fmt.Sprintf("duplicate task id %q", t.ID))
		}
		ids[t.ID] = true
	}

	for _, t := range d.Tasks {
		if !t.Domain.Valid() {
			problems = append(problems, fmt.Sprintf("task %q has unknown domain %q (must be one of %s)",
				t.ID, t.Domain, strings.Join(domainNames(), ", ")))
		}
		if words := len(strings.Fields(t.Content)); words < minContentWords {
			problems = append(problems, fmt.Sprintf("task %q content has %d words, need at least %d",
				t.ID, words, minContentWords))
		}
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				problems = append(problems, fmt.Sprintf("task %q depends on itself", t.ID))
			} else if !ids[dep] {
				problems = append(problems, fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep))
			}
		}
	}

	if cyclic := d.cycleMembers(); len(cyclic) > 0 {
		problems = append(problems, fmt.Sprintf("dependency cycle involving tasks: %s",
			strings.Join(cyclic, ", ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid dag: %s", strings.Join(problems, "; "))
	}
	return nil
}

// cycleMembers runs Kahn's algorithm and returns the ids of nodes that never
// reach in-degree zero, sorted for stable error text. Unknown and self
// dependencies are skipped here; they are reported separately.
func (d *TaskDAG) cycleMembers() []string {
	ids := make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		ids[t.ID] = true
	}

	indeg := make(map[string]int, len(d.Tasks))
	adj := make(map[string][]string, len(d.Tasks))
	for _, t := range d.Tasks {
		indeg[t.ID] += 0
		for _, dep := range t.Dependencies {
			if dep == t.ID || !ids[dep] {
				continue
			}
			indeg[t.ID]++
			adj[dep] = append(adj[dep], t.ID)
		}
	}

	var ready []string
	for id, deg := range indeg {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	processed := 0
	for len(ready) > 0 {
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		processed++
		for _, succ := range adj[id] {
			indeg[succ]--
			if indeg[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if processed == len(indeg) {
		return nil
	}

	var cyclic []string
	for id, deg := range indeg {
		if deg > 0 {
			cyclic = append(cyclic, id)
		}
	}
	sort.Strings(cyclic)
	return cyclic
}

// Node returns the subtask with the given id.
func (d *TaskDAG) Node(id string) (SubTask, bool) {
	for _, t := range d.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return SubTask{}, false
}

func domainNames() []string {
	names := make([]string, 0, len(config.AllDomains()))
	for _, d := range config.AllDomains() {
		names = append(names, string(d))
	}
	return names
}

// ============================================================================
// RESULT TYPES
// ============================================================================

// ResultStatus classifies a subtask outcome.
type ResultStatus string

const (
	// StatusOK means the worker model produced real text.
	StatusOK ResultStatus = "ok"

	// StatusMock means the LLM call failed and the text is a sentinel
	// placeholder. Mock results keep the DAG running to completion.
	StatusMock ResultStatus = "mock"

	// StatusError is reserved for non-LLM executor failures.
	StatusError ResultStatus = "error"
)

// SubTaskResult is the immutable outcome of one executed node.
type SubTaskResult struct {
	NodeID         string           `json:"node_id"`
	Domain         config.Domain    `json:"domain"`
	SubtaskContent string           `json:"subtask_content"`
	Text           string           `json:"text"`
	Usage          llms.Usage       `json:"usage"`
	ModelSize      config.ModelSize `json:"model_size"`
	Status         ResultStatus     `json:"status"`
}

// IsMock reports whether the result text is a sentinel placeholder.
func (r SubTaskResult) IsMock() bool {
	return r.Status == StatusMock
}

// MockText builds the sentinel placeholder for a failed call, keyed by the
// caller label with a prompt excerpt for debugging. The excerpt is truncated
// on rune boundaries so the sentinel stays valid UTF-8.
func MockText(label, prompt string) string {
	excerpt := prompt
	if runes := []rune(excerpt); len(runes) > 50 {
		excerpt = string(runes[:50])
	}
	return fmt.Sprintf("[MOCK RESPONSE for %s] %s...", label, excerpt)
}

// NewMockResult produces a mock result for a node the executor could not run.
func NewMockResult(node SubTask, size config.ModelSize) SubTaskResult {
	return SubTaskResult{
		NodeID:         node.ID,
		Domain:         node.Domain,
		SubtaskContent: node.Content,
		Text:           MockText(node.ID, node.Content),
		ModelSize:      size,
		Status:         StatusMock,
	}
}
