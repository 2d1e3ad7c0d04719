// Package agent executes individual subtasks against domain-specialized
// models.
package agent

import (
	"sort"
	"strings"

	"github.com/kadirpekel/maestro/config"
)

// ============================================================================
// DOMAIN AGENT
// ============================================================================

// reservedContextKeys are orchestrator bookkeeping entries that must not leak
// into prompts.
var reservedContextKeys = map[string]bool{
	"user_id": true,
}

// Agent pairs a domain with its configuration. It is a plain value; one
// agent serves every subtask of its domain within a run.
type Agent struct {
	Domain config.Domain
	Config config.DomainConfig
}

// New creates an agent for the given domain.
func New(domain config.Domain, cfg config.DomainConfig) Agent {
	return Agent{Domain: domain, Config: cfg}
}

// Prompt assembles the worker prompt: template prefix, the task, the filtered
// context, and the response cue.
func (a Agent) Prompt(task string, execCtx map[string]string) string {
	var b strings.Builder
	b.WriteString(a.Config.Template)
	b.WriteString("\n\nTask: ")
	b.WriteString(task)

	if joined := joinContext(execCtx); joined != "" {
		b.WriteString("\n\nContext: ")
		b.WriteString(joined)
	}

	b.WriteString("\n\nResponse:")
	return b.String()
}

// joinContext renders the context entries as "key: value" lines in stable
// order, dropping reserved keys and empty values.
func joinContext(execCtx map[string]string) string {
	if len(execCtx) == 0 {
		return ""
	}

	keys := make([]string, 0, len(execCtx))
	for k, v := range execCtx {
		if reservedContextKeys[k] || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+execCtx[k])
	}
	return strings.Join(lines, "\n")
}
