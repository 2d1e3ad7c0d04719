package router

import (
	"strings"

	"github.com/kadirpekel/maestro/config"
)

// DetectDomain classifies a task by keyword match against the configured
// domain vocabularies. The first domain with a hit wins in the fixed
// medical, law, math, commonsense order; no hit falls back to commonsense.
func DetectDomain(task string, domains map[config.Domain]config.DomainConfig) config.Domain {
	lower := strings.ToLower(task)

	order := []config.Domain{
		config.DomainMedical,
		config.DomainLaw,
		config.DomainMath,
		config.DomainCommonsense,
	}

	for _, d := range order {
		cfg, ok := domains[d]
		if !ok {
			continue
		}
		for _, kw := range cfg.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return d
			}
		}
	}

	return config.DomainCommonsense
}
