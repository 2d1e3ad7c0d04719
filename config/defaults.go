// Package config provides configuration types and utilities for the orchestrator.
// This file contains the static per-domain table shipped with the orchestrator.
package config

import "strings"

// ============================================================================
// DOMAIN DEFAULTS
// ============================================================================

// Domain prompt template prefixes. The executor appends the subtask, the
// filtered context, and the "Response:" cue.
const (
	commonsenseTemplate = "You are a commonsense reasoning specialist. " +
		"Apply general knowledge, logic, and everyday reasoning to the task. " +
		"Provide a clear, direct answer grounded in common knowledge."

	medicalTemplate = "You are a medical specialist. " +
		"Apply clinical knowledge of diagnosis, treatment, and patient care to the task. " +
		"Provide accurate, evidence-based medical reasoning."

	lawTemplate = "You are a legal specialist. " +
		"Apply knowledge of statutes, regulations, contracts, and case law to the task. " +
		"Provide precise legal analysis citing the relevant rules."

	mathTemplate = "You are a mathematics specialist. " +
		"Apply quantitative reasoning and show your work step by step. " +
		"Provide the final numeric answer clearly."
)

// defaultDomains returns the built-in domain table. Adapter names follow the
// serving stack's lora-modules registration and can be overridden per
// (domain, size) through environment variables, e.g. MEDICAL_SMALL_MODEL.
func defaultDomains() map[Domain]DomainConfig {
	return map[Domain]DomainConfig{
		DomainCommonsense: {
			Keywords:    []string{"explain", "why", "common", "everyday", "reasoning", "logic", "general"},
			SmallModel:  domainModelEnv(DomainCommonsense, ModelSizeSmall, "csqa-lora"),
			LargeModel:  domainModelEnv(DomainCommonsense, ModelSizeLarge, "csqa-lora"),
			Template:    commonsenseTemplate,
			Temperature: 0.5,
			MaxTokens:   512,
		},
		DomainMedical: {
			Keywords:    []string{"medical", "patient", "diagnosis", "treatment", "symptom", "disease", "clinical"},
			SmallModel:  domainModelEnv(DomainMedical, ModelSizeSmall, "medqa-lora"),
			LargeModel:  domainModelEnv(DomainMedical, ModelSizeLarge, "medqa-lora"),
			Template:    medicalTemplate,
			Temperature: 0.3,
			MaxTokens:   512,
		},
		DomainLaw: {
			Keywords:    []string{"legal", "law", "case", "regulation", "court", "statute", "contract", "attorney", "consent"},
			SmallModel:  domainModelEnv(DomainLaw, ModelSizeSmall, "casehold-lora"),
			LargeModel:  domainModelEnv(DomainLaw, ModelSizeLarge, "casehold-lora"),
			Template:    lawTemplate,
			Temperature: 0.3,
			MaxTokens:   512,
		},
		DomainMath: {
			Keywords:    []string{"math", "calculate", "equation", "number", "quantity", "formula", "compute", "derivative"},
			SmallModel:  domainModelEnv(DomainMath, ModelSizeSmall, "mathqa-lora"),
			LargeModel:  domainModelEnv(DomainMath, ModelSizeLarge, "mathqa-lora"),
			Template:    mathTemplate,
			Temperature: 0.3,
			MaxTokens:   512,
		},
	}
}

// domainModelEnv resolves the env override name for a (domain, size) pair,
// e.g. MEDICAL_SMALL_MODEL, falling back to the built-in adapter name.
func domainModelEnv(d Domain, s ModelSize, fallback string) string {
	name := strings.ToUpper(string(d)) + "_" + strings.ToUpper(string(s)) + "_MODEL"
	return envOr(name, fallback)
}
