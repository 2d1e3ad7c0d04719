package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ============================================================================
// FACT EXTRACTION
// ============================================================================

// Facts are ground-truth constraints lifted from the original task text.
// They are injected into the synthesizer prompt so the final answer cannot
// contradict what the task itself states.
type Facts struct {
	OriginalTask string
	Constraints  []string
}

var (
	agePattern  = regexp.MustCompile(`(\d+)-year-old`)
	costPattern = regexp.MustCompile(`\$(\d+(?:,\d+)?)`)
	dayPattern  = regexp.MustCompile(`(\d+)\s*days?`)
)

// ExtractFacts pulls immutable constraints from the task: ages and minor
// status, consent requirements, documented stability, emergency status,
// costs, and timelines. Heuristic; an empty result is normal.
func ExtractFacts(task string) Facts {
	facts := Facts{OriginalTask: task}
	lower := strings.ToLower(task)

	if m := agePattern.FindStringSubmatch(task); m != nil {
		age, _ := strconv.Atoi(m[1])
		if age < 18 {
			facts.Constraints = append(facts.Constraints,
				fmt.Sprintf("Patient is a minor (age %d)", age))
		}
	}

	if strings.Contains(lower, "requires") && strings.Contains(lower, "consent") {
		if strings.Contains(lower, "parent") || strings.Contains(lower, "guardian") {
			facts.Constraints = append(facts.Constraints,
				"Parental/guardian consent is required by policy")
		}
	}

	if strings.Contains(lower, "stable") {
		facts.Constraints = append(facts.Constraints,
			"Medical condition is documented as stable")
	}

	if strings.Contains(lower, "non-emergency") {
		facts.Constraints = append(facts.Constraints,
			"This is a non-emergency service")
	}

	if costs := costPattern.FindAllStringSubmatch(task, -1); len(costs) >= 2 {
		values := make([]int, 0, len(costs))
		for _, m := range costs {
			v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			if err == nil {
				values = append(values, v)
			}
		}
		if len(values) >= 2 {
			minV, maxV := values[0], values[0]
			for _, v := range values[1:] {
				if v < minV {
					minV = v
				}
				if v > maxV {
					maxV = v
				}
			}
			facts.Constraints = append(facts.Constraints,
				fmt.Sprintf("Total cost: $%d, Offered: $%d", maxV, minV))
		}
	}

	if m := dayPattern.FindStringSubmatch(task); m != nil {
		facts.Constraints = append(facts.Constraints,
			fmt.Sprintf("Timeline involves %s days", m[1]))
	}

	return facts
}

// PromptSection renders the constraints as a prompt block, or "" when no
// facts were extracted.
func (f Facts) PromptSection() string {
	if len(f.Constraints) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("IMMUTABLE FACTS FROM ORIGINAL TASK:\nThese are GROUND TRUTH and CANNOT be contradicted:\n\n")
	for i, c := range f.Constraints {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("\nANY OUTPUT CONTRADICTING THESE FACTS WILL BE REJECTED.")
	return b.String()
}
