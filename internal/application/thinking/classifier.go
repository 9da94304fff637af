package thinking

import (
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/notegen/internal/domain"
)

// StepRule maps keywords to a step type. Keywords are matched as lower-case
// substrings.
type StepRule struct {
	Type     domain.StepType
	Keywords []string
}

// StepRules is evaluated in order; the first rule with a matching keyword wins.
var StepRules = []StepRule{
	{
		Type: domain.StepAnalysis,
		Keywords: []string{
			"analy", "examin", "consider", "look at", "observe", "evaluate",
			"分析", "观察", "考虑", "检查", "评估", "审视",
		},
	},
	{
		Type: domain.StepReasoning,
		Keywords: []string{
			"therefore", "because", "thus", "hence", "since", "reason", "infer", "implies",
			"因此", "所以", "因为", "由于", "推理", "推断", "意味着",
		},
	},
	{
		Type: domain.StepConclusion,
		Keywords: []string{
			"conclusion", "in summary", "finally", "overall", "to sum up",
			"结论", "总结", "综上", "最终", "总之",
		},
	},
}

// ClassifyStep returns the type of the first matching rule, or StepThinking.
func ClassifyStep(content string) domain.StepType {
	lower := strings.ToLower(content)
	for _, rule := range StepRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Type
			}
		}
	}
	return domain.StepThinking
}

var summaryOrder = []domain.StepType{
	domain.StepAnalysis,
	domain.StepReasoning,
	domain.StepConclusion,
	domain.StepThinking,
}

// Summarize renders a collapsed-state label such as
// "Thinking chain: 3 steps (analysis 1, reasoning 2)".
func Summarize(steps []domain.ThinkingChainStep) string {
	counts := make(map[domain.StepType]int, len(summaryOrder))
	for _, step := range steps {
		counts[step.Type]++
	}

	noun := "steps"
	if len(steps) == 1 {
		noun = "step"
	}
	label := fmt.Sprintf("Thinking chain: %d %s", len(steps), noun)

	var parts []string
	for _, t := range summaryOrder {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", t, n))
		}
	}
	if len(parts) == 0 {
		return label
	}
	return label + " (" + strings.Join(parts, ", ") + ")"
}

// BuildChain segments raw thinking text into a complete chain. It returns nil
// when raw contains nothing to segment.
func BuildChain(raw string, format domain.DetectedFormat, base time.Time) *domain.ThinkingChainContent {
	steps := ParseSteps(raw, base)
	if len(steps) == 0 {
		return nil
	}
	return &domain.ThinkingChainContent{
		Steps:          steps,
		Summary:        Summarize(steps),
		TotalSteps:     len(steps),
		RawContent:     raw,
		DetectedFormat: format,
	}
}
