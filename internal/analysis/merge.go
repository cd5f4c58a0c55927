package analysis

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"spyglass/internal/catalog"
)

// DefaultMaxTopics caps the merged topic list.
const DefaultMaxTopics = 10

// mergeOutputs combines the successful modality outputs of one bucket into
// a unified summary. Sentiment is the item-count-weighted average of the
// per-modality scores that report one; topics and keywords are deduplicated
// case-insensitively preserving first-seen casing; the title and narrative
// prefer the text modality's, otherwise the first (or joined) others.
func mergeOutputs(outputs []ModalityOutput, maxTopics int) Summary {
	if maxTopics <= 0 {
		maxTopics = DefaultMaxTopics
	}

	var summary Summary
	var weighted float64
	var weight int
	var narratives []string

	for _, out := range outputs {
		if out.Failed {
			continue
		}
		if out.SentimentScore != nil {
			items := out.ItemCount
			if items <= 0 {
				items = 1
			}
			weighted += *out.SentimentScore * float64(items)
			weight += items
		}
		summary.Topics = dedupeAppend(summary.Topics, out.Topics)
		summary.Keywords = dedupeAppend(summary.Keywords, out.Keywords)

		if out.Title != "" {
			if out.Modality == catalog.ModalityText {
				summary.Title = out.Title
			} else if summary.Title == "" {
				summary.Title = out.Title
			}
		}

		if out.Narrative == "" {
			continue
		}
		if out.Modality == catalog.ModalityText && summary.Narrative == "" {
			summary.Narrative = out.Narrative
		} else {
			narratives = append(narratives, fmt.Sprintf("%s: %s", out.Modality, out.Narrative))
		}
	}

	if summary.Narrative == "" {
		summary.Narrative = strings.Join(narratives, "\n\n")
	}
	if len(summary.Topics) > maxTopics {
		summary.Topics = summary.Topics[:maxTopics]
	}
	if weight > 0 {
		summary.SentimentScore = weighted / float64(weight)
	}
	summary.SentimentLabel = SentimentLabel(summary.SentimentScore)
	return summary
}

// dedupeAppend unions extra into existing, dropping case-insensitive
// duplicates while keeping the first-seen spelling and order.
func dedupeAppend(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	for _, v := range existing {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range extra {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, strings.TrimSpace(v))
	}
	return existing
}

// sumUsage totals tokens and cost across all attempted calls, including
// failed ones (a timed-out call may still have consumed prompt tokens).
func sumUsage(outputs []ModalityOutput) Usage {
	total := Usage{EstimatedCost: decimal.Zero}
	for _, out := range outputs {
		total.PromptTokens += out.PromptTokens
		total.CompletionTokens += out.CompletionTokens
		total.EstimatedCost = total.EstimatedCost.Add(out.EstimatedCost)
	}
	return total
}

// callCost prices one call: (prompt + completion tokens) x rate per 1K.
func callCost(promptTokens, completionTokens int, costPer1K decimal.Decimal) decimal.Decimal {
	tokens := decimal.NewFromInt(int64(promptTokens + completionTokens))
	return costPer1K.Mul(tokens).Div(decimal.NewFromInt(1000))
}
