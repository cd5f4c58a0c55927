package analysis

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spyglass/internal/catalog"
	"spyglass/internal/content"
)

// BucketState is the lifecycle state of one (source, day) analysis bucket.
type BucketState string

const (
	StatePending    BucketState = "PENDING"
	StateInProgress BucketState = "IN_PROGRESS"
	StateComplete   BucketState = "COMPLETE"
	StatePartial    BucketState = "PARTIAL"
	StateFailed     BucketState = "FAILED"
)

// PeriodDaily is the only period type produced today. The record key carries
// it so weekly or monthly rollups can share the table later.
const PeriodDaily = "daily"

// ModalityOutput is the result of one modality's LLM call, success or
// failure. Failed calls keep their error message for auditability.
type ModalityOutput struct {
	Modality         catalog.Modality `json:"modality"`
	ProviderID       string           `json:"provider_id"`
	ModelID          string           `json:"model_id"`
	RawOutput        string           `json:"raw_output,omitempty"`
	Title            string           `json:"title,omitempty"`
	Narrative        string           `json:"narrative,omitempty"`
	Topics           []string         `json:"topics,omitempty"`
	Keywords         []string         `json:"keywords,omitempty"`
	SentimentScore   *float64         `json:"sentiment_score,omitempty"`
	ItemCount        int              `json:"item_count"`
	PromptTokens     int              `json:"prompt_tokens"`
	CompletionTokens int              `json:"completion_tokens"`
	EstimatedCost    decimal.Decimal  `json:"estimated_cost"`
	Failed           bool             `json:"failed,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Summary is the unified cross-modality analysis for one bucket.
type Summary struct {
	Title          string   `json:"title,omitempty"`
	Narrative      string   `json:"narrative"`
	Topics         []string `json:"topics,omitempty"`
	SentimentScore float64  `json:"sentiment_score"`
	SentimentLabel string   `json:"sentiment_label"`
	Keywords       []string `json:"keywords,omitempty"`
}

// Statistics describes the content the bucket analyzed.
type Statistics struct {
	ItemCount     int                `json:"item_count"`
	TypeCounts    map[string]int     `json:"type_counts"`
	Engagement    content.Engagement `json:"engagement"`
	InferredCount int                `json:"inferred_count"`
}

// Usage sums token and cost counters across the bucket's modality calls.
// Cost is priced at the catalog rate in force at call time and never
// rederived, so records stay valid after rate changes.
type Usage struct {
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	EstimatedCost    decimal.Decimal `json:"estimated_cost"`
}

// AnalysisRecord is the persisted result for one (source, day, period type)
// key. At most one record exists per key; later runs overwrite it.
type AnalysisRecord struct {
	SourceID   string      `json:"source_id"`
	Day        time.Time   `json:"day"`
	PeriodType string      `json:"period_type"`
	ScenarioID string      `json:"scenario_id"`
	State      BucketState `json:"state"`

	Outputs        []ModalityOutput `json:"outputs"`
	Summary        Summary          `json:"summary"`
	Stats          Statistics       `json:"statistics"`
	Usage          Usage            `json:"usage"`
	CatalogVersion int64            `json:"catalog_version"`
	Warnings       []string         `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Sentiment label thresholds. Scores within (-0.15, 0.15) read as neutral.
const sentimentThreshold = 0.15

func SentimentLabel(score float64) string {
	switch {
	case score >= sentimentThreshold:
		return "positive"
	case score <= -sentimentThreshold:
		return "negative"
	default:
		return "neutral"
	}
}

// modelEnvelope is the JSON shape prompts ask the model to answer in.
type modelEnvelope struct {
	Title          string   `json:"title"`
	Narrative      string   `json:"narrative"`
	Summary        string   `json:"summary"`
	Topics         []string `json:"topics"`
	Keywords       []string `json:"keywords"`
	SentimentScore *float64 `json:"sentiment_score"`
	Sentiment      *float64 `json:"sentiment"`
}

// parseModelOutput extracts structure from a model completion. Models wrap
// JSON in markdown fences or chatter around it often enough that parsing is
// lenient: we look for the outermost JSON object and, failing that, treat
// the whole completion as a plain narrative rather than failing the call.
func parseModelOutput(raw string) (narrative string, topics, keywords []string, sentiment *float64, title string) {
	candidate := extractJSONObject(raw)
	if candidate != "" {
		var envelope modelEnvelope
		if err := json.Unmarshal([]byte(candidate), &envelope); err == nil {
			narrative = envelope.Narrative
			if narrative == "" {
				narrative = envelope.Summary
			}
			sentiment = envelope.SentimentScore
			if sentiment == nil {
				sentiment = envelope.Sentiment
			}
			return narrative, cleanList(envelope.Topics), cleanList(envelope.Keywords), sentiment, envelope.Title
		}
	}
	return strings.TrimSpace(raw), nil, nil, nil, ""
}

// extractJSONObject returns the first balanced {...} span in s, skipping
// markdown code fences. Empty string when none exists.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func cleanList(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
