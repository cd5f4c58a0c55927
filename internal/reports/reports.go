// Package reports aggregates persisted analysis records into dashboard
// shapes. Every aggregation is a pure function of the records in the
// requested window; nothing here mutates stored data.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spyglass/internal/analysis"
	"spyglass/internal/content"
)

// Kind names one of the aggregate report shapes.
type Kind string

const (
	KindSentimentTrend Kind = "sentiment_trend"
	KindTopTopics      Kind = "top_topics"
	KindContentMix     Kind = "content_mix"
	KindEngagement     Kind = "engagement"
	KindProviderStats  Kind = "provider_stats"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindSentimentTrend:
		return KindSentimentTrend, nil
	case KindTopTopics:
		return KindTopTopics, nil
	case KindContentMix:
		return KindContentMix, nil
	case KindEngagement:
		return KindEngagement, nil
	case KindProviderStats:
		return KindProviderStats, nil
	}
	return "", fmt.Errorf("unknown report kind %q", raw)
}

// Filters narrows a report to a source, a scenario, and a day window.
type Filters struct {
	SourceID   string
	ScenarioID string
	Days       int // window length ending today, default 30
	Limit      int // top_topics only
}

const (
	defaultWindowDays = 30
	defaultTopicLimit = 10
	excerptLength     = 160
)

// RecordReader is the read side of the analysis store.
type RecordReader interface {
	List(ctx context.Context, filter analysis.ListFilter) ([]analysis.AnalysisRecord, error)
}

// Service loads the record window and delegates to the pure aggregators.
type Service struct {
	store RecordReader
	now   func() time.Time
}

func NewService(store RecordReader) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) records(ctx context.Context, f Filters) ([]analysis.AnalysisRecord, error) {
	days := f.Days
	if days <= 0 {
		days = defaultWindowDays
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	return s.store.List(ctx, analysis.ListFilter{
		SourceID:   f.SourceID,
		ScenarioID: f.ScenarioID,
		From:       today.AddDate(0, 0, -(days - 1)),
		To:         today,
	})
}

// Get dispatches one report kind. The api layer serializes whatever shape
// comes back.
func (s *Service) Get(ctx context.Context, kind Kind, f Filters) (interface{}, error) {
	records, err := s.records(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for report: %w", err)
	}
	switch kind {
	case KindSentimentTrend:
		return SentimentTrend(records), nil
	case KindTopTopics:
		limit := f.Limit
		if limit <= 0 {
			limit = defaultTopicLimit
		}
		return TopTopics(records, limit), nil
	case KindContentMix:
		return ContentMix(records), nil
	case KindEngagement:
		return EngagementMetrics(records), nil
	case KindProviderStats:
		return ProviderStats(records), nil
	}
	return nil, fmt.Errorf("unknown report kind %q", kind)
}

// TrendPoint is one day's sentiment summary.
type TrendPoint struct {
	Day      string  `json:"day"`
	Score    float64 `json:"score"`
	Positive int     `json:"positive"`
	Neutral  int     `json:"neutral"`
	Negative int     `json:"negative"`
}

// SentimentTrend produces one point per day carrying the item-count
// weighted sentiment and a label distribution, days ascending.
func SentimentTrend(records []analysis.AnalysisRecord) []TrendPoint {
	type accum struct {
		weighted float64
		weight   int
		pos      int
		neu      int
		neg      int
	}
	byDay := make(map[string]*accum)
	for _, record := range records {
		if record.State == analysis.StateFailed {
			continue
		}
		day := record.Day.Format("2006-01-02")
		a := byDay[day]
		if a == nil {
			a = &accum{}
			byDay[day] = a
		}
		items := record.Stats.ItemCount
		if items <= 0 {
			items = 1
		}
		a.weighted += record.Summary.SentimentScore * float64(items)
		a.weight += items
		switch record.Summary.SentimentLabel {
		case "positive":
			a.pos++
		case "negative":
			a.neg++
		default:
			a.neu++
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]TrendPoint, 0, len(days))
	for _, day := range days {
		a := byDay[day]
		point := TrendPoint{Day: day, Positive: a.pos, Neutral: a.neu, Negative: a.neg}
		if a.weight > 0 {
			point.Score = a.weighted / float64(a.weight)
		}
		points = append(points, point)
	}
	return points
}

// TopicEntry is one ranked topic with supporting context.
type TopicEntry struct {
	Topic        string  `json:"topic"`
	Count        int     `json:"count"`
	Excerpt      string  `json:"excerpt,omitempty"`
	AvgSentiment float64 `json:"avg_sentiment"`
}

// TopTopics ranks topics by occurrence across the window, deduplicated
// case-insensitively, each carrying an example narrative excerpt and the
// average sentiment of the records that mention it.
func TopTopics(records []analysis.AnalysisRecord, limit int) []TopicEntry {
	type accum struct {
		display   string
		count     int
		sentiment float64
		excerpt   string
	}
	byTopic := make(map[string]*accum)
	for _, record := range records {
		if record.State == analysis.StateFailed {
			continue
		}
		for _, topic := range record.Summary.Topics {
			key := strings.ToLower(strings.TrimSpace(topic))
			if key == "" {
				continue
			}
			a := byTopic[key]
			if a == nil {
				a = &accum{display: strings.TrimSpace(topic)}
				byTopic[key] = a
			}
			a.count++
			a.sentiment += record.Summary.SentimentScore
			if a.excerpt == "" && record.Summary.Narrative != "" {
				a.excerpt = excerpt(record.Summary.Narrative)
			}
		}
	}

	entries := make([]TopicEntry, 0, len(byTopic))
	for _, a := range byTopic {
		entries = append(entries, TopicEntry{
			Topic:        a.display,
			Count:        a.count,
			Excerpt:      a.excerpt,
			AvgSentiment: a.sentiment / float64(a.count),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return strings.ToLower(entries[i].Topic) < strings.ToLower(entries[j].Topic)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func excerpt(narrative string) string {
	if len(narrative) <= excerptLength {
		return narrative
	}
	cut := narrative[:excerptLength]
	if idx := strings.LastIndexByte(cut, ' '); idx > excerptLength/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// MixReport is the per-modality share of analyzed items. Ratios sum to 1.0
// when HasData is true; a zero-item window reports HasData false instead of
// dividing by zero.
type MixReport struct {
	Ratios     map[string]float64 `json:"ratios"`
	TotalItems int                `json:"total_items"`
	HasData    bool               `json:"has_data"`
}

func ContentMix(records []analysis.AnalysisRecord) MixReport {
	counts := make(map[string]int)
	total := 0
	for _, record := range records {
		for kind, count := range record.Stats.TypeCounts {
			counts[kind] += count
			total += count
		}
	}
	report := MixReport{Ratios: make(map[string]float64, len(counts)), TotalItems: total}
	if total == 0 {
		return report
	}
	report.HasData = true
	for kind, count := range counts {
		report.Ratios[kind] = float64(count) / float64(total)
	}
	return report
}

// EngagementReport carries window averages per item plus the raw totals.
type EngagementReport struct {
	AvgReactionsPerItem float64            `json:"avg_reactions_per_item"`
	AvgCommentsPerItem  float64            `json:"avg_comments_per_item"`
	Totals              content.Engagement `json:"totals"`
	ItemCount           int                `json:"item_count"`
}

func EngagementMetrics(records []analysis.AnalysisRecord) EngagementReport {
	var report EngagementReport
	for _, record := range records {
		report.Totals.Reactions += record.Stats.Engagement.Reactions
		report.Totals.Comments += record.Stats.Engagement.Comments
		report.Totals.Views += record.Stats.Engagement.Views
		report.ItemCount += record.Stats.ItemCount
	}
	if report.ItemCount > 0 {
		report.AvgReactionsPerItem = float64(report.Totals.Reactions) / float64(report.ItemCount)
		report.AvgCommentsPerItem = float64(report.Totals.Comments) / float64(report.ItemCount)
	}
	return report
}

// ModelUsage is usage and cost for one (provider, model) pair, derived
// purely from the counters frozen on each record at call time.
type ModelUsage struct {
	ProviderID          string          `json:"provider_id"`
	ModelID             string          `json:"model_id"`
	Requests            int             `json:"requests"`
	PromptTokens        int             `json:"prompt_tokens"`
	CompletionTokens    int             `json:"completion_tokens"`
	EstimatedCost       decimal.Decimal `json:"estimated_cost"`
	AvgTokensPerRequest float64         `json:"avg_tokens_per_request"`
}

func ProviderStats(records []analysis.AnalysisRecord) []ModelUsage {
	byModel := make(map[string]*ModelUsage)
	for _, record := range records {
		for _, output := range record.Outputs {
			key := output.ProviderID + "|" + output.ModelID
			usage := byModel[key]
			if usage == nil {
				usage = &ModelUsage{
					ProviderID:    output.ProviderID,
					ModelID:       output.ModelID,
					EstimatedCost: decimal.Zero,
				}
				byModel[key] = usage
			}
			usage.Requests++
			usage.PromptTokens += output.PromptTokens
			usage.CompletionTokens += output.CompletionTokens
			usage.EstimatedCost = usage.EstimatedCost.Add(output.EstimatedCost)
		}
	}

	stats := make([]ModelUsage, 0, len(byModel))
	for _, usage := range byModel {
		if usage.Requests > 0 {
			usage.AvgTokensPerRequest = float64(usage.PromptTokens+usage.CompletionTokens) / float64(usage.Requests)
		}
		stats = append(stats, *usage)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ProviderID != stats[j].ProviderID {
			return stats[i].ProviderID < stats[j].ProviderID
		}
		return stats[i].ModelID < stats[j].ModelID
	})
	return stats
}
