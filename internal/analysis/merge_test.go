package analysis

import (
	"testing"

	"github.com/shopspring/decimal"

	"spyglass/internal/catalog"
)

func floatPtr(f float64) *float64 { return &f }

func TestMergeWeightedSentiment(t *testing.T) {
	outputs := []ModalityOutput{
		{Modality: catalog.ModalityText, ItemCount: 5, SentimentScore: floatPtr(0.2), Narrative: "Mixed day."},
		{Modality: catalog.ModalityImage, ItemCount: 5, SentimentScore: floatPtr(0.8), Narrative: "Upbeat visuals."},
	}
	summary := mergeOutputs(outputs, 0)
	if summary.SentimentScore != 0.5 {
		t.Fatalf("expected weighted average 0.5, got %v", summary.SentimentScore)
	}
	if summary.SentimentLabel != "positive" {
		t.Fatalf("expected positive label, got %s", summary.SentimentLabel)
	}
}

func TestMergeSkipsFailedAndMissingSentiment(t *testing.T) {
	outputs := []ModalityOutput{
		{Modality: catalog.ModalityText, ItemCount: 10, SentimentScore: floatPtr(-0.6), Narrative: "Rough day."},
		{Modality: catalog.ModalityImage, ItemCount: 100, SentimentScore: floatPtr(1.0), Failed: true},
		{Modality: catalog.ModalityVideo, ItemCount: 3, Narrative: "No sentiment reported."},
	}
	summary := mergeOutputs(outputs, 0)
	if summary.SentimentScore != -0.6 {
		t.Fatalf("failed output must not contribute, got %v", summary.SentimentScore)
	}
	if summary.SentimentLabel != "negative" {
		t.Fatalf("expected negative label, got %s", summary.SentimentLabel)
	}
}

func TestMergeTopicsDedupeCaseInsensitive(t *testing.T) {
	outputs := []ModalityOutput{
		{Modality: catalog.ModalityText, Topics: []string{"Launch", "Pricing", "launch"}},
		{Modality: catalog.ModalityImage, Topics: []string{"PRICING", "Roadmap"}},
	}
	summary := mergeOutputs(outputs, 2)
	if len(summary.Topics) != 2 {
		t.Fatalf("expected cap at 2 topics, got %v", summary.Topics)
	}
	if summary.Topics[0] != "Launch" || summary.Topics[1] != "Pricing" {
		t.Fatalf("expected first-seen casing and order, got %v", summary.Topics)
	}
}

func TestMergeNarrativePrefersText(t *testing.T) {
	outputs := []ModalityOutput{
		{Modality: catalog.ModalityImage, Narrative: "Bright product shots."},
		{Modality: catalog.ModalityText, Narrative: "Customers love the update."},
	}
	summary := mergeOutputs(outputs, 0)
	if summary.Narrative != "Customers love the update." {
		t.Fatalf("expected the text narrative, got %q", summary.Narrative)
	}

	noText := []ModalityOutput{
		{Modality: catalog.ModalityImage, Narrative: "Bright product shots."},
		{Modality: catalog.ModalityVideo, Narrative: "Short clips trending."},
	}
	summary = mergeOutputs(noText, 0)
	if summary.Narrative == "" {
		t.Fatalf("expected a synthesized narrative")
	}
}

func TestMergeTitlePrefersText(t *testing.T) {
	outputs := []ModalityOutput{
		{Modality: catalog.ModalityImage, Title: "Visual highlights", Narrative: "Bright product shots."},
		{Modality: catalog.ModalityText, Title: "Launch week buzz", Narrative: "Customers love the update."},
	}
	summary := mergeOutputs(outputs, 0)
	if summary.Title != "Launch week buzz" {
		t.Fatalf("expected the text title, got %q", summary.Title)
	}

	noText := []ModalityOutput{
		{Modality: catalog.ModalityImage, Title: "Visual highlights"},
		{Modality: catalog.ModalityVideo, Title: "Clips trending"},
	}
	summary = mergeOutputs(noText, 0)
	if summary.Title != "Visual highlights" {
		t.Fatalf("expected the first non-text title, got %q", summary.Title)
	}

	failedText := []ModalityOutput{
		{Modality: catalog.ModalityText, Title: "Should not surface", Failed: true},
		{Modality: catalog.ModalityImage, Title: "Visual highlights"},
	}
	summary = mergeOutputs(failedText, 0)
	if summary.Title != "Visual highlights" {
		t.Fatalf("failed output must not contribute a title, got %q", summary.Title)
	}
}

func TestSumUsageIncludesFailedCalls(t *testing.T) {
	outputs := []ModalityOutput{
		{PromptTokens: 100, CompletionTokens: 50, EstimatedCost: decimal.RequireFromString("0.01")},
		{PromptTokens: 40, CompletionTokens: 0, EstimatedCost: decimal.RequireFromString("0.02"), Failed: true},
	}
	usage := sumUsage(outputs)
	if usage.PromptTokens != 140 || usage.CompletionTokens != 50 {
		t.Fatalf("token totals wrong: %+v", usage)
	}
	if !usage.EstimatedCost.Equal(decimal.RequireFromString("0.03")) {
		t.Fatalf("expected 0.03, got %s", usage.EstimatedCost)
	}
}

func TestSentimentLabelThresholds(t *testing.T) {
	cases := map[float64]string{
		0.5:   "positive",
		0.15:  "positive",
		0.14:  "neutral",
		0.0:   "neutral",
		-0.14: "neutral",
		-0.15: "negative",
		-0.9:  "negative",
	}
	for score, want := range cases {
		if got := SentimentLabel(score); got != want {
			t.Fatalf("label(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestParseModelOutputLenient(t *testing.T) {
	fenced := "Here you go:\n```json\n{\"narrative\":\"Good day.\",\"topics\":[\"launch\"],\"sentiment\":0.3}\n```"
	narrative, topics, _, sentiment, _ := parseModelOutput(fenced)
	if narrative != "Good day." {
		t.Fatalf("narrative: %q", narrative)
	}
	if len(topics) != 1 || topics[0] != "launch" {
		t.Fatalf("topics: %v", topics)
	}
	if sentiment == nil || *sentiment != 0.3 {
		t.Fatalf("sentiment: %v", sentiment)
	}

	plain := "The posts were mostly neutral in tone."
	narrative, topics, _, sentiment, _ = parseModelOutput(plain)
	if narrative != plain || topics != nil || sentiment != nil {
		t.Fatalf("plain text must degrade to narrative-only, got %q %v %v", narrative, topics, sentiment)
	}

	broken := "{not json at all"
	narrative, _, _, _, _ = parseModelOutput(broken)
	if narrative != broken {
		t.Fatalf("unbalanced braces must fall back to raw text, got %q", narrative)
	}
}
