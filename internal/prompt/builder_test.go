package prompt

import (
	"strings"
	"testing"
)

func TestRenderSubstitutesStatsAndScope(t *testing.T) {
	scope := Scope{
		"brand": MapValue(map[string]Value{
			"tone": ScalarValue("informal"),
		}),
		"hashtags": ListValue(ScalarValue("#go"), ScalarValue("#ai")),
	}
	stats := Stats{
		Platform:  "telegram",
		Day:       "2024-01-01",
		ItemCount: 5,
		Reactions: 120,
	}

	builder := NewBuilder(0)
	out, warnings := builder.Render(
		"Analyze {item_count} posts from {platform} on {day}. Tone: {brand.tone}. Tags: {hashtags}. First: {hashtags.0}. Reactions: {total_reactions}.",
		stats, scope,
	)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	want := "Analyze 5 posts from telegram on 2024-01-01. Tone: informal. Tags: #go, #ai. First: #go. Reactions: 120."
	if out != want {
		t.Fatalf("render mismatch:\n got %q\nwant %q", out, want)
	}
}

func TestRenderStatsWinOverScope(t *testing.T) {
	scope := Scope{"platform": ScalarValue("scope-platform")}
	builder := NewBuilder(0)
	out, _ := builder.Render("{platform}", Stats{Platform: "stats-platform"}, scope)
	if out != "stats-platform" {
		t.Fatalf("expected stats to take precedence, got %q", out)
	}
}

func TestRenderUnresolvedPlaceholderKeptVerbatim(t *testing.T) {
	builder := NewBuilder(0)
	out, warnings := builder.Render("Hello {unknown_key}!", Stats{}, Scope{})
	if out != "Hello {unknown_key}!" {
		t.Fatalf("expected literal placeholder, got %q", out)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "{unknown_key}") {
		t.Fatalf("expected warning for unresolved placeholder, got %v", warnings)
	}
}

func TestRenderTruncatesSampleNotInstructions(t *testing.T) {
	instructions := "Summarize the following posts and keep every instruction intact: {content_sample}"
	sample := strings.Repeat("word ", 200)
	builder := NewBuilder(200)

	out, _ := builder.Render(instructions, Stats{ContentSample: sample}, Scope{})
	if len(out) > 200 {
		t.Fatalf("expected output capped at 200, got %d", len(out))
	}
	if !strings.HasPrefix(out, "Summarize the following posts and keep every instruction intact:") {
		t.Fatalf("instructional portion was cut: %q", out)
	}
}

func TestRenderOverLongInstructionsWarn(t *testing.T) {
	instructions := strings.Repeat("x", 300) + " {content_sample}"
	builder := NewBuilder(100)
	_, warnings := builder.Render(instructions, Stats{ContentSample: "short"}, Scope{})
	found := false
	for _, warning := range warnings {
		if strings.Contains(warning, "over limit") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected over-limit warning, got %v", warnings)
	}
}

func TestScopeFromJSON(t *testing.T) {
	scope, err := ScopeFromJSON([]byte(`{
		"audience": "developers",
		"max_topics": 7,
		"flags": {"strict": true},
		"channels": ["news", "blog"]
	}`))
	if err != nil {
		t.Fatalf("parse scope: %v", err)
	}
	if v, ok := scope.Lookup("max_topics"); !ok || v.Render() != "7" {
		t.Fatalf("expected numeric scalar 7, got %+v", v)
	}
	if v, ok := scope.Lookup("flags.strict"); !ok || v.Render() != "true" {
		t.Fatalf("expected nested bool, got %+v", v)
	}
	if v, ok := scope.Lookup("channels.1"); !ok || v.Render() != "blog" {
		t.Fatalf("expected list index lookup, got %+v", v)
	}
	if _, ok := scope.Lookup("channels.5"); ok {
		t.Fatalf("out-of-range index must not resolve")
	}
	if _, ok := scope.Lookup("audience.deeper"); ok {
		t.Fatalf("descending into a scalar must not resolve")
	}
}

func TestScopeMerge(t *testing.T) {
	defaults := Scope{
		"tone":  ScalarValue("neutral"),
		"depth": ScalarValue("brief"),
	}
	scenario := Scope{"tone": ScalarValue("playful")}
	merged := scenario.Merge(defaults)
	if merged["tone"].Scalar != "playful" {
		t.Fatalf("scenario value must win, got %q", merged["tone"].Scalar)
	}
	if merged["depth"].Scalar != "brief" {
		t.Fatalf("default must fill gaps, got %q", merged["depth"].Scalar)
	}
}

func TestBuildSample(t *testing.T) {
	sample := BuildSample([]string{"one", "", "two", "three"}, 2)
	if !strings.Contains(sample, "- one") || !strings.Contains(sample, "- two") {
		t.Fatalf("expected first two items, got %q", sample)
	}
	if !strings.Contains(sample, "1 more items") {
		t.Fatalf("expected remainder marker, got %q", sample)
	}
}
