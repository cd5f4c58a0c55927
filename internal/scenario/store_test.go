package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"spyglass/internal/catalog"
	"spyglass/internal/prompt"
	"spyglass/pkg/logging"
)

func scenarioRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "source_ids", "analysis_kinds", "content_kinds", "scope", "templates",
		"selection_policy", "cooldown_seconds",
		"text_provider_id", "text_model_id", "image_provider_id", "image_model_id",
	})
}

func TestStoreGetTranslatesLegacyColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := scenarioRows().AddRow(
		"scn-1", "Daily pulse", "{acct-1,acct-2}", "{sentiment,topics}", "{text,image,hologram}",
		[]byte(`{"audience":"investors"}`),
		[]byte(`{"text":"Analyze {content_sample}","image":"Describe the imagery"}`),
		"quality", int64(3600),
		"openai-main", "gpt-omni", nil, nil,
	)
	mock.ExpectQuery("FROM spyglass.analysis_scenarios").WillReturnRows(rows)

	store := NewStore(db, logging.NewLogger())
	scenario, err := store.Get(context.Background(), "scn-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if scenario.Policy != catalog.PolicyQuality {
		t.Fatalf("expected quality policy, got %s", scenario.Policy)
	}
	if len(scenario.SourceIDs) != 2 || scenario.SourceIDs[0] != "acct-1" {
		t.Fatalf("unexpected source ids: %v", scenario.SourceIDs)
	}
	if scenario.Cooldown != time.Hour {
		t.Fatalf("expected 1h cooldown, got %s", scenario.Cooldown)
	}
	// The unrecognized content kind is dropped.
	if len(scenario.ContentKinds) != 2 {
		t.Fatalf("expected 2 content kinds, got %v", scenario.ContentKinds)
	}
	ref, ok := scenario.Overrides[catalog.ModalityText]
	if !ok || ref.ProviderID != "openai-main" || ref.ModelID != "gpt-omni" {
		t.Fatalf("expected legacy text columns translated to an override, got %+v", scenario.Overrides)
	}
	if _, ok := scenario.Overrides[catalog.ModalityImage]; ok {
		t.Fatalf("null legacy image columns must not produce an override")
	}
	if value, ok := scenario.Scope.Lookup("audience"); !ok || value.Render() != "investors" {
		t.Fatalf("expected scope to carry audience, got %v", scenario.Scope)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM spyglass.analysis_scenarios").WillReturnRows(scenarioRows())

	store := NewStore(db, logging.NewLogger())
	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("expected an error for a missing scenario")
	}
}

func TestRequiredModalitiesNeedTemplates(t *testing.T) {
	scenario := AnalysisScenario{
		ContentKinds: []catalog.Modality{catalog.ModalityText, catalog.ModalityImage},
		Templates: map[catalog.Modality]string{
			catalog.ModalityText: "Analyze {content_sample}",
		},
	}
	required := scenario.RequiredModalities()
	if len(required) != 1 || required[0] != catalog.ModalityText {
		t.Fatalf("expected only text to be required, got %v", required)
	}
}

func TestEffectiveScopeDefaultsLose(t *testing.T) {
	scenario := AnalysisScenario{
		AnalysisKinds: []string{"topics", "made-up-kind"},
		Scope: prompt.Scope{
			"max_topics": prompt.ScalarValue("8"),
			"audience":   prompt.ScalarValue("investors"),
		},
	}
	scope := scenario.EffectiveScope()
	if value, _ := scope.Lookup("max_topics"); value.Render() != "8" {
		t.Fatalf("scenario value must win over the kind default, got %q", value.Render())
	}
	if value, _ := scope.Lookup("audience"); value.Render() != "investors" {
		t.Fatalf("scenario-only key lost: %v", scope)
	}

	bare := AnalysisScenario{AnalysisKinds: []string{"sentiment"}}
	if _, ok := bare.EffectiveScope().Lookup("sentiment_scale"); !ok {
		t.Fatalf("expected sentiment kind to supply a default scale")
	}
}
