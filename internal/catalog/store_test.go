package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStoreLoad(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GREATEST").WillReturnRows(
		sqlmock.NewRows([]string{"greatest"}).AddRow(int64(42)),
	)

	rows := sqlmock.NewRows([]string{
		"id", "family", "name", "model_id", "modalities", "cost_per_1k", "quality_tier",
	}).
		AddRow("openai-main", "openai", "OpenAI", "gpt-mini", "{text}", "0.0001", "basic").
		AddRow("openai-main", "openai", "OpenAI", "gpt-omni", "{text,image}", "0.01", "premium").
		AddRow("openai-main", "openai", "OpenAI", "broken", "{hologram}", "0.5", "premium")

	mock.ExpectQuery("SELECT p.id").WillReturnRows(rows)

	store := NewStore(db)
	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Version != 42 {
		t.Fatalf("expected version 42, got %d", snap.Version)
	}
	if len(snap.Providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(snap.Providers))
	}
	// The row with no recognized modality is dropped.
	if len(snap.Providers[0].Models) != 2 {
		t.Fatalf("expected 2 usable models, got %d", len(snap.Providers[0].Models))
	}
	if _, model, ok := snap.Model("openai-main", "gpt-omni"); !ok || !model.Supports(ModalityImage) {
		t.Fatalf("expected gpt-omni with image support")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
