package content

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"spyglass/internal/catalog"
	"spyglass/pkg/logging"
)

func TestStoreFetch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	published := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"external_id", "published_at", "modality", "body", "media_url",
		"reactions", "comments", "views",
	}).
		AddRow("a", published, "text", "hello", nil, int64(5), int64(1), int64(50)).
		AddRow("b", nil, "image", nil, "https://cdn.example/b.jpg", int64(0), int64(0), int64(0)).
		AddRow("c", published, "hologram", "future", nil, int64(0), int64(0), int64(0))

	mock.ExpectQuery("FROM spyglass.content_items").WillReturnRows(rows)

	store := NewStore(db, logging.NewLogger())
	items, err := store.Fetch(context.Background(), "acct-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// The unknown-modality row is dropped.
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Modality != catalog.ModalityText || items[0].Body != "hello" {
		t.Fatalf("first item wrong: %+v", items[0])
	}
	if items[1].PublishedAt != nil {
		t.Fatalf("missing timestamp must stay nil, got %v", items[1].PublishedAt)
	}
	if items[0].PublishedAt == nil || !items[0].PublishedAt.Equal(published) {
		t.Fatalf("published timestamp lost: %+v", items[0])
	}
}
