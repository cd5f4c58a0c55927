package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spyglass/internal/catalog"
	"spyglass/pkg/logging"
)

// Store reads collected content from Postgres. Source connectors write the
// rows; this side only reads, so it satisfies Supplier for the agent and
// the run endpoint.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

func NewStore(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Fetch returns the items collected for a source within the lookback
// window, oldest first.
func (s *Store) Fetch(ctx context.Context, sourceID string, lookback time.Duration) ([]RawContentItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, published_at, modality, body, media_url,
		       reactions, comments, views
		FROM spyglass.content_items
		WHERE source_id = $1 AND collected_at >= NOW() - $2::interval
		ORDER BY published_at ASC NULLS LAST`,
		sourceID, fmt.Sprintf("%d seconds", int64(lookback.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content for %s: %w", sourceID, err)
	}
	defer rows.Close()

	var items []RawContentItem
	for rows.Next() {
		var (
			item        RawContentItem
			publishedAt sql.NullTime
			modality    string
			body        sql.NullString
			mediaURL    sql.NullString
		)
		if err := rows.Scan(&item.ExternalID, &publishedAt, &modality, &body, &mediaURL,
			&item.Engagement.Reactions, &item.Engagement.Comments, &item.Engagement.Views); err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time.UTC()
			item.PublishedAt = &t
		}
		item.Body = body.String
		item.MediaURL = mediaURL.String

		parsed, ok := catalog.ParseModality(modality)
		if !ok {
			// Classify drops these too; logging here keeps the noise near
			// the data.
			s.logger.WithFields(logging.Fields{
				"external_id": item.ExternalID,
				"modality":    modality,
			}).Warn("Skipping content item with unknown modality")
			continue
		}
		item.Modality = parsed
		items = append(items, item)
	}
	return items, rows.Err()
}
