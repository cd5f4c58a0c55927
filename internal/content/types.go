package content

import (
	"context"
	"time"

	"spyglass/internal/catalog"
)

// Engagement holds the raw interaction counters reported by a source
// connector for one item.
type Engagement struct {
	Reactions int64 `json:"reactions"`
	Comments  int64 `json:"comments"`
	Views     int64 `json:"views"`
}

// RawContentItem is one piece of collected content, immutable once supplied
// by a source connector. PublishedAt may be nil when the platform did not
// report a timestamp.
type RawContentItem struct {
	ExternalID  string           `json:"external_id"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
	Modality    catalog.Modality `json:"modality"`
	Body        string           `json:"body,omitempty"`
	MediaURL    string           `json:"media_url,omitempty"`
	Engagement  Engagement       `json:"engagement"`
}

// Supplier returns an ordered batch of raw content for a source over a
// lookback window. Platform-specific fetching lives behind this boundary.
type Supplier interface {
	Fetch(ctx context.Context, sourceID string, lookback time.Duration) ([]RawContentItem, error)
}
