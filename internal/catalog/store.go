package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Store loads the provider catalog from Postgres into an immutable snapshot.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load reads the full provider/model catalog. The snapshot version is the
// newest updated_at epoch across both tables, so any admin edit bumps it.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, errors.New("catalog store unavailable")
	}

	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT GREATEST(
			COALESCE((SELECT EXTRACT(EPOCH FROM MAX(updated_at))::bigint FROM spyglass.ai_providers), 0),
			COALESCE((SELECT EXTRACT(EPOCH FROM MAX(updated_at))::bigint FROM spyglass.ai_provider_models), 0)
		)
	`).Scan(&version)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load catalog version: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id,
			p.family,
			p.name,
			m.model_id,
			m.modalities,
			m.cost_per_1k,
			m.quality_tier
		FROM spyglass.ai_providers p
		JOIN spyglass.ai_provider_models m ON m.provider_id = p.id
		WHERE p.enabled AND m.enabled
		ORDER BY p.id, m.model_id
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	snapshot := Snapshot{Version: version.Int64}
	index := make(map[string]int)
	for rows.Next() {
		var (
			providerID string
			family     string
			name       string
			modelID    string
			modalities pq.StringArray
			costPer1K  decimal.Decimal
			tier       string
		)
		if err := rows.Scan(&providerID, &family, &name, &modelID, &modalities, &costPer1K, &tier); err != nil {
			return Snapshot{}, fmt.Errorf("scan catalog row: %w", err)
		}

		parsed := make([]Modality, 0, len(modalities))
		for _, raw := range modalities {
			if modality, ok := ParseModality(raw); ok {
				parsed = append(parsed, modality)
			}
		}
		if len(parsed) == 0 {
			// A model with no recognized modality can never be assigned.
			continue
		}

		pos, ok := index[providerID]
		if !ok {
			pos = len(snapshot.Providers)
			index[providerID] = pos
			snapshot.Providers = append(snapshot.Providers, ProviderDescriptor{
				ID:     providerID,
				Family: family,
				Name:   name,
			})
		}
		snapshot.Providers[pos].Models = append(snapshot.Providers[pos].Models, ModelDescriptor{
			ID:         modelID,
			Modalities: parsed,
			CostPer1K:  costPer1K,
			Tier:       Tier(tier),
		})
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate catalog rows: %w", err)
	}

	snapshot.Normalize()
	return snapshot, nil
}
