// Package schema creates the spyglass tables when they do not exist yet.
// Deployments with managed migrations can skip calling Ensure; the
// statements are idempotent either way.
package schema

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE SCHEMA IF NOT EXISTS spyglass`,

	`CREATE TABLE IF NOT EXISTS spyglass.ai_providers (
		id TEXT PRIMARY KEY,
		family TEXT NOT NULL,
		name TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS spyglass.ai_provider_models (
		provider_id TEXT NOT NULL REFERENCES spyglass.ai_providers(id) ON DELETE CASCADE,
		model_id TEXT NOT NULL,
		modalities TEXT[] NOT NULL,
		cost_per_1k NUMERIC(12, 6) NOT NULL DEFAULT 0,
		quality_tier TEXT NOT NULL DEFAULT 'basic',
		enabled BOOLEAN NOT NULL DEFAULT true,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (provider_id, model_id)
	)`,

	`CREATE TABLE IF NOT EXISTS spyglass.analysis_scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_ids TEXT[] NOT NULL DEFAULT '{}',
		analysis_kinds TEXT[] NOT NULL DEFAULT '{}',
		content_kinds TEXT[] NOT NULL DEFAULT '{}',
		scope JSONB NOT NULL DEFAULT '{}',
		templates JSONB NOT NULL DEFAULT '{}',
		selection_policy TEXT NOT NULL DEFAULT 'cost_efficient',
		cooldown_seconds BIGINT NOT NULL DEFAULT 0,
		text_provider_id TEXT,
		text_model_id TEXT,
		image_provider_id TEXT,
		image_model_id TEXT,
		enabled BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS spyglass.analysis_records (
		source_id TEXT NOT NULL,
		day DATE NOT NULL,
		period_type TEXT NOT NULL,
		scenario_id TEXT,
		state TEXT NOT NULL,
		outputs JSONB NOT NULL DEFAULT '[]',
		summary JSONB NOT NULL DEFAULT '{}',
		statistics JSONB NOT NULL DEFAULT '{}',
		usage JSONB NOT NULL DEFAULT '{}',
		catalog_version BIGINT NOT NULL DEFAULT 0,
		warnings TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (source_id, day, period_type)
	)`,

	`CREATE TABLE IF NOT EXISTS spyglass.content_items (
		source_id TEXT NOT NULL,
		external_id TEXT NOT NULL,
		published_at TIMESTAMPTZ,
		modality TEXT NOT NULL,
		body TEXT,
		media_url TEXT,
		reactions BIGINT NOT NULL DEFAULT 0,
		comments BIGINT NOT NULL DEFAULT 0,
		views BIGINT NOT NULL DEFAULT 0,
		collected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (source_id, external_id)
	)`,

	`CREATE INDEX IF NOT EXISTS analysis_records_scenario_idx
		ON spyglass.analysis_records (scenario_id, source_id, updated_at)`,

	`CREATE INDEX IF NOT EXISTS content_items_collected_idx
		ON spyglass.content_items (source_id, collected_at)`,
}

// Ensure runs the schema statements in order.
func Ensure(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
