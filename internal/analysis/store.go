package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"spyglass/pkg/logging"
)

// Store persists analysis records in Postgres. The unique index on
// (source_id, day, period_type) makes the upsert atomic per bucket key, so
// overlapping runs serialize at the row and the last writer wins whole.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

func NewStore(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Upsert writes or overwrites the record for its (source, day, period type)
// key. The whole record is replaced; fields never interleave across runs.
func (s *Store) Upsert(ctx context.Context, record AnalysisRecord) error {
	outputs, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("failed to encode modality outputs: %w", err)
	}
	summary, err := json.Marshal(record.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	stats, err := json.Marshal(record.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	usage, err := json.Marshal(record.Usage)
	if err != nil {
		return fmt.Errorf("failed to encode usage: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO spyglass.analysis_records
			(source_id, day, period_type, scenario_id, state, outputs, summary,
			 statistics, usage, catalog_version, warnings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (source_id, day, period_type) DO UPDATE SET
			scenario_id = EXCLUDED.scenario_id,
			state = EXCLUDED.state,
			outputs = EXCLUDED.outputs,
			summary = EXCLUDED.summary,
			statistics = EXCLUDED.statistics,
			usage = EXCLUDED.usage,
			catalog_version = EXCLUDED.catalog_version,
			warnings = EXCLUDED.warnings,
			updated_at = NOW()`,
		record.SourceID, record.Day, record.PeriodType, record.ScenarioID,
		string(record.State), outputs, summary, stats, usage,
		record.CatalogVersion, pq.Array(record.Warnings))
	if err != nil {
		return fmt.Errorf("failed to upsert analysis record: %w", err)
	}
	return nil
}

// ListFilter narrows List and Purge. Zero values mean "no filter"; From/To
// bound the day column inclusively.
type ListFilter struct {
	SourceID   string
	ScenarioID string
	From       time.Time
	To         time.Time
	Limit      int
}

// List returns records matching the filter, newest day first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]AnalysisRecord, error) {
	query := `
		SELECT source_id, day, period_type, scenario_id, state, outputs,
		       summary, statistics, usage, catalog_version, warnings,
		       created_at, updated_at
		FROM spyglass.analysis_records
		WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.SourceID != "" {
		query += " AND source_id = " + arg(filter.SourceID)
	}
	if filter.ScenarioID != "" {
		query += " AND scenario_id = " + arg(filter.ScenarioID)
	}
	if !filter.From.IsZero() {
		query += " AND day >= " + arg(filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND day <= " + arg(filter.To)
	}
	query += " ORDER BY day DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis records: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Purge deletes records for a source over a day range. This is the only
// sanctioned mutation besides the orchestrator's upsert.
func (s *Store) Purge(ctx context.Context, sourceID string, from, to time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM spyglass.analysis_records
		WHERE source_id = $1 AND day >= $2 AND day <= $3`,
		sourceID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to purge analysis records: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged records: %w", err)
	}
	s.logger.WithFields(logging.Fields{
		"source_id": sourceID,
		"deleted":   deleted,
	}).Info("Purged analysis records")
	return deleted, nil
}

func scanRecord(rows *sql.Rows) (AnalysisRecord, error) {
	var (
		record   AnalysisRecord
		state    string
		outputs  []byte
		summary  []byte
		stats    []byte
		usage    []byte
		warnings pq.StringArray
	)
	if err := rows.Scan(&record.SourceID, &record.Day, &record.PeriodType,
		&record.ScenarioID, &state, &outputs, &summary, &stats, &usage,
		&record.CatalogVersion, &warnings, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return AnalysisRecord{}, err
	}
	record.State = BucketState(state)
	record.Warnings = warnings
	record.Day = record.Day.UTC()

	if err := json.Unmarshal(outputs, &record.Outputs); err != nil {
		return AnalysisRecord{}, fmt.Errorf("invalid outputs payload: %w", err)
	}
	if err := json.Unmarshal(summary, &record.Summary); err != nil {
		return AnalysisRecord{}, fmt.Errorf("invalid summary payload: %w", err)
	}
	if err := json.Unmarshal(stats, &record.Stats); err != nil {
		return AnalysisRecord{}, fmt.Errorf("invalid statistics payload: %w", err)
	}
	if err := json.Unmarshal(usage, &record.Usage); err != nil {
		return AnalysisRecord{}, fmt.Errorf("invalid usage payload: %w", err)
	}
	return record, nil
}
