package scenario

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"spyglass/internal/catalog"
	"spyglass/internal/prompt"
	"spyglass/pkg/logging"
)

// Store reads analysis scenarios from Postgres.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

func NewStore(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const scenarioColumns = `id, name, source_ids, analysis_kinds, content_kinds, scope, templates,
		selection_policy, cooldown_seconds,
		text_provider_id, text_model_id, image_provider_id, image_model_id`

// Get returns one scenario by ID.
func (s *Store) Get(ctx context.Context, id string) (AnalysisScenario, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scenarioColumns+`
		FROM spyglass.analysis_scenarios
		WHERE id = $1 AND enabled = true`, id)

	scenario, err := s.scanScenario(row)
	if err == sql.ErrNoRows {
		return AnalysisScenario{}, fmt.Errorf("scenario %s not found", id)
	}
	if err != nil {
		return AnalysisScenario{}, fmt.Errorf("failed to load scenario %s: %w", id, err)
	}
	return scenario, nil
}

// ListEnabled returns all enabled scenarios, oldest first, for the
// scheduled analysis agent.
func (s *Store) ListEnabled(ctx context.Context) ([]AnalysisScenario, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scenarioColumns+`
		FROM spyglass.analysis_scenarios
		WHERE enabled = true
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []AnalysisScenario
	for rows.Next() {
		scenario, err := s.scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanScenario(row rowScanner) (AnalysisScenario, error) {
	var (
		scenario        AnalysisScenario
		sourceIDs       pq.StringArray
		analysisKinds   pq.StringArray
		contentKinds    pq.StringArray
		scopeRaw        []byte
		templatesRaw    []byte
		policy          string
		cooldownSeconds int64
		textProvider    sql.NullString
		textModel       sql.NullString
		imageProvider   sql.NullString
		imageModel      sql.NullString
	)
	if err := row.Scan(&scenario.ID, &scenario.Name, &sourceIDs, &analysisKinds, &contentKinds,
		&scopeRaw, &templatesRaw, &policy, &cooldownSeconds,
		&textProvider, &textModel, &imageProvider, &imageModel); err != nil {
		return AnalysisScenario{}, err
	}

	scenario.SourceIDs = sourceIDs
	scenario.AnalysisKinds = analysisKinds
	scenario.Cooldown = time.Duration(cooldownSeconds) * time.Second

	parsed, err := catalog.ParsePolicy(policy)
	if err != nil {
		// Unknown policies degrade to the default rather than blocking the
		// whole scenario list.
		s.logger.WithFields(logging.Fields{
			"scenario_id": scenario.ID,
			"policy":      policy,
		}).Warn("Unknown selection policy, using cost_efficient")
		parsed = catalog.PolicyCostEfficient
	}
	scenario.Policy = parsed

	for _, kind := range contentKinds {
		modality, ok := catalog.ParseModality(kind)
		if !ok {
			s.logger.WithFields(logging.Fields{
				"scenario_id":  scenario.ID,
				"content_kind": kind,
			}).Warn("Skipping unrecognized content kind on scenario")
			continue
		}
		scenario.ContentKinds = append(scenario.ContentKinds, modality)
	}

	scope, err := prompt.ScopeFromJSON(scopeRaw)
	if err != nil {
		return AnalysisScenario{}, fmt.Errorf("invalid scope on scenario %s: %w", scenario.ID, err)
	}
	scenario.Scope = scope

	scenario.Templates = map[catalog.Modality]string{}
	if len(templatesRaw) > 0 {
		var templates map[string]string
		if err := json.Unmarshal(templatesRaw, &templates); err != nil {
			return AnalysisScenario{}, fmt.Errorf("invalid templates on scenario %s: %w", scenario.ID, err)
		}
		for kind, template := range templates {
			if modality, ok := catalog.ParseModality(kind); ok {
				scenario.Templates[modality] = template
			}
		}
	}

	// Legacy single-column model pins become modality overrides here so the
	// rest of the pipeline never sees the old shape.
	scenario.Overrides = map[catalog.Modality]ModelRef{}
	if textProvider.Valid && textModel.Valid && textModel.String != "" {
		scenario.Overrides[catalog.ModalityText] = ModelRef{
			ProviderID: textProvider.String,
			ModelID:    textModel.String,
		}
	}
	if imageProvider.Valid && imageModel.Valid && imageModel.String != "" {
		scenario.Overrides[catalog.ModalityImage] = ModelRef{
			ProviderID: imageProvider.String,
			ModelID:    imageModel.String,
		}
	}

	return scenario, nil
}

// LastRunAt returns when the scenario last completed for a source, or zero
// time if it never ran. The agent uses this to honor cooldowns.
func (s *Store) LastRunAt(ctx context.Context, scenarioID, sourceID string) (time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(updated_at)
		FROM spyglass.analysis_records
		WHERE scenario_id = $1 AND source_id = $2`, scenarioID, sourceID).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last run time: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time.UTC(), nil
}
