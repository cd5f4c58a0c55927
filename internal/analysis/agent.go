package analysis

import (
	"context"
	"fmt"
	"time"

	"spyglass/internal/content"
	"spyglass/internal/scenario"
	"spyglass/pkg/logging"
)

const (
	defaultAgentInterval = 1 * time.Hour
	defaultLookback      = 24 * time.Hour
)

// ScenarioSource lists enabled scenarios and reports when a scenario last
// ran for a source.
type ScenarioSource interface {
	ListEnabled(ctx context.Context) ([]scenario.AnalysisScenario, error)
	LastRunAt(ctx context.Context, scenarioID, sourceID string) (time.Time, error)
}

type AgentConfig struct {
	Interval     time.Duration
	Lookback     time.Duration
	Scenarios    ScenarioSource
	Supplier     content.Supplier
	Orchestrator *Orchestrator
	Logger       logging.Logger
}

// Agent periodically runs every enabled scenario against its sources,
// skipping sources still inside the scenario's cooldown.
type Agent struct {
	interval     time.Duration
	lookback     time.Duration
	scenarios    ScenarioSource
	supplier     content.Supplier
	orchestrator *Orchestrator
	logger       logging.Logger

	now func() time.Time
}

func NewAgent(cfg AgentConfig) *Agent {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultAgentInterval
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	return &Agent{
		interval:     interval,
		lookback:     lookback,
		scenarios:    cfg.Scenarios,
		supplier:     cfg.Supplier,
		orchestrator: cfg.Orchestrator,
		logger:       cfg.Logger,
		now:          time.Now,
	}
}

func (a *Agent) Start(ctx context.Context) {
	if a == nil {
		return
	}
	a.runCycle(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runCycle(ctx)
		}
	}
}

func (a *Agent) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("panic", fmt.Sprint(r)).Error("Analysis cycle panic")
		}
	}()

	scenarios, err := a.scenarios.ListEnabled(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Analysis agent: failed to list scenarios")
		return
	}

	for _, scn := range scenarios {
		for _, sourceID := range scn.SourceIDs {
			if ctx.Err() != nil {
				return
			}
			a.runScenario(ctx, scn, sourceID)
		}
	}
}

func (a *Agent) runScenario(ctx context.Context, scn scenario.AnalysisScenario, sourceID string) {
	if scn.Cooldown > 0 {
		lastRun, err := a.scenarios.LastRunAt(ctx, scn.ID, sourceID)
		if err != nil {
			a.logger.WithError(err).WithField("scenario_id", scn.ID).Warn("Analysis agent: failed to read last run time")
			return
		}
		if !lastRun.IsZero() && a.now().Sub(lastRun) < scn.Cooldown {
			a.logger.WithFields(logging.Fields{
				"scenario_id": scn.ID,
				"source_id":   sourceID,
				"last_run":    lastRun.Format(time.RFC3339),
			}).Debug("Analysis agent: cooldown active, skipping source")
			return
		}
	}

	batch, err := a.supplier.Fetch(ctx, sourceID, a.lookback)
	if err != nil {
		a.logger.WithError(err).WithFields(logging.Fields{
			"scenario_id": scn.ID,
			"source_id":   sourceID,
		}).Warn("Analysis agent: content fetch failed")
		return
	}
	if len(batch) == 0 {
		a.logger.WithField("source_id", sourceID).Debug("Analysis agent: no new content")
		return
	}

	result, err := a.orchestrator.Run(ctx, sourceID, scn, batch)
	if err != nil {
		a.logger.WithError(err).WithFields(logging.Fields{
			"scenario_id": scn.ID,
			"source_id":   sourceID,
		}).Warn("Analysis agent: run failed")
		return
	}
	complete, partial, failed := result.Counts()
	a.logger.WithFields(logging.Fields{
		"scenario_id": scn.ID,
		"source_id":   sourceID,
		"items":       len(batch),
		"complete":    complete,
		"partial":     partial,
		"failed":      failed,
	}).Info("Analysis agent: run finished")
}
