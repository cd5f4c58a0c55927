package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spyglass/internal/catalog"
	"spyglass/internal/content"
	"spyglass/internal/prompt"
	"spyglass/internal/scenario"
	"spyglass/pkg/llm"
	"spyglass/pkg/logging"
)

// CatalogLoader supplies a catalog snapshot for one run. The snapshot is
// read-only and shared across the run's buckets.
type CatalogLoader interface {
	Load(ctx context.Context) (catalog.Snapshot, error)
}

// RecordStore persists analysis records. Upsert must be atomic per
// (source, day, period type) key.
type RecordStore interface {
	Upsert(ctx context.Context, record AnalysisRecord) error
}

// Config tunes one orchestrator instance.
type Config struct {
	BucketConcurrency int           // concurrent buckets, default 3
	CallTimeout       time.Duration // per LLM call, default 2m
	MaxOutputTokens   int           // per LLM call, default 1024
	MaxTopics         int           // merged topic cap
	SampleItems       int           // content excerpts per prompt
	PromptMaxLength   int           // rendered prompt cap
}

const (
	defaultBucketConcurrency = 3
	defaultCallTimeout       = 2 * time.Minute
	defaultMaxOutputTokens   = 1024
)

// Orchestrator runs the full analysis pipeline for one (source, batch)
// invocation: classify, resolve, fan out per modality, merge, upsert.
type Orchestrator struct {
	catalog   CatalogLoader
	transport *llm.Transport
	store     RecordStore
	builder   *prompt.Builder
	cfg       Config
	logger    logging.Logger

	now func() time.Time
}

func NewOrchestrator(loader CatalogLoader, transport *llm.Transport, store RecordStore, cfg Config, logger logging.Logger) *Orchestrator {
	if cfg.BucketConcurrency <= 0 {
		cfg.BucketConcurrency = defaultBucketConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.MaxTopics <= 0 {
		cfg.MaxTopics = DefaultMaxTopics
	}
	return &Orchestrator{
		catalog:   loader,
		transport: transport,
		store:     store,
		builder:   prompt.NewBuilder(cfg.PromptMaxLength),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// BucketOutcome reports how one (source, day) bucket finished.
type BucketOutcome struct {
	Day   time.Time   `json:"day"`
	State BucketState `json:"state"`
	Error string      `json:"error,omitempty"`
}

// RunResult summarizes a whole run for the scheduler or admin caller.
// Failures stay inside the outcome list; Run itself errors only when the
// pipeline could not start at all.
type RunResult struct {
	Outcomes       []BucketOutcome    `json:"outcomes"`
	Unsatisfied    []catalog.Modality `json:"unsatisfied_modalities,omitempty"`
	UsedFallback   bool               `json:"used_fallback,omitempty"`
	CatalogVersion int64              `json:"catalog_version"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// Counts tallies outcomes by final state.
func (r RunResult) Counts() (complete, partial, failed int) {
	for _, outcome := range r.Outcomes {
		switch outcome.State {
		case StateComplete:
			complete++
		case StatePartial:
			partial++
		case StateFailed:
			failed++
		}
	}
	return
}

// Run analyzes one source's content batch under a scenario. Buckets run
// concurrently up to the configured limit; a bucket failure never blocks
// its siblings. Cancelling ctx stops buckets that have not started, while
// in-flight buckets finish so no record is left half-written.
func (o *Orchestrator) Run(ctx context.Context, sourceID string, scn scenario.AnalysisScenario, batch []content.RawContentItem) (RunResult, error) {
	started := o.now()
	defer func() { runDuration.Observe(time.Since(started).Seconds()) }()

	snap, err := o.catalog.Load(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to load provider catalog: %w", err)
	}

	buckets, warnings := content.Classify(batch, o.now().UTC())
	resolution := catalog.Resolve(snap, scn.RequiredModalities(), scn.Policy)
	o.applyOverrides(snap, scn, &resolution)

	for _, modality := range resolution.Unsatisfied {
		unsatisfiedModalities.WithLabelValues(string(modality)).Inc()
	}

	result := RunResult{
		Unsatisfied:    resolution.Unsatisfied,
		UsedFallback:   resolution.UsedFallback,
		CatalogVersion: resolution.CatalogVersion,
		Warnings:       warnings,
		Outcomes:       make([]BucketOutcome, len(buckets)),
	}
	if len(buckets) == 0 {
		return result, nil
	}

	// Days ascend so partial-run restarts resume in a predictable order.
	group := errgroup.Group{}
	group.SetLimit(o.cfg.BucketConcurrency)
	for i := range buckets {
		if ctx.Err() != nil {
			result.Outcomes[i] = BucketOutcome{
				Day:   buckets[i].Day,
				State: StateFailed,
				Error: "run cancelled before bucket started",
			}
			continue
		}
		idx := i
		group.Go(func() error {
			result.Outcomes[idx] = o.processBucket(context.WithoutCancel(ctx), sourceID, scn, buckets[idx], resolution)
			return nil
		})
	}
	_ = group.Wait()

	for _, outcome := range result.Outcomes {
		bucketsTotal.WithLabelValues(string(outcome.State)).Inc()
	}
	return result, nil
}

// applyOverrides pins modalities to the scenario's legacy model choices
// when the pinned model still exists in the catalog and supports the
// modality. A stale pin is reported and the resolved assignment kept.
func (o *Orchestrator) applyOverrides(snap catalog.Snapshot, scn scenario.AnalysisScenario, resolution *catalog.Resolution) {
	for modality, ref := range scn.Overrides {
		if _, ok := resolution.Assignments[modality]; !ok {
			continue
		}
		provider, model, ok := snap.Model(ref.ProviderID, ref.ModelID)
		if !ok || !model.Supports(modality) {
			o.logger.WithFields(logging.Fields{
				"scenario_id": scn.ID,
				"modality":    string(modality),
				"provider_id": ref.ProviderID,
				"model_id":    ref.ModelID,
			}).Warn("Ignoring stale model override")
			continue
		}
		resolution.Assignments[modality] = catalog.Assignment{
			ProviderID: provider.ID,
			Family:     provider.Family,
			ModelID:    model.ID,
			CostPer1K:  model.CostPer1K,
			Tier:       model.Tier,
		}
	}
}

// processBucket drives one bucket through the state machine and upserts
// the resulting record.
func (o *Orchestrator) processBucket(ctx context.Context, sourceID string, scn scenario.AnalysisScenario, bucket content.DayBucket, resolution catalog.Resolution) BucketOutcome {
	outcome := BucketOutcome{Day: bucket.Day, State: StateInProgress}

	type callable struct {
		modality   catalog.Modality
		assignment catalog.Assignment
		items      []content.RawContentItem
	}
	var calls []callable
	var recordWarnings []string
	unsatisfied := make(map[catalog.Modality]bool, len(resolution.Unsatisfied))
	for _, modality := range resolution.Unsatisfied {
		unsatisfied[modality] = true
	}
	for _, modality := range bucket.Modalities() {
		assignment, ok := resolution.Assignments[modality]
		if !ok {
			if unsatisfied[modality] {
				recordWarnings = append(recordWarnings,
					fmt.Sprintf("modality %s present in content but no catalog model supports it", modality))
			}
			// Modalities the scenario does not analyze are skipped silently.
			continue
		}
		calls = append(calls, callable{modality: modality, assignment: assignment, items: bucket.Groups[modality]})
	}

	record := AnalysisRecord{
		SourceID:       sourceID,
		Day:            bucket.Day,
		PeriodType:     PeriodDaily,
		ScenarioID:     scn.ID,
		CatalogVersion: resolution.CatalogVersion,
		Stats:          bucketStatistics(bucket),
	}

	if len(calls) == 0 {
		outcome.State = StateFailed
		outcome.Error = "no resolvable modality for this bucket"
		record.State = StateFailed
		record.Warnings = recordWarnings
		if err := o.store.Upsert(ctx, record); err != nil {
			outcome.Error = fmt.Sprintf("%s; upsert failed: %v", outcome.Error, err)
		} else {
			recordsUpserted.Inc()
		}
		return outcome
	}

	// Fan out one call per modality, collect every outcome before merging.
	outputs := make([]ModalityOutput, len(calls))
	warningLists := make([][]string, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c callable) {
			defer wg.Done()
			outputs[idx], warningLists[idx] = o.invokeModality(ctx, sourceID, scn, bucket, c.modality, c.assignment, c.items)
		}(i, call)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, out := range outputs {
		if out.Failed {
			failed++
		} else {
			succeeded++
		}
	}
	for _, list := range warningLists {
		recordWarnings = append(recordWarnings, list...)
	}

	// Template warnings stay metadata; only failed calls and unsatisfied
	// content demote the state.
	switch {
	case failed == 0 && !hasUnsatisfied(bucket, resolution):
		outcome.State = StateComplete
	case succeeded > 0:
		outcome.State = StatePartial
	default:
		outcome.State = StateFailed
		outcome.Error = firstError(outputs)
	}

	record.State = outcome.State
	record.Outputs = outputs
	record.Usage = sumUsage(outputs)
	record.Warnings = recordWarnings
	if succeeded > 0 {
		record.Summary = mergeOutputs(outputs, o.cfg.MaxTopics)
	}

	if err := o.store.Upsert(ctx, record); err != nil {
		o.logger.WithError(err).WithFields(logging.Fields{
			"source_id": sourceID,
			"day":       bucket.Day.Format("2006-01-02"),
		}).Error("Failed to upsert analysis record")
		outcome.State = StateFailed
		outcome.Error = fmt.Sprintf("upsert failed: %v", err)
		return outcome
	}
	recordsUpserted.Inc()
	return outcome
}

// hasUnsatisfied reports whether the bucket contains content for a modality
// the resolver could not satisfy. Such buckets are at best PARTIAL.
func hasUnsatisfied(bucket content.DayBucket, resolution catalog.Resolution) bool {
	for _, modality := range resolution.Unsatisfied {
		if len(bucket.Groups[modality]) > 0 {
			return true
		}
	}
	return false
}

func firstError(outputs []ModalityOutput) string {
	for _, out := range outputs {
		if out.Failed && out.Error != "" {
			return out.Error
		}
	}
	return "all modality calls failed"
}

// invokeModality builds the prompt, makes one bounded LLM call, and prices
// it. Failures come back as a failed output, never an error; a timeout is
// a failure like any other.
func (o *Orchestrator) invokeModality(ctx context.Context, sourceID string, scn scenario.AnalysisScenario, bucket content.DayBucket, modality catalog.Modality, assignment catalog.Assignment, items []content.RawContentItem) (ModalityOutput, []string) {
	output := ModalityOutput{
		Modality:   modality,
		ProviderID: assignment.ProviderID,
		ModelID:    assignment.ModelID,
		ItemCount:  len(items),
	}

	stats := prompt.Stats{
		Platform:      sourceID,
		Day:           bucket.Day.Format("2006-01-02"),
		Modality:      string(modality),
		ItemCount:     len(items),
		InferredCount: bucket.Inferred,
		ContentSample: prompt.BuildSample(sampleBodies(items), o.cfg.SampleItems),
	}
	for _, item := range items {
		stats.Reactions += item.Engagement.Reactions
		stats.Comments += item.Engagement.Comments
		stats.Views += item.Engagement.Views
	}

	rendered, warnings := o.builder.Render(scn.Templates[modality], stats, scn.EffectiveScope())
	for i, w := range warnings {
		warnings[i] = fmt.Sprintf("%s/%s: %s", bucket.Day.Format("2006-01-02"), modality, w)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	callStart := time.Now()
	completion, err := o.transport.Invoke(callCtx, assignment.Family, assignment.ModelID, rendered, o.cfg.MaxOutputTokens)
	llmDuration.WithLabelValues(assignment.ProviderID, assignment.ModelID).Observe(time.Since(callStart).Seconds())
	if err != nil {
		llmCallsTotal.WithLabelValues(assignment.ProviderID, assignment.ModelID, "error").Inc()
		o.logger.WithError(err).WithFields(logging.Fields{
			"source_id": sourceID,
			"provider":  assignment.ProviderID,
			"model":     assignment.ModelID,
			"modality":  string(modality),
		}).Warn("LLM call failed")
		output.Failed = true
		output.Error = err.Error()
		return output, warnings
	}
	llmCallsTotal.WithLabelValues(assignment.ProviderID, assignment.ModelID, "success").Inc()
	llmTokensTotal.WithLabelValues(assignment.ProviderID, assignment.ModelID, "prompt").Add(float64(completion.Usage.PromptTokens))
	llmTokensTotal.WithLabelValues(assignment.ProviderID, assignment.ModelID, "completion").Add(float64(completion.Usage.CompletionTokens))

	output.RawOutput = completion.Text
	output.PromptTokens = completion.Usage.PromptTokens
	output.CompletionTokens = completion.Usage.CompletionTokens
	output.EstimatedCost = callCost(completion.Usage.PromptTokens, completion.Usage.CompletionTokens, assignment.CostPer1K)

	narrative, topics, keywords, sentiment, title := parseModelOutput(completion.Text)
	output.Title = title
	output.Narrative = narrative
	output.Topics = topics
	output.Keywords = keywords
	output.SentimentScore = sentiment
	return output, warnings
}

func sampleBodies(items []content.RawContentItem) []string {
	bodies := make([]string, 0, len(items))
	for _, item := range items {
		if item.Body != "" {
			bodies = append(bodies, item.Body)
		} else if item.MediaURL != "" {
			bodies = append(bodies, item.MediaURL)
		}
	}
	return bodies
}

func bucketStatistics(bucket content.DayBucket) Statistics {
	stats := Statistics{
		ItemCount:     bucket.ItemCount(),
		TypeCounts:    make(map[string]int, len(bucket.Groups)),
		InferredCount: bucket.Inferred,
	}
	for modality, items := range bucket.Groups {
		if len(items) == 0 {
			continue
		}
		stats.TypeCounts[string(modality)] = len(items)
		for _, item := range items {
			stats.Engagement.Reactions += item.Engagement.Reactions
			stats.Engagement.Comments += item.Engagement.Comments
			stats.Engagement.Views += item.Engagement.Views
		}
	}
	return stats
}
