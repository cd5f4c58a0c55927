package scenario

import (
	"time"

	"spyglass/internal/catalog"
	"spyglass/internal/prompt"
)

// ModelRef names a (provider, model) pair without catalog pricing data.
// Used for legacy per-modality override columns; the orchestrator fills in
// rate and tier from the catalog snapshot.
type ModelRef struct {
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

// AnalysisScenario is the admin-authored configuration for one analysis
// pipeline. Read-only to the core; the admin UI owns mutation.
type AnalysisScenario struct {
	ID            string
	Name          string
	SourceIDs     []string // sources this scenario watches
	AnalysisKinds []string // open set: "sentiment", "topics", "keywords", ...
	ContentKinds  []catalog.Modality
	Scope         prompt.Scope
	Templates     map[catalog.Modality]string
	Policy        catalog.Policy
	Cooldown      time.Duration

	// Overrides pins a modality to a specific model regardless of policy.
	// Populated from the legacy per-modality columns at the read boundary so
	// the orchestrator only ever sees one representation.
	Overrides map[catalog.Modality]ModelRef
}

// RequiredModalities returns the modalities the scenario analyzes: the
// requested content kinds that also have a prompt template. A missing
// template means "no analysis for that modality".
func (s AnalysisScenario) RequiredModalities() []catalog.Modality {
	out := make([]catalog.Modality, 0, len(s.ContentKinds))
	for _, modality := range s.ContentKinds {
		if template, ok := s.Templates[modality]; ok && template != "" {
			out = append(out, modality)
		}
	}
	return out
}

// kindDefaults supplies default scope values per analysis kind. Unknown
// kinds contribute nothing since the kind set is open.
var kindDefaults = map[string]prompt.Scope{
	"sentiment": {
		"sentiment_scale": prompt.ScalarValue("-1.0 (very negative) to 1.0 (very positive)"),
	},
	"topics": {
		"max_topics": prompt.ScalarValue("5"),
	},
	"keywords": {
		"max_keywords": prompt.ScalarValue("10"),
	},
	"engagement": {
		"engagement_focus": prompt.ScalarValue("reactions, comments and views relative to typical posts"),
	},
}

// EffectiveScope merges the scenario's scope over the defaults implied by
// its analysis kinds. Scenario values always win.
func (s AnalysisScenario) EffectiveScope() prompt.Scope {
	merged := prompt.Scope{}
	for _, kind := range s.AnalysisKinds {
		if defaults, ok := kindDefaults[kind]; ok {
			merged = merged.Merge(defaults)
		}
	}
	return s.Scope.Merge(merged)
}
