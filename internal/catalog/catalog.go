package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Modality is one kind of content medium analyzed independently.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// AllModalities lists every known modality in canonical order.
var AllModalities = []Modality{ModalityText, ModalityImage, ModalityVideo, ModalityAudio}

// ParseModality normalizes a raw modality string. The second return is false
// for anything outside the known set.
func ParseModality(raw string) (Modality, bool) {
	switch Modality(strings.ToLower(strings.TrimSpace(raw))) {
	case ModalityText:
		return ModalityText, true
	case ModalityImage:
		return ModalityImage, true
	case ModalityVideo:
		return ModalityVideo, true
	case ModalityAudio:
		return ModalityAudio, true
	}
	return "", false
}

// Tier is a model's quality tier: basic < standard < premium.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Rank returns the tier's position in the quality ordering. Unknown tiers
// rank below basic so malformed catalog rows never win a quality selection.
func (t Tier) Rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierStandard:
		return 2
	case TierPremium:
		return 3
	}
	return 0
}

// ModelDescriptor describes one model a provider exposes.
type ModelDescriptor struct {
	ID         string
	Modalities []Modality
	CostPer1K  decimal.Decimal // USD per 1000 tokens
	Tier       Tier
}

// Supports reports whether the model handles the given modality.
func (m ModelDescriptor) Supports(mod Modality) bool {
	for _, candidate := range m.Modalities {
		if candidate == mod {
			return true
		}
	}
	return false
}

// ProviderDescriptor is immutable reference data about one AI provider.
// Family names the transport backend ("openai", "anthropic", "ollama").
type ProviderDescriptor struct {
	ID     string
	Family string
	Name   string
	Models []ModelDescriptor
}

// Snapshot is a versioned, read-only view of the provider catalog. It is
// passed explicitly to the resolver so resolution stays a pure function of
// its inputs.
type Snapshot struct {
	Version   int64
	Providers []ProviderDescriptor
}

// Normalize sorts providers and models by ID so iteration order, and
// therefore resolution, is deterministic regardless of load order.
func (s *Snapshot) Normalize() {
	sort.Slice(s.Providers, func(i, j int) bool {
		return s.Providers[i].ID < s.Providers[j].ID
	})
	for i := range s.Providers {
		models := s.Providers[i].Models
		sort.Slice(models, func(a, b int) bool {
			return models[a].ID < models[b].ID
		})
	}
}

// Model looks up a model by provider and model ID.
func (s Snapshot) Model(providerID, modelID string) (ProviderDescriptor, ModelDescriptor, bool) {
	for _, provider := range s.Providers {
		if provider.ID != providerID {
			continue
		}
		for _, model := range provider.Models {
			if model.ID == modelID {
				return provider, model, true
			}
		}
	}
	return ProviderDescriptor{}, ModelDescriptor{}, false
}
