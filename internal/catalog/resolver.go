package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy selects which model serves which modality.
type Policy string

const (
	PolicyCostEfficient  Policy = "cost_efficient"
	PolicyQuality        Policy = "quality"
	PolicySingleProvider Policy = "single_provider"
)

// ParsePolicy normalizes a raw policy string, defaulting to cost_efficient
// when empty.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyCostEfficient, "":
		return PolicyCostEfficient, nil
	case PolicyQuality:
		return PolicyQuality, nil
	case PolicySingleProvider:
		return PolicySingleProvider, nil
	}
	return "", fmt.Errorf("unknown selection policy %q", raw)
}

// Assignment is the resolved (provider, model) choice for one modality.
// CostPer1K and Tier are copied from the catalog at resolution time so the
// orchestrator prices calls against the rate in force when the call was made.
type Assignment struct {
	ProviderID string
	Family     string
	ModelID    string
	CostPer1K  decimal.Decimal
	Tier       Tier
}

// Resolution maps each satisfiable required modality to an assignment.
// Modalities no model anywhere supports land in Unsatisfied; the caller
// skips them rather than failing the run.
type Resolution struct {
	Assignments    map[Modality]Assignment
	Unsatisfied    []Modality
	UsedFallback   bool
	CatalogVersion int64
}

type candidate struct {
	provider ProviderDescriptor
	model    ModelDescriptor
}

// Resolve computes the modality mapping for the required modalities under
// the given policy. It is a pure function of its inputs: identical snapshot,
// modalities, and policy always produce an identical resolution.
func Resolve(snap Snapshot, required []Modality, policy Policy) Resolution {
	resolution := Resolution{
		Assignments:    make(map[Modality]Assignment, len(required)),
		CatalogVersion: snap.Version,
	}

	needed := dedupeModalities(required)

	switch policy {
	case PolicyQuality:
		for _, modality := range needed {
			if best, ok := pickBest(snap.Providers, modality, byQuality); ok {
				resolution.Assignments[modality] = toAssignment(best)
			} else {
				resolution.Unsatisfied = append(resolution.Unsatisfied, modality)
			}
		}
	case PolicySingleProvider:
		resolveSingleProvider(snap, needed, &resolution)
	default: // cost_efficient
		for _, modality := range needed {
			if best, ok := pickBest(snap.Providers, modality, byCost); ok {
				resolution.Assignments[modality] = toAssignment(best)
			} else {
				resolution.Unsatisfied = append(resolution.Unsatisfied, modality)
			}
		}
	}

	sortModalities(resolution.Unsatisfied)
	return resolution
}

// resolveSingleProvider picks the provider whose models cover the most
// required modalities, then falls back to cost_efficient across the whole
// catalog for whatever that provider cannot serve.
func resolveSingleProvider(snap Snapshot, needed []Modality, resolution *Resolution) {
	var chosen *ProviderDescriptor
	bestCoverage := 0
	for i := range snap.Providers {
		coverage := 0
		for _, modality := range needed {
			if providerSupports(snap.Providers[i], modality) {
				coverage++
			}
		}
		// Strict > keeps the first provider in ID order on ties.
		if coverage > bestCoverage {
			bestCoverage = coverage
			chosen = &snap.Providers[i]
		}
	}

	var remainder []Modality
	for _, modality := range needed {
		if chosen != nil && providerSupports(*chosen, modality) {
			if best, ok := pickBest([]ProviderDescriptor{*chosen}, modality, byCost); ok {
				resolution.Assignments[modality] = toAssignment(best)
				continue
			}
		}
		remainder = append(remainder, modality)
	}

	for _, modality := range remainder {
		if best, ok := pickBest(snap.Providers, modality, byCost); ok {
			resolution.Assignments[modality] = toAssignment(best)
			resolution.UsedFallback = true
		} else {
			resolution.Unsatisfied = append(resolution.Unsatisfied, modality)
		}
	}
}

// byCost orders candidates cheapest first; ties prefer the higher tier,
// then lexical IDs for determinism.
func byCost(a, b candidate) bool {
	if cmp := a.model.CostPer1K.Cmp(b.model.CostPer1K); cmp != 0 {
		return cmp < 0
	}
	if a.model.Tier.Rank() != b.model.Tier.Rank() {
		return a.model.Tier.Rank() > b.model.Tier.Rank()
	}
	return lexicalLess(a, b)
}

// byQuality orders candidates best tier first; ties broken by lowest cost,
// then lexical IDs.
func byQuality(a, b candidate) bool {
	if a.model.Tier.Rank() != b.model.Tier.Rank() {
		return a.model.Tier.Rank() > b.model.Tier.Rank()
	}
	if cmp := a.model.CostPer1K.Cmp(b.model.CostPer1K); cmp != 0 {
		return cmp < 0
	}
	return lexicalLess(a, b)
}

func lexicalLess(a, b candidate) bool {
	if a.provider.ID != b.provider.ID {
		return a.provider.ID < b.provider.ID
	}
	return a.model.ID < b.model.ID
}

func pickBest(providers []ProviderDescriptor, modality Modality, less func(a, b candidate) bool) (candidate, bool) {
	var best candidate
	found := false
	for _, provider := range providers {
		for _, model := range provider.Models {
			if !model.Supports(modality) {
				continue
			}
			current := candidate{provider: provider, model: model}
			if !found || less(current, best) {
				best = current
				found = true
			}
		}
	}
	return best, found
}

func providerSupports(provider ProviderDescriptor, modality Modality) bool {
	for _, model := range provider.Models {
		if model.Supports(modality) {
			return true
		}
	}
	return false
}

func toAssignment(c candidate) Assignment {
	return Assignment{
		ProviderID: c.provider.ID,
		Family:     c.provider.Family,
		ModelID:    c.model.ID,
		CostPer1K:  c.model.CostPer1K,
		Tier:       c.model.Tier,
	}
}

func dedupeModalities(modalities []Modality) []Modality {
	seen := make(map[Modality]struct{}, len(modalities))
	out := make([]Modality, 0, len(modalities))
	for _, modality := range modalities {
		if _, ok := seen[modality]; ok {
			continue
		}
		seen[modality] = struct{}{}
		out = append(out, modality)
	}
	sortModalities(out)
	return out
}

var modalityOrder = map[Modality]int{
	ModalityText:  0,
	ModalityImage: 1,
	ModalityVideo: 2,
	ModalityAudio: 3,
}

func sortModalities(modalities []Modality) {
	sort.Slice(modalities, func(i, j int) bool {
		return modalityOrder[modalities[i]] < modalityOrder[modalities[j]]
	})
}
