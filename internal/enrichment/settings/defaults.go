// Package settings resolves the enrichment policy for a tier: the active
// operator configuration when there is one, hard-coded tier defaults otherwise.
package settings

import (
	"lead-enricher/internal/enrichment/tools"
	"lead-enricher/internal/models"
)

type WordRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// TierDefaults are the fallback limits used when no configuration is active.
type TierDefaults struct {
	Tier         models.Tier
	MaxTurns     int
	MaxToolCalls int
	MaxBudgetUSD float64
	EmailWords   WordRange
	EmailTone    string
	AllowedTools []tools.ID
}

// DefaultsForTier returns the documented fallback for tier; unknown tiers get
// the standard values.
func DefaultsForTier(tier models.Tier) TierDefaults {
	switch tier {
	case models.TierPremium:
		return TierDefaults{
			Tier:         models.TierPremium,
			MaxTurns:     16,
			MaxToolCalls: 12,
			MaxBudgetUSD: 0.75,
			EmailWords:   WordRange{Min: 200, Max: 300},
			EmailTone:    "consultative",
			AllowedTools: tools.DefaultsForTier(models.TierPremium),
		}
	case models.TierMedium:
		return TierDefaults{
			Tier:         models.TierMedium,
			MaxTurns:     10,
			MaxToolCalls: 6,
			MaxBudgetUSD: 0.25,
			EmailWords:   WordRange{Min: 150, Max: 200},
			EmailTone:    "professional",
			AllowedTools: tools.DefaultsForTier(models.TierMedium),
		}
	default:
		return TierDefaults{
			Tier:         models.TierStandard,
			MaxTurns:     6,
			MaxToolCalls: 3,
			MaxBudgetUSD: 0.10,
			EmailWords:   WordRange{Min: 100, Max: 150},
			EmailTone:    "professional",
			AllowedTools: tools.DefaultsForTier(models.TierStandard),
		}
	}
}
