package settings

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/enrichment/tools"
	"lead-enricher/internal/models"
)

// LoadedConfig is either Active or Default. Consumers switch on the concrete
// type once instead of re-checking for a config in every tier path.
type LoadedConfig interface {
	Tier() models.Tier
	loaded()
}

// Active wraps the operator's active configuration for a tier.
type Active struct {
	Config *models.EnrichmentConfig
}

// Default carries the hard-coded fallback for a tier.
type Default struct {
	Defaults TierDefaults
}

func (a Active) Tier() models.Tier  { return a.Config.Tier }
func (d Default) Tier() models.Tier { return d.Defaults.Tier }

func (Active) loaded()  {}
func (Default) loaded() {}

// EffectiveConfig is the flattened set of limits the orchestrator needs.
type EffectiveConfig struct {
	AllowedTools   []tools.ID
	MaxTurns       int
	MaxToolCalls   int
	MaxBudgetUSD   float64
	EmailWordRange WordRange
}

// Effective flattens a LoadedConfig. Non-positive numbers in an active config
// fall back to the tier defaults, and tools the tier is not entitled to are
// dropped. The email word range comes from the config's own bounds, then its
// email template, then the tier default.
func Effective(lc LoadedConfig) EffectiveConfig {
	switch c := lc.(type) {
	case Active:
		def := DefaultsForTier(c.Config.Tier)
		eff := EffectiveConfig{
			AllowedTools:   entitled(tools.ParseIDs(c.Config.AllowedTools), c.Config.Tier),
			MaxTurns:       orInt(c.Config.MaxTurns, def.MaxTurns),
			MaxToolCalls:   orInt(c.Config.MaxToolCalls, def.MaxToolCalls),
			MaxBudgetUSD:   orFloat(c.Config.MaxBudgetUSD, def.MaxBudgetUSD),
			EmailWordRange: WordRange{Min: c.Config.EmailMinWords, Max: c.Config.EmailMaxWords},
		}
		if t := c.Config.EmailTemplate; t != nil && eff.EmailWordRange.Min <= 0 && eff.EmailWordRange.Max <= 0 {
			eff.EmailWordRange = WordRange{Min: t.MinWords, Max: t.MaxWords}
		}
		if len(eff.AllowedTools) == 0 {
			eff.AllowedTools = def.AllowedTools
		}
		if eff.EmailWordRange.Min <= 0 || eff.EmailWordRange.Max < eff.EmailWordRange.Min {
			eff.EmailWordRange = def.EmailWords
		}
		return eff

	case Default:
		d := c.Defaults
		return EffectiveConfig{
			AllowedTools:   append([]tools.ID(nil), d.AllowedTools...),
			MaxTurns:       d.MaxTurns,
			MaxToolCalls:   d.MaxToolCalls,
			MaxBudgetUSD:   d.MaxBudgetUSD,
			EmailWordRange: d.EmailWords,
		}

	default:
		return Effective(Default{Defaults: DefaultsForTier(models.TierStandard)})
	}
}

func entitled(ids []tools.ID, tier models.Tier) []tools.ID {
	out := ids[:0:0]
	for _, id := range ids {
		if def, ok := tools.Lookup(id); ok && tier.AtLeast(def.MinTier) {
			out = append(out, id)
		}
	}
	return out
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

// ValidateConfig checks an operator configuration before it is stored.
func ValidateConfig(cfg *models.EnrichmentConfig) error {
	var problems []string

	if strings.TrimSpace(cfg.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !cfg.Tier.Valid() {
		problems = append(problems, fmt.Sprintf("unknown tier %q", cfg.Tier))
	}
	if cfg.MaxTurns < 0 || cfg.MaxToolCalls < 0 || cfg.MaxBudgetUSD < 0 {
		problems = append(problems, "limits must not be negative")
	}
	if cfg.EmailMinWords > 0 && cfg.EmailMaxWords > 0 && cfg.EmailMinWords > cfg.EmailMaxWords {
		problems = append(problems, "email_min_words exceeds email_max_words")
	}
	if res := tools.ValidateForTier(cfg.AllowedTools, cfg.Tier); !res.Valid {
		problems = append(problems, fmt.Sprintf("tools not available for tier %s: %s", cfg.Tier, strings.Join(res.InvalidIDs, ", ")))
	}
	for _, item := range cfg.Blacklist {
		switch item.ItemType {
		case models.BlacklistWord, models.BlacklistPhrase, models.BlacklistTopic, models.BlacklistCompetitor:
		case models.BlacklistRegex:
			if _, err := regexp.Compile(item.Value); err != nil {
				problems = append(problems, fmt.Sprintf("blacklist regex %q does not compile", item.Value))
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown blacklist type %q", item.ItemType))
		}
		if strings.TrimSpace(item.Value) == "" {
			problems = append(problems, "blacklist value is empty")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}
