package settings

import (
	"context"

	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/models"
)

type ConfigStore interface {
	ActiveForTier(ctx context.Context, tenantID string, tier models.Tier) (*models.EnrichmentConfig, error)
}

type ConfigCache interface {
	Get(ctx context.Context, tenantID string, tier models.Tier) (*models.EnrichmentConfig, bool, error)
	Set(ctx context.Context, tenantID string, tier models.Tier, cfg *models.EnrichmentConfig) error
}

// Resolver loads the policy for a tier. It is read-only.
type Resolver struct {
	store    ConfigStore
	cache    ConfigCache
	tenantID string
	logger   logger.Logger
}

// NewResolver builds a resolver; cache may be nil.
func NewResolver(store ConfigStore, cache ConfigCache, tenantID string, log logger.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, tenantID: tenantID, logger: log}
}

// LoadForTier returns Active when the tenant has an active config for tier
// and Default otherwise. No active config is not an error; only storage
// failures are.
func (r *Resolver) LoadForTier(ctx context.Context, tier models.Tier) (LoadedConfig, error) {
	if !tier.Valid() {
		tier = models.TierStandard
	}

	if r.cache != nil {
		cfg, hit, err := r.cache.Get(ctx, r.tenantID, tier)
		switch {
		case err != nil:
			r.logger.Warn("Config cache read failed", map[string]interface{}{"tier": string(tier), "error": err.Error()})
		case hit:
			return wrap(cfg, tier), nil
		}
	}

	cfg, err := r.store.ActiveForTier(ctx, r.tenantID, tier)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, r.tenantID, tier, cfg); err != nil {
			r.logger.Warn("Config cache write failed", map[string]interface{}{"tier": string(tier), "error": err.Error()})
		}
	}

	return wrap(cfg, tier), nil
}

func wrap(cfg *models.EnrichmentConfig, tier models.Tier) LoadedConfig {
	if cfg == nil {
		return Default{Defaults: DefaultsForTier(tier)}
	}
	return Active{Config: cfg}
}
