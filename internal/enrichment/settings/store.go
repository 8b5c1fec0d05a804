package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"lead-enricher/internal/common/database"
	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const configColumns = `id, tenant_id, name, COALESCE(description, ''), tier, version,
	max_turns, max_tool_calls, max_budget_usd, email_min_words, email_max_words,
	COALESCE(email_tone, ''), allowed_tools, is_active, origin,
	playbook_steps, priorities, thinking_rules, email_template, blacklist,
	created_at, updated_at`

// Invalidator drops cached configuration for a tier after activation.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string, tier models.Tier) error
}

// PostgresStore persists enrichment configurations. Owned collections are
// JSONB columns of the config row so a config is always read and written whole.
type PostgresStore struct {
	db          *database.PostgresClient
	invalidator Invalidator
	logger      logger.Logger
}

func NewPostgresStore(db *database.PostgresClient, invalidator Invalidator, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, invalidator: invalidator, logger: log}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (*models.EnrichmentConfig, error) {
	var (
		cfg                                        models.EnrichmentConfig
		tier                                       string
		playbook, priorities, rules, tmpl, blklist []byte
	)

	err := row.Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description, &tier, &cfg.Version,
		&cfg.MaxTurns, &cfg.MaxToolCalls, &cfg.MaxBudgetUSD, &cfg.EmailMinWords, &cfg.EmailMaxWords,
		&cfg.EmailTone, pq.Array(&cfg.AllowedTools), &cfg.IsActive, &cfg.Origin,
		&playbook, &priorities, &rules, &tmpl, &blklist,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.Tier = models.Tier(tier)

	for _, part := range []struct {
		raw  []byte
		dest interface{}
		name string
	}{
		{playbook, &cfg.PlaybookSteps, "playbook_steps"},
		{priorities, &cfg.Priorities, "priorities"},
		{rules, &cfg.ThinkingRules, "thinking_rules"},
		{tmpl, &cfg.EmailTemplate, "email_template"},
		{blklist, &cfg.Blacklist, "blacklist"},
	} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.dest); err != nil {
			return nil, fmt.Errorf("%w: decode %s of config %s: %v", apperrors.ErrConfigInvalid, part.name, cfg.ID, err)
		}
	}

	return &cfg, nil
}

// ActiveForTier returns the active configuration, or nil when none is active.
func (s *PostgresStore) ActiveForTier(ctx context.Context, tenantID string, tier models.Tier) (*models.EnrichmentConfig, error) {
	query := `SELECT ` + configColumns + `
		FROM enrichment_configs
		WHERE tenant_id = $1 AND tier = $2 AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`

	cfg, err := scanConfig(s.db.DB.QueryRowContext(ctx, query, tenantID, string(tier)))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: active config for %s: %v", apperrors.ErrQueryFailed, tier, err)
	}
	return cfg, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.EnrichmentConfig, error) {
	query := `SELECT ` + configColumns + ` FROM enrichment_configs WHERE id = $1`

	cfg, err := scanConfig(s.db.DB.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConfigNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: config %s: %v", apperrors.ErrQueryFailed, id, err)
	}
	return cfg, nil
}

// Create validates and inserts cfg as a new inactive configuration.
func (s *PostgresStore) Create(ctx context.Context, cfg *models.EnrichmentConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	cfg.ID = uuid.NewString()
	cfg.Version = 1
	cfg.IsActive = false
	if cfg.Origin == "" {
		cfg.Origin = "manual"
	}

	for i := range cfg.PlaybookSteps {
		cfg.PlaybookSteps[i].Position = i + 1
	}
	for i := range cfg.ThinkingRules {
		cfg.ThinkingRules[i].Position = i + 1
	}

	encoded := make([][]byte, 0, 5)
	for _, v := range []interface{}{cfg.PlaybookSteps, cfg.Priorities, cfg.ThinkingRules, cfg.EmailTemplate, cfg.Blacklist} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: encode config: %v", apperrors.ErrConfigInvalid, err)
		}
		encoded = append(encoded, b)
	}

	query := `
		INSERT INTO enrichment_configs (
			id, tenant_id, name, description, tier, version,
			max_turns, max_tool_calls, max_budget_usd, email_min_words, email_max_words,
			email_tone, allowed_tools, is_active, origin,
			playbook_steps, priorities, thinking_rules, email_template, blacklist,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, $14,
			$15, $16, $17, $18, $19, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := s.db.DB.QueryRowContext(ctx, query,
		cfg.ID, cfg.TenantID, cfg.Name, cfg.Description, string(cfg.Tier), cfg.Version,
		cfg.MaxTurns, cfg.MaxToolCalls, cfg.MaxBudgetUSD, cfg.EmailMinWords, cfg.EmailMaxWords,
		cfg.EmailTone, pq.Array(cfg.AllowedTools), cfg.Origin,
		encoded[0], encoded[1], encoded[2], encoded[3], encoded[4],
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert config: %v", apperrors.ErrUpdateFailed, err)
	}

	s.logger.Info("Enrichment config created", map[string]interface{}{
		"configId": cfg.ID,
		"tier":     string(cfg.Tier),
		"origin":   cfg.Origin,
	})
	return nil
}

// CreateFromTemplate materialises a catalog template as a new inactive config.
// An empty tier keeps the template's own tier.
func (s *PostgresStore) CreateFromTemplate(ctx context.Context, tenantID, name string, tier models.Tier) (*models.EnrichmentConfig, error) {
	cfg, err := Template(name)
	if err != nil {
		return nil, err
	}
	if tier != "" {
		cfg.Tier = tier
	}
	cfg.TenantID = tenantID
	cfg.Origin = "template"

	if err := s.Create(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Activate makes configID the single active config of its tier and tenant.
// Configs of other tiers are untouched.
func (s *PostgresStore) Activate(ctx context.Context, configID string) error {
	var (
		tenantID string
		tier     string
	)

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT tenant_id, tier FROM enrichment_configs WHERE id = $1 FOR UPDATE`,
			configID,
		).Scan(&tenantID, &tier)
		if stderrors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", apperrors.ErrConfigNotFound, configID)
		}
		if err != nil {
			return fmt.Errorf("%w: lock config: %v", apperrors.ErrQueryFailed, err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE enrichment_configs
			SET is_active = FALSE, updated_at = NOW()
			WHERE tenant_id = $1 AND tier = $2 AND is_active = TRUE AND id <> $3`,
			tenantID, tier, configID,
		); err != nil {
			return fmt.Errorf("%w: deactivate previous config: %v", apperrors.ErrUpdateFailed, err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE enrichment_configs
			SET is_active = TRUE, updated_at = NOW()
			WHERE id = $1`,
			configID,
		); err != nil {
			return fmt.Errorf("%w: activate config: %v", apperrors.ErrUpdateFailed, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, tenantID, models.Tier(tier)); err != nil {
			s.logger.Warn("Config cache invalidation failed", map[string]interface{}{
				"configId": configID,
				"tier":     tier,
				"error":    err.Error(),
			})
		}
	}

	s.logger.Info("Enrichment config activated", map[string]interface{}{
		"configId": configID,
		"tenantId": tenantID,
		"tier":     tier,
		"at":       time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}
