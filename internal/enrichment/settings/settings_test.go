package settings

import (
	"context"
	"testing"
	"time"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/enrichment/tools"
	"lead-enricher/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsForTier(t *testing.T) {
	tests := []struct {
		tier     models.Tier
		turns    int
		budget   float64
		words    WordRange
		numTools int
	}{
		{models.TierStandard, 6, 0.10, WordRange{100, 150}, 2},
		{models.TierMedium, 10, 0.25, WordRange{150, 200}, 3},
		{models.TierPremium, 16, 0.75, WordRange{200, 300}, 4},
		{"bogus", 6, 0.10, WordRange{100, 150}, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			d := DefaultsForTier(tt.tier)
			assert.Equal(t, tt.turns, d.MaxTurns)
			assert.InDelta(t, tt.budget, d.MaxBudgetUSD, 1e-9)
			assert.Equal(t, tt.words, d.EmailWords)
			assert.Len(t, d.AllowedTools, tt.numTools)
		})
	}
}

func TestEffective_Default(t *testing.T) {
	eff := Effective(Default{Defaults: DefaultsForTier(models.TierMedium)})

	assert.Equal(t, []tools.ID{tools.WebSearch, tools.WebFetch, tools.ScrapeCompanyWebsite}, eff.AllowedTools)
	assert.Equal(t, 10, eff.MaxTurns)
	assert.Equal(t, 6, eff.MaxToolCalls)
	assert.Equal(t, WordRange{150, 200}, eff.EmailWordRange)
}

func TestEffective_ActiveFallsBackPerField(t *testing.T) {
	eff := Effective(Active{Config: &models.EnrichmentConfig{
		Tier:          models.TierStandard,
		MaxTurns:      3,
		MaxBudgetUSD:  0,
		EmailMinWords: 80,
		EmailMaxWords: 60,
		AllowedTools:  []string{"web_search", "scrape_linkedin", "bogus"},
	}})

	assert.Equal(t, 3, eff.MaxTurns)
	assert.Equal(t, 3, eff.MaxToolCalls)
	assert.InDelta(t, 0.10, eff.MaxBudgetUSD, 1e-9)
	assert.Equal(t, WordRange{100, 150}, eff.EmailWordRange)
	assert.Equal(t, []tools.ID{tools.WebSearch}, eff.AllowedTools)
}

func TestEffective_ActiveWithNoUsableToolsUsesDefaults(t *testing.T) {
	eff := Effective(Active{Config: &models.EnrichmentConfig{Tier: models.TierStandard, AllowedTools: []string{"scrape_linkedin"}}})
	assert.Equal(t, tools.DefaultsForTier(models.TierStandard), eff.AllowedTools)
}

func TestEffective_EmailTemplateWordBounds(t *testing.T) {
	tmpl := &models.EmailTemplate{MinWords: 60, MaxWords: 90}

	eff := Effective(Active{Config: &models.EnrichmentConfig{Tier: models.TierPremium, EmailTemplate: tmpl}})
	assert.Equal(t, WordRange{60, 90}, eff.EmailWordRange)

	eff = Effective(Active{Config: &models.EnrichmentConfig{
		Tier:          models.TierPremium,
		EmailMinWords: 120,
		EmailMaxWords: 180,
		EmailTemplate: tmpl,
	}})
	assert.Equal(t, WordRange{120, 180}, eff.EmailWordRange, "config bounds win over the template")

	eff = Effective(Active{Config: &models.EnrichmentConfig{
		Tier:          models.TierPremium,
		EmailTemplate: &models.EmailTemplate{MinWords: 90, MaxWords: 60},
	}})
	assert.Equal(t, WordRange{200, 300}, eff.EmailWordRange, "inverted template bounds use the tier default")
}

func TestValidateConfig(t *testing.T) {
	valid := &models.EnrichmentConfig{
		Name:         "ok",
		Tier:         models.TierMedium,
		AllowedTools: []string{"web_search", "scrape_company_website"},
		Blacklist: []models.BlacklistItem{
			{ItemType: models.BlacklistRegex, Value: `\bfree\b`},
			{ItemType: models.BlacklistCompetitor, Value: "Acme Rival"},
		},
	}
	assert.NoError(t, ValidateConfig(valid))

	invalid := &models.EnrichmentConfig{
		Tier:          models.TierStandard,
		EmailMinWords: 300,
		EmailMaxWords: 100,
		AllowedTools:  []string{"scrape_linkedin"},
		Blacklist: []models.BlacklistItem{
			{ItemType: "emoji", Value: "x"},
			{ItemType: models.BlacklistRegex, Value: "(unclosed"},
		},
	}
	err := ValidateConfig(invalid)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
	for _, want := range []string{"name is required", "email_min_words", "scrape_linkedin", "unknown blacklist type", "does not compile"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestTemplates_AreValid(t *testing.T) {
	names := TemplateNames()
	assert.Equal(t, []string{"deep-research", "executive-premium", "standard-outreach"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			cfg, err := Template(name)
			require.NoError(t, err)
			assert.NoError(t, ValidateConfig(cfg))
			assert.NotEmpty(t, cfg.PlaybookSteps)
			assert.NotNil(t, cfg.EmailTemplate)
		})
	}

	_, err := Template("missing")
	assert.ErrorIs(t, err, apperrors.ErrConfigNotFound)
}

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
name: Field sales
tier: medium
max_turns: 8
allowed_tools: [web_search, scrape_company_website]
playbook:
  - name: Company
    instruction: Read the company website.
blacklist:
  - type: competitor
    value: Acme Rival
    enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "Field sales", cfg.Name)
	assert.Equal(t, models.TierMedium, cfg.Tier)
	assert.Equal(t, 8, cfg.MaxTurns)
	assert.Equal(t, []string{"web_search", "scrape_company_website"}, cfg.AllowedTools)
	require.Len(t, cfg.Blacklist, 1)
	assert.Equal(t, models.BlacklistCompetitor, cfg.Blacklist[0].ItemType)

	_, err = ParseYAML([]byte("name: [unterminated"))
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

type fakeStore struct {
	cfg   *models.EnrichmentConfig
	err   error
	calls int
}

func (f *fakeStore) ActiveForTier(_ context.Context, _ string, _ models.Tier) (*models.EnrichmentConfig, error) {
	f.calls++
	return f.cfg, f.err
}

func TestResolver_NoActiveConfigIsDefault(t *testing.T) {
	r := NewResolver(&fakeStore{}, nil, "default", logger.NewNoOpLogger())

	loaded, err := r.LoadForTier(context.Background(), models.TierPremium)
	require.NoError(t, err)

	def, ok := loaded.(Default)
	require.True(t, ok)
	assert.Equal(t, models.TierPremium, def.Tier())
	assert.Equal(t, 16, def.Defaults.MaxTurns)
}

func TestResolver_UnknownTierFallsBackToStandard(t *testing.T) {
	loaded, err := NewResolver(&fakeStore{}, nil, "default", logger.NewNoOpLogger()).LoadForTier(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.TierStandard, loaded.Tier())
}

func TestResolver_StoreErrorPropagates(t *testing.T) {
	r := NewResolver(&fakeStore{err: apperrors.ErrQueryFailed}, nil, "default", logger.NewNoOpLogger())

	_, err := r.LoadForTier(context.Background(), models.TierStandard)
	assert.ErrorIs(t, err, apperrors.ErrQueryFailed)
}

func TestResolver_UsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &fakeStore{cfg: &models.EnrichmentConfig{ID: "cfg-1", Name: "A", Tier: models.TierStandard, MaxTurns: 4}}
	cache := NewRedisCache(client, time.Minute)
	r := NewResolver(store, cache, "default", logger.NewNoOpLogger())

	for i := 0; i < 3; i++ {
		loaded, err := r.LoadForTier(context.Background(), models.TierStandard)
		require.NoError(t, err)
		active, ok := loaded.(Active)
		require.True(t, ok)
		assert.Equal(t, "cfg-1", active.Config.ID)
		assert.Equal(t, 4, active.Config.MaxTurns)
	}
	assert.Equal(t, 1, store.calls)
	assert.True(t, mr.Exists("enrichment:config:default:standard"))

	require.NoError(t, cache.Invalidate(context.Background(), "default", models.TierStandard))
	_, err := r.LoadForTier(context.Background(), models.TierStandard)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestResolver_CachesDefaultDecision(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &fakeStore{}
	r := NewResolver(store, NewRedisCache(client, time.Minute), "default", logger.NewNoOpLogger())

	for i := 0; i < 2; i++ {
		loaded, err := r.LoadForTier(context.Background(), models.TierMedium)
		require.NoError(t, err)
		_, isDefault := loaded.(Default)
		assert.True(t, isDefault)
	}
	assert.Equal(t, 1, store.calls)
}

func TestResolver_CacheFailureFallsThroughToStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	store := &fakeStore{cfg: &models.EnrichmentConfig{ID: "cfg-1", Tier: models.TierStandard}}
	r := NewResolver(store, NewRedisCache(client, time.Minute), "default", logger.NewNoOpLogger())

	loaded, err := r.LoadForTier(context.Background(), models.TierStandard)
	require.NoError(t, err)
	assert.IsType(t, Active{}, loaded)
	assert.Equal(t, 1, store.calls)
}

