// Package app connects the backing services and assembles the enrichment
// components shared by the worker and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"lead-enricher/internal/common/aws"
	"lead-enricher/internal/common/config"
	"lead-enricher/internal/common/database"
	commonhttp "lead-enricher/internal/common/http"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/common/observability"
	"lead-enricher/internal/enrichment/agent"
	"lead-enricher/internal/enrichment/audit"
	"lead-enricher/internal/enrichment/orchestrator"
	"lead-enricher/internal/enrichment/settings"
	"lead-enricher/internal/enrichment/sweeper"
	"lead-enricher/internal/enrichment/tools"
)

type Options struct {
	// Attempts per backing service; the delay doubles after each failure.
	Attempts     int
	InitialDelay time.Duration
}

type App struct {
	Config        *config.Config
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Observability *observability.Observability

	Configs  *settings.PostgresStore
	Resolver *settings.Resolver
	Leads    *orchestrator.PostgresLeadStore
	Contexts *orchestrator.PostgresBusinessContextStore
	Audit    *audit.PostgresRecorder

	log logger.Logger
}

// Connect opens Postgres and Redis, and Elasticsearch when configured. An
// unreachable Elasticsearch only disables the audit mirror.
func Connect(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger, opts Options) (*App, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 2 * time.Second
	}
	a := &App{Config: cfg, Observability: obs, log: log}

	err := RetryWithBackoff(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		a.Postgres = pg
		return nil
	}, opts.Attempts, opts.InitialDelay, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	err = RetryWithBackoff(func() error {
		rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return err
		}
		a.Redis = rdb
		return nil
	}, opts.Attempts, opts.InitialDelay, log, "Redis connection")
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("Redis connected successfully", nil)

	var mirror audit.Mirror
	if cfg.Database.Elasticsearch.Enabled() {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = es.Ping(ctx)
		}
		if err != nil {
			log.Warn("Elasticsearch unavailable, audit mirror disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.Elasticsearch = es
			mirror = audit.NewElasticsearchMirror(es, cfg.Database.Elasticsearch.AuditIndex)
			log.Info("Elasticsearch connected successfully", nil)
		}
	}

	tenant := cfg.App.TenantID
	cache := settings.NewRedisCache(a.Redis.Client, time.Duration(cfg.Enrichment.ConfigCacheTTL)*time.Second)
	a.Configs = settings.NewPostgresStore(a.Postgres, cache, log)
	a.Resolver = settings.NewResolver(a.Configs, cache, tenant, log)
	a.Leads = orchestrator.NewPostgresLeadStore(a.Postgres)
	a.Contexts = orchestrator.NewPostgresBusinessContextStore(a.Postgres, tenant)
	a.Audit = audit.NewPostgresRecorder(a.Postgres, mirror, log)

	return a, nil
}

// Orchestrator builds the model adapter, the local tools and the event sink.
func (a *App) Orchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	g := a.Config.APIs.Gemini
	model, err := agent.NewGeminiModel(ctx, agent.GeminiConfig{
		APIKey:                g.APIKey,
		Model:                 g.Model,
		BaseURL:               g.BaseURL,
		Timeout:               config.GetDuration(g.Timeout),
		MaxOutputTokens:       int32(g.MaxOutputTokens),
		InputPricePerMillion:  g.InputPricePerMillion,
		OutputPricePerMillion: g.OutputPricePerMillion,
		RequestsPerMinute:     g.RequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}

	sc := a.Config.Scraper
	timeout := config.GetDuration(sc.Timeout)
	client := commonhttp.NewClient(timeout,
		commonhttp.WithUserAgent(sc.UserAgent),
		commonhttp.WithMaxBodyBytes(sc.MaxBodyBytes),
		commonhttp.WithRateLimit(sc.RequestsPerSecond),
	)
	executor := tools.NewLocalExecutor(
		tools.ExecutorConfig{Timeout: timeout, PerToolRate: float64(sc.RequestsPerSecond)},
		tools.NewHTTPWebsiteScraper(client, sc.MaxTextChars),
		tools.NewProfileAPIScraper(client, sc.ProfileProvider.URL, sc.ProfileProvider.APIKey),
		a.log,
	)

	var events orchestrator.EventSink
	if sns := a.Config.Notifications.SNS; sns.Enabled {
		pub, err := aws.NewSNSPublisher(ctx, sns.Region, sns.TopicARN)
		if err != nil {
			return nil, fmt.Errorf("sns publisher: %w", err)
		}
		events = orchestrator.NewSNSEventSink(pub)
	}

	return orchestrator.New(orchestrator.Deps{
		Leads:         a.Leads,
		Contexts:      a.Contexts,
		Resolver:      a.Resolver,
		Audit:         a.Audit,
		Model:         model,
		Executor:      executor,
		Events:        events,
		Observability: a.Observability,
		Logger:        a.log,
	}), nil
}

func (a *App) Sweeper() *sweeper.Sweeper {
	e := a.Config.Enrichment
	return sweeper.New(a.Leads, a.Audit, sweeper.Options{
		StaleAfter: time.Duration(e.StaleAuditThreshold) * time.Second,
		BatchSize:  e.SweepBatchSize,
	}, a.log)
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Postgres != nil {
		_ = a.Postgres.Close()
	}
}

// RetryWithBackoff runs operation up to maxRetries times, doubling the delay
// between attempts.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
