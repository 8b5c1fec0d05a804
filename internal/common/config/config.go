package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Scraper       ScraperConfig           `mapstructure:"scraper"`
	Enrichment    EnrichmentConfig        `mapstructure:"enrichment"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	TenantID    string `mapstructure:"tenant_id"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	MessageTTL     int    `mapstructure:"message_ttl"`     // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig configures the optional audit mirror. An empty address
// list disables it.
type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether any Elasticsearch endpoint is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig configures the model adapter. Prices are USD per million tokens.
type GeminiConfig struct {
	APIKey                string  `mapstructure:"api_key"`
	Model                 string  `mapstructure:"model"`
	BaseURL               string  `mapstructure:"base_url"`
	Timeout               int     `mapstructure:"timeout"` // milliseconds, per model call
	MaxOutputTokens       int     `mapstructure:"max_output_tokens"`
	InputPricePerMillion  float64 `mapstructure:"input_price_per_million"`
	OutputPricePerMillion float64 `mapstructure:"output_price_per_million"`
	RequestsPerMinute     int     `mapstructure:"requests_per_minute"`
}

// ScraperConfig configures the locally executed tools.
type ScraperConfig struct {
	Timeout           int    `mapstructure:"timeout"` // milliseconds, per tool call
	UserAgent         string `mapstructure:"user_agent"`
	MaxBodyBytes      int64  `mapstructure:"max_body_bytes"`
	MaxTextChars      int    `mapstructure:"max_text_chars"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	ProfileProvider   struct {
		URL    string `mapstructure:"url"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"profile_provider"`
}

// EnrichmentConfig holds orchestration-level settings.
type EnrichmentConfig struct {
	ConfigCacheTTL      int    `mapstructure:"config_cache_ttl"`      // seconds
	LeadRetentionDays   int    `mapstructure:"lead_retention_days"`   // days
	StaleAuditThreshold int    `mapstructure:"stale_audit_threshold"` // seconds
	SweepSchedule       string `mapstructure:"sweep_schedule"`        // cron expression
	SweepBatchSize      int    `mapstructure:"sweep_batch_size"`
}

// NotificationConfig holds settings for run lifecycle events.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
		Region   string `mapstructure:"region"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}
