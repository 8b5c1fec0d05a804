package enrichlead

import (
	"time"

	"lead-enricher/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig derives the handler timeout from the worker's job timeout,
// leaving a margin to report the outcome before the job lock expires.
func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if margin := timeout / 10; margin > 0 {
		timeout -= margin
	}
	return &Config{Timeout: timeout}
}
