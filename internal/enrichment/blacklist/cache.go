package blacklist

import (
	"fmt"
	"sync"
	"time"

	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/models"
)

const maxCachedMatchers = 256

// Cache memoises compiled matchers per config version. It only saves
// compilation work; results are identical to calling Compile directly.
type Cache struct {
	mu       sync.Mutex
	matchers map[string]*Matcher
	logger   logger.Logger
}

func NewCache(log logger.Logger) *Cache {
	return &Cache{matchers: make(map[string]*Matcher), logger: log}
}

// Key identifies a config revision.
func Key(configID string, version int, updatedAt time.Time) string {
	return fmt.Sprintf("%s:%d:%d", configID, version, updatedAt.UnixNano())
}

func (c *Cache) Get(key string, items []models.BlacklistItem) *Matcher {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.matchers[key]; ok {
		return m
	}
	if len(c.matchers) >= maxCachedMatchers {
		c.matchers = make(map[string]*Matcher)
	}

	m := Compile(items, c.logger)
	c.matchers[key] = m
	return m
}
