package config

import "time"

// CacheConfig configures the fingerprint result cache.
type CacheConfig struct {
	// Enabled turns the cache off entirely when false; every lookup is a miss.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file backing the cache.
	Path string `yaml:"path"`

	// TTL is the lifetime of cached model completions. Execution outcomes
	// use half of it, matching their higher chance of staleness.
	TTL string `yaml:"ttl"`
}

// DefaultCacheConfig returns sensible defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: true,
		Path:    "data/analyst-cache.db",
		TTL:     "1h",
	}
}

// GetTTL returns the completion TTL as a duration.
func (c CacheConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, time.Hour)
}

// GetExecutionTTL returns the TTL for cached execution outcomes.
func (c CacheConfig) GetExecutionTTL() time.Duration {
	return c.GetTTL() / 2
}
