// internal/workers/planning/generate-plan/config.go
package generateplan

import "time"

type Config struct {
	// Model is part of the cache key so switching models never serves stale plans.
	Model       string
	CacheTTL    time.Duration
	CachePrefix string
}

func LoadConfig() *Config {
	return &Config{
		CacheTTL:    10 * time.Minute,
		CachePrefix: "csvchat:plan:",
	}
}
