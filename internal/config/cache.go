package config

import "time"

// CacheConfig defines settings for the response cache middleware. When
// Enabled is false or no Redis client is configured, caching is disabled.
// KeyStrategy decides which parts of the request contribute to the cache
// key; strategies containing "user" partition entries per viewer, which is
// required for any response that depends on who is asking.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
	Methods      []string      `env:"CACHE_METHODS" envDefault:"GET" envSeparator:","`
	TTL          time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" envDefault:"user_route_query"`
	Prefix       string        `env:"CACHE_PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`
}
