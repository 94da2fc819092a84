package config

import (
	"strings"
	"time"
)

// CacheConfig tunes the Redis snapshot cache in front of the layout route.
// Entries live for TTL only; clients get live changes from the room, so a
// stale snapshot is corrected by the next broadcast.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool // upper-cased HTTP methods
	TTL          time.Duration
	KeyStrategy  string // "path" or "path_query"
	Prefix       string
	MaxBodyBytes int // larger responses are served but not stored
}

// LoadCacheConfig reads the LAYOUT_CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	methods := map[string]bool{}
	for _, m := range splitList(envStr("LAYOUT_CACHE_METHODS", "GET")) {
		methods[strings.ToUpper(m)] = true
	}
	strategy := strings.ToLower(envStr("LAYOUT_CACHE_KEY_STRATEGY", "path_query"))
	if strategy != "path" {
		strategy = "path_query"
	}
	return CacheConfig{
		Enabled:      envBool("LAYOUT_CACHE_ENABLED", true),
		Methods:      methods,
		TTL:          envDur("LAYOUT_CACHE_TTL", 5*time.Second),
		KeyStrategy:  strategy,
		Prefix:       envStr("LAYOUT_CACHE_PREFIX", "layout"),
		MaxBodyBytes: envInt("LAYOUT_CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
