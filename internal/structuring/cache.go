package structuring

import (
	"os"
	"strconv"
	"time"

	"bersona/internal/cache/memory"
	"bersona/internal/persona"
)

// Cache configuration knobs, all read at construction time.
const (
	EnvCacheDisable = "BERSONA_STRUCT_CACHE_DISABLE"
	EnvCacheMax     = "BERSONA_STRUCT_CACHE_MAX"
	EnvCacheTTL     = "BERSONA_STRUCT_CACHE_TTL"
)

type CacheConfig struct {
	MaxItems   int
	DefaultTTL time.Duration
	Enable     bool
	StoreFull  bool
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxItems:   256,
		DefaultTTL: time.Hour,
		Enable:     true,
		StoreFull:  false,
	}
}

// CacheConfigFromEnv applies the environment knobs on top of the defaults.
// TTL is given in seconds; <= 0 means entries never expire.
func CacheConfigFromEnv() CacheConfig {
	cfg := DefaultCacheConfig()
	switch os.Getenv(EnvCacheDisable) {
	case "1", "true", "yes":
		cfg.Enable = false
	}
	if v := os.Getenv(EnvCacheMax); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxItems = n
		}
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultTTL = time.Duration(n) * time.Second
		}
	}
	return cfg
}

// CacheStats extends the store counters with the wrapper configuration.
type CacheStats struct {
	memory.Stats
	Enabled    bool    `json:"enabled"`
	StoreFull  bool    `json:"store_full"`
	DefaultTTL float64 `json:"default_ttl_seconds"`
}

// Cache stores structured record projections keyed by derived symbol key.
// A disabled cache misses on every Get and ignores every Set without
// touching the store counters.
type Cache struct {
	cfg   CacheConfig
	store *memory.LRUTTL[string, persona.Cached]
}

func NewCache(cfg CacheConfig) *Cache {
	return &Cache{
		cfg:   cfg,
		store: memory.NewLRUTTL[string, persona.Cached](cfg.MaxItems, cfg.DefaultTTL),
	}
}

func (c *Cache) Get(key string) (persona.Cached, bool) {
	if !c.cfg.Enable {
		return persona.Cached{}, false
	}
	return c.store.Get(key)
}

// Set stores the record under key, projected per StoreFull.
func (c *Cache) Set(key string, f *persona.Features) {
	if !c.cfg.Enable {
		return
	}
	if c.cfg.StoreFull {
		c.store.Set(key, f.Dump())
		return
	}
	c.store.Set(key, f.Minimal())
}

func (c *Cache) Clear() {
	c.store.Clear()
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Stats:      c.store.Stats(),
		Enabled:    c.cfg.Enable,
		StoreFull:  c.cfg.StoreFull,
		DefaultTTL: c.cfg.DefaultTTL.Seconds(),
	}
}
