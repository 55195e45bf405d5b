package structuring

import (
	"testing"
	"time"

	"bersona/internal/persona"
	"bersona/internal/tester"
)

func sampleRecord() *persona.Features {
	return persona.New(persona.Params{
		CoreIdentity:        "quiet strategist",
		Motivation:          "long-term mastery",
		DecisionStyle:       "deliberate",
		SocialStyle:         "reserved",
		StrengthTraits:      []string{"focus", "planning"},
		GrowthOpportunities: []string{"share progress"},
		Advanced:            map[string]any{"element": "water"},
		RawSourceHash:       "abc123",
	})
}

func TestCacheMinimalProjectionRoundTrip(t *testing.T) {
	c := NewCache(DefaultCacheConfig())
	c.Set("k", sampleRecord())

	got, ok := c.Get("k")
	tester.True(t, ok)
	tester.Eq(t, got.CoreIdentity, "quiet strategist")
	tester.False(t, got.Full)
	tester.Eq(t, len(got.Advanced), 0)

	restored := got.Restore(map[string]any{"x": 1.0})
	tester.Eq(t, restored.CoreIdentity, "quiet strategist")
	tester.Eq(t, restored.StrengthTraits, []string{"focus", "planning"})
	tester.Eq(t, len(restored.Advanced), 0)
}

func TestCacheFullProjectionRoundTrip(t *testing.T) {
	cfg := DefaultCacheConfig()
	cfg.StoreFull = true
	c := NewCache(cfg)
	c.Set("k", sampleRecord())

	got, ok := c.Get("k")
	tester.True(t, ok)
	tester.True(t, got.Full)

	restored := got.Restore(nil)
	tester.Eq(t, restored.Advanced["element"], any("water"))
	tester.Eq(t, restored.RawSourceHash, "abc123")
}

func TestCacheDisabledNeverStoresOrCounts(t *testing.T) {
	cfg := DefaultCacheConfig()
	cfg.Enable = false
	c := NewCache(cfg)

	c.Set("k", sampleRecord())
	_, ok := c.Get("k")
	tester.False(t, ok)

	st := c.Stats()
	tester.False(t, st.Enabled)
	tester.Eq(t, st.Sets, uint64(0))
	tester.Eq(t, st.Misses, uint64(0))
}

func TestCacheConfigFromEnv(t *testing.T) {
	t.Setenv(EnvCacheDisable, "1")
	t.Setenv(EnvCacheMax, "32")
	t.Setenv(EnvCacheTTL, "120")

	cfg := CacheConfigFromEnv()
	tester.False(t, cfg.Enable)
	tester.Eq(t, cfg.MaxItems, 32)
	tester.Eq(t, cfg.DefaultTTL, 2*time.Minute)
}

func TestCacheConfigDefaults(t *testing.T) {
	cfg := DefaultCacheConfig()
	tester.Eq(t, cfg.MaxItems, 256)
	tester.Eq(t, cfg.DefaultTTL, time.Hour)
	tester.True(t, cfg.Enable)
	tester.False(t, cfg.StoreFull)
}
