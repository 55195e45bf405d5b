package structuring

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bersona/internal/llm"
	"bersona/internal/llmclient"
)

type scriptedClient struct {
	mu    sync.Mutex
	calls int
	fn    func(prompt string) (string, error)
}

func (c *scriptedClient) Name() string { return "scripted" }
func (c *scriptedClient) Close() error { return nil }
func (c *scriptedClient) Complete(_ context.Context, prompt string, _ llmclient.CallOptions) (llmclient.CallResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	text, err := c.fn(prompt)
	if err != nil {
		return llmclient.CallResult{}, err
	}
	return llmclient.CallResult{Text: text, PromptTokens: 1, CompletionTokens: 1}, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestEngine(t *testing.T, client llmclient.Client, sink *strings.Builder) *Engine {
	t.Helper()
	if sink == nil {
		sink = &strings.Builder{}
	}
	logger := log.New(sink, "", 0)
	inv := llm.NewInvokerWithFactory(logger, func(context.Context, string) (llmclient.Client, error) {
		return client, nil
	})
	return NewEngine(NewCache(DefaultCacheConfig()), inv, logger)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Model = "scripted"
	opts.MaxRetries = 0
	return opts
}

const validRecordJSON = `{"core_identity":"curious analyst","motivation":"understanding systems","decision_style":"evidence first","social_style":"quietly engaged","strength_traits":["analysis","curiosity"],"growth_opportunities":["rest more"],"advanced":{}}`

func virgoSymbols() map[string]any {
	return map[string]any{"astrology_raw": map[string]any{"sun_sign": "Virgo"}}
}

func TestStructureEndToEndCacheHit(t *testing.T) {
	client := &scriptedClient{fn: func(string) (string, error) { return validRecordJSON, nil }}
	e := newTestEngine(t, client, nil)
	opts := testOptions()

	first := e.Structure(context.Background(), virgoSymbols(), opts)
	second := e.Structure(context.Background(), virgoSymbols(), opts)

	require.False(t, first.Fallback)
	assert.Equal(t, first.CoreIdentity, second.CoreIdentity)
	assert.Equal(t, 1, client.callCount())
	assert.True(t, e.Cache().Stats().Hits >= 1)

	snap := e.Snapshot()
	assert.Equal(t, uint64(2), snap.Pipeline.Calls)
	assert.Equal(t, uint64(1), snap.LLM.Calls)
}

func TestStructureParseFailureFallsBackUncached(t *testing.T) {
	client := &scriptedClient{fn: func(string) (string, error) { return "not json", nil }}
	e := newTestEngine(t, client, nil)
	opts := testOptions()

	rec := e.Structure(context.Background(), virgoSymbols(), opts)
	require.True(t, rec.Fallback)
	assert.NotEqual(t, "unknown", rec.CoreIdentity) // Virgo template applies

	// Parse-failure fallbacks are not cached: the next call hits the LLM again.
	e.Structure(context.Background(), virgoSymbols(), opts)
	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, uint64(2), e.Snapshot().Pipeline.ParseFail)
}

func TestStructureCallFailureFallbackIsCached(t *testing.T) {
	client := &scriptedClient{fn: func(string) (string, error) { return "", errors.New("backend down") }}
	e := newTestEngine(t, client, nil)
	opts := testOptions()

	first := e.Structure(context.Background(), virgoSymbols(), opts)
	require.True(t, first.Fallback)

	second := e.Structure(context.Background(), virgoSymbols(), opts)
	require.True(t, second.Fallback)
	assert.Equal(t, 1, client.callCount())
	assert.True(t, e.Cache().Stats().Hits >= 1)
}

func TestStructureNeverReturnsNil(t *testing.T) {
	client := &scriptedClient{fn: func(string) (string, error) { return "", errors.New("down") }}
	e := newTestEngine(t, client, nil)
	opts := testOptions()
	opts.UseCache = false

	rec := e.Structure(context.Background(), map[string]any{}, opts)
	require.NotNil(t, rec)
	assert.True(t, rec.Fallback)
	assert.Equal(t, "unknown", rec.DecisionStyle)
}

func TestBatchOrderPreservedWithDedupe(t *testing.T) {
	client := &scriptedClient{fn: func(prompt string) (string, error) {
		// Merged batch prompts embed the symbol list; answer per shape.
		if strings.Contains(prompt, "JSON array") {
			return "[" + validRecordJSON + "," + validRecordJSON + "]", nil
		}
		return validRecordJSON, nil
	}}
	e := newTestEngine(t, client, nil)

	a := virgoSymbols()
	b := map[string]any{"astrology_raw": map[string]any{"sun_sign": "Aries"}}
	opts := DefaultBatchOptions()
	opts.Model = "scripted"
	opts.MaxRetries = 0

	out := e.StructureBatch(context.Background(), []map[string]any{a, b, a}, opts)
	require.Len(t, out, 3)
	assert.Equal(t, out[0].CoreIdentity, out[2].CoreIdentity)
	assert.Equal(t, out[0].RawSourceHash, out[2].RawSourceHash)
	assert.Equal(t, 1, client.callCount()) // one merged call for two distinct items
}

func TestBatchMergedWithStubModel(t *testing.T) {
	logger := log.New(&strings.Builder{}, "", 0)
	inv := llm.NewInvoker(logger)
	e := NewEngine(NewCache(DefaultCacheConfig()), inv, logger)

	opts := DefaultBatchOptions() // default model routes to the stub
	opts.MaxRetries = 0

	items := []map[string]any{
		{"astrology_raw": map[string]any{"sun_sign": "Virgo"}},
		{"astrology_raw": map[string]any{"sun_sign": "Aries"}},
		{"astrology_raw": map[string]any{"sun_sign": "Leo"}},
	}
	out := e.StructureBatch(context.Background(), items, opts)
	require.Len(t, out, 3)
	for _, rec := range out {
		assert.False(t, rec.Fallback)
	}
	// The stub answers the rendered batch prompt with a length-matched
	// array, so three distinct items take a single merged call.
	assert.Equal(t, uint64(1), e.Snapshot().LLM.Calls)
}

func TestBatchNoDedupeSkipsCacheStore(t *testing.T) {
	client := &scriptedClient{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return "[" + validRecordJSON + "," + validRecordJSON + "]", nil
		}
		return validRecordJSON, nil
	}}
	e := newTestEngine(t, client, nil)

	opts := DefaultBatchOptions()
	opts.Model = "scripted"
	opts.MaxRetries = 0
	opts.Dedupe = false

	out := e.StructureBatch(context.Background(), []map[string]any{
		virgoSymbols(),
		{"astrology_raw": map[string]any{"sun_sign": "Leo"}},
	}, opts)
	require.Len(t, out, 2)
	assert.False(t, out[0].Fallback)
	assert.False(t, out[1].Fallback)
	// Per-index keys are unreachable from single-item lookups; nothing
	// should have been stored.
	assert.Equal(t, uint64(0), e.Cache().Stats().Sets)
}

func TestBatchMergedLengthMismatchRerunsSequentially(t *testing.T) {
	client := &scriptedClient{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return "[" + validRecordJSON + "]", nil // wrong length
		}
		return validRecordJSON, nil
	}}
	e := newTestEngine(t, client, nil)

	opts := DefaultBatchOptions()
	opts.Model = "scripted"
	opts.MaxRetries = 0

	out := e.StructureBatch(context.Background(), []map[string]any{
		virgoSymbols(),
		{"astrology_raw": map[string]any{"sun_sign": "Leo"}},
	}, opts)
	require.Len(t, out, 2)
	assert.False(t, out[0].Fallback)
	assert.False(t, out[1].Fallback)
	assert.Equal(t, 3, client.callCount()) // merged attempt + two sequential calls
}

func TestBatchMergedElementFailureIsIsolated(t *testing.T) {
	client := &scriptedClient{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return `[` + validRecordJSON + `, "not an object"]`, nil
		}
		return validRecordJSON, nil
	}}
	e := newTestEngine(t, client, nil)

	opts := DefaultBatchOptions()
	opts.Model = "scripted"
	opts.MaxRetries = 0

	out := e.StructureBatch(context.Background(), []map[string]any{
		virgoSymbols(),
		{"astrology_raw": map[string]any{"sun_sign": "Leo"}},
	}, opts)
	require.Len(t, out, 2)
	assert.False(t, out[0].Fallback)
	assert.True(t, out[1].Fallback)
	assert.Equal(t, 1, client.callCount())
}

func TestBatchParallel(t *testing.T) {
	client := &scriptedClient{fn: func(string) (string, error) { return validRecordJSON, nil }}
	e := newTestEngine(t, client, nil)

	opts := DefaultBatchOptions()
	opts.Model = "scripted"
	opts.MaxRetries = 0
	opts.Parallel = true
	opts.MaxWorkers = 2

	items := []map[string]any{
		{"astrology_raw": map[string]any{"sun_sign": "Virgo"}},
		{"astrology_raw": map[string]any{"sun_sign": "Aries"}},
		{"astrology_raw": map[string]any{"sun_sign": "Leo"}},
	}
	out := e.StructureBatch(context.Background(), items, opts)
	require.Len(t, out, 3)
	for _, rec := range out {
		assert.False(t, rec.Fallback)
		assert.Equal(t, "curious analyst", rec.CoreIdentity)
	}
}

func TestBatchEmpty(t *testing.T) {
	e := newTestEngine(t, &scriptedClient{fn: func(string) (string, error) { return validRecordJSON, nil }}, nil)
	out := e.StructureBatch(context.Background(), nil, DefaultBatchOptions())
	require.Len(t, out, 0)
}

func TestRedactionHidesRawValues(t *testing.T) {
	client := &scriptedClient{fn: func(string) (string, error) { return validRecordJSON, nil }}

	var redacted strings.Builder
	e := newTestEngine(t, client, &redacted)
	opts := testOptions()
	opts.UseCache = false
	e.Structure(context.Background(), virgoSymbols(), opts)
	assert.NotContains(t, redacted.String(), "Virgo")
	assert.Contains(t, redacted.String(), "sun_sign")

	var full strings.Builder
	e2 := newTestEngine(t, client, &full)
	opts.RedactInputs = false
	e2.Structure(context.Background(), virgoSymbols(), opts)
	assert.Contains(t, full.String(), "Virgo")
}
