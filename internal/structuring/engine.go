package structuring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"bersona/internal/llm"
	"bersona/internal/persona"
)

// maxBatchWorkers bounds the parallel batch pool regardless of what the
// caller requests.
const maxBatchWorkers = 8

// Options control one Structure call.
type Options struct {
	Model          string
	FallbackModels []string
	UseCache       bool
	MaxRetries     int
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	RedactInputs   bool
}

func DefaultOptions() Options {
	return Options{
		Model:        "stub-1",
		UseCache:     true,
		MaxRetries:   2,
		Temperature:  0.3,
		Timeout:      40 * time.Second,
		RedactInputs: true,
	}
}

// BatchOptions extend Options for StructureBatch.
type BatchOptions struct {
	Options
	Parallel   bool
	MaxWorkers int
	Dedupe     bool
}

func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		Options:    DefaultOptions(),
		MaxWorkers: 4,
		Dedupe:     true,
	}
}

// Engine composes the cache, the LLM invocation layer, the parser and the
// fallback generator into the structuring pipeline. Structure and
// StructureBatch never fail: every degraded path substitutes a fallback
// record and reports it through the record's fallback flag.
type Engine struct {
	cache   *Cache
	inv     *llm.Invoker
	metrics *PipelineMetrics
	logger  *log.Logger
}

func NewEngine(cache *Cache, inv *llm.Invoker, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cache:   cache,
		inv:     inv,
		metrics: NewPipelineMetrics(),
		logger:  logger,
	}
}

func (e *Engine) Cache() *Cache { return e.cache }

// Structure runs one symbol mapping through the pipeline.
func (e *Engine) Structure(ctx context.Context, raw map[string]any, opts Options) *persona.Features {
	start := time.Now()
	key := persona.DeriveKey(raw)

	if opts.UseCache {
		if cached, ok := e.cache.Get(key); ok {
			rec := cached.Restore(raw)
			e.logSummary(key, raw, rec, true, opts.RedactInputs)
			e.metrics.Record(time.Since(start), true, rec.Fallback, false)
			return rec
		}
	}

	prompt := RenderStructurePrompt(raw)
	var stats llm.CallStats
	text, err := e.inv.GenerateJSON(ctx, prompt, llm.GenerateOptions{
		Model:          opts.Model,
		FallbackModels: opts.FallbackModels,
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		Timeout:        opts.Timeout,
		MaxRetries:     opts.MaxRetries,
		RaiseOnFailure: true,
		Stats:          &stats,
	})
	if err != nil {
		// A hard call failure is assumed stable for the TTL window,
		// so this fallback is cached; a parse failure below is not.
		e.logger.Printf("structuring: llm chain failed for key=%s: %v", key, err)
		rec := BuildFallback(raw)
		if opts.UseCache {
			e.cache.Set(key, rec)
		}
		e.logSummary(key, raw, rec, false, opts.RedactInputs)
		e.metrics.Record(time.Since(start), true, true, false)
		return rec
	}

	var rec *persona.Features
	parseFail := false
	cleaned, meta, perr := ParseStructuredOutput(text)
	if perr != nil {
		e.logger.Printf("structuring: parse failed for key=%s: %v", key, perr)
		rec = BuildFallback(raw)
		parseFail = true
	} else {
		rec = buildRecord(cleaned, meta.IncompleteFields, key)
	}

	if opts.UseCache && !rec.Fallback {
		e.cache.Set(key, rec)
	}
	e.logSummary(key, raw, rec, false, opts.RedactInputs)
	e.metrics.Record(time.Since(start), true, rec.Fallback, parseFail)
	return rec
}

// StructureBatch structures every item, preserving input order and length.
// Identical symbol sets are processed once when Dedupe is set. With more
// than one distinct item the non-parallel path first attempts a single
// merged call; any anomaly there discards partial work and reruns the
// per-item path.
func (e *Engine) StructureBatch(ctx context.Context, items []map[string]any, opts BatchOptions) []*persona.Features {
	if len(items) == 0 {
		return []*persona.Features{}
	}

	keys := make([]string, len(items))
	var order []string
	distinct := make(map[string]map[string]any)
	for i, raw := range items {
		k := persona.DeriveKey(raw)
		if !opts.Dedupe {
			k = fmt.Sprintf("%d:%s", i, k)
		}
		keys[i] = k
		if _, seen := distinct[k]; !seen {
			distinct[k] = raw
			order = append(order, k)
		}
	}
	raws := make([]map[string]any, len(order))
	for i, k := range order {
		raws[i] = distinct[k]
	}

	var byKey map[string]*persona.Features
	switch {
	case opts.Parallel && len(order) > 1:
		byKey = e.structureParallel(ctx, order, raws, opts)
	case len(order) > 1:
		var ok bool
		byKey, ok = e.structureMerged(ctx, order, raws, opts)
		if !ok {
			byKey = e.structureSequential(ctx, order, raws, opts.Options)
		}
	default:
		byKey = e.structureSequential(ctx, order, raws, opts.Options)
	}

	out := make([]*persona.Features, len(items))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// structureMerged attempts one batch-prompt call covering every distinct
// item. It reports ok=false on any call, parse or shape anomaly so the
// caller can rerun per item; a per-element construction problem only
// degrades that element to a fallback record.
func (e *Engine) structureMerged(ctx context.Context, keys []string, raws []map[string]any, opts BatchOptions) (result map[string]*persona.Features, ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("structuring: merged batch path panicked, rerunning per item: %v", r)
			result, ok = nil, false
		}
	}()

	prompt := RenderBatchPrompt(raws)
	var stats llm.CallStats
	text, err := e.inv.GenerateJSON(ctx, prompt, llm.GenerateOptions{
		Model:          opts.Model,
		FallbackModels: opts.FallbackModels,
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		Timeout:        opts.Timeout,
		MaxRetries:     opts.MaxRetries,
		RaiseOnFailure: true,
		Stats:          &stats,
	})
	if err != nil {
		e.logger.Printf("structuring: merged batch call failed: %v", err)
		return nil, false
	}
	elems, err := ExtractArray(text)
	if err != nil {
		e.logger.Printf("structuring: merged batch parse failed: %v", err)
		return nil, false
	}
	if len(elems) != len(raws) {
		e.logger.Printf("structuring: merged batch length mismatch: got %d want %d", len(elems), len(raws))
		return nil, false
	}

	perItem := time.Since(start) / time.Duration(len(raws))
	result = make(map[string]*persona.Features, len(raws))
	for i, elem := range elems {
		var rec *persona.Features
		if obj, isObj := elem.(map[string]any); isObj {
			cleaned, incomplete := CleanFields(obj)
			rec = buildRecord(cleaned, incomplete, persona.DeriveKey(raws[i]))
		} else {
			rec = BuildFallback(raws[i])
		}
		// Without dedupe the group keys carry an index prefix that no
		// single-item lookup derives, so storing them would only burn
		// capacity.
		if opts.UseCache && opts.Dedupe && !rec.Fallback {
			e.cache.Set(keys[i], rec)
		}
		e.logSummary(keys[i], raws[i], rec, false, opts.RedactInputs)
		e.metrics.Record(perItem, true, rec.Fallback, false)
		result[keys[i]] = rec
	}
	return result, true
}

func (e *Engine) structureParallel(ctx context.Context, keys []string, raws []map[string]any, opts BatchOptions) map[string]*persona.Features {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(keys) {
		workers = len(keys)
	}
	if workers > maxBatchWorkers {
		workers = maxBatchWorkers
	}

	recs := make([]*persona.Features, len(keys))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				recs[i] = e.safeStructure(ctx, raws[i], opts.Options)
			}
		}()
	}
	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make(map[string]*persona.Features, len(keys))
	for i, k := range keys {
		out[k] = recs[i]
	}
	return out
}

func (e *Engine) structureSequential(ctx context.Context, keys []string, raws []map[string]any, opts Options) map[string]*persona.Features {
	out := make(map[string]*persona.Features, len(keys))
	for i, k := range keys {
		out[k] = e.safeStructure(ctx, raws[i], opts)
	}
	return out
}

// safeStructure isolates a single-item failure to that item.
func (e *Engine) safeStructure(ctx context.Context, raw map[string]any, opts Options) (rec *persona.Features) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("structuring: item pipeline panicked, substituting fallback: %v", r)
			rec = BuildFallback(raw)
		}
	}()
	return e.Structure(ctx, raw, opts)
}

// MetricsSnapshot is the unified observability view across the pipeline,
// the cache and the LLM layer.
type MetricsSnapshot struct {
	Pipeline  PipelineSnapshot `json:"pipeline"`
	Cache     CacheStats       `json:"cache"`
	LLM       llm.Snapshot     `json:"llm"`
	Timestamp time.Time        `json:"timestamp"`
}

func (e *Engine) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Pipeline:  e.metrics.Snapshot(),
		Cache:     e.cache.Stats(),
		LLM:       e.inv.MetricsSnapshot(),
		Timestamp: time.Now().UTC(),
	}
}

func buildRecord(c Cleaned, incomplete []string, key string) *persona.Features {
	return persona.New(persona.Params{
		CoreIdentity:        c.CoreIdentity,
		Motivation:          c.Motivation,
		DecisionStyle:       c.DecisionStyle,
		SocialStyle:         c.SocialStyle,
		StrengthTraits:      c.StrengthTraits,
		GrowthOpportunities: c.GrowthOpportunities,
		Advanced:            c.Advanced,
		IncompleteFields:    incomplete,
		RawSourceHash:       key,
	})
}

// logSummary emits one line per structured record. With redaction only the
// sorted key names of each symbol group appear; raw values never do.
func (e *Engine) logSummary(key string, raw map[string]any, rec *persona.Features, cacheHit, redact bool) {
	var symbols string
	if redact {
		symbols = redactSymbols(raw)
	} else if b, err := json.Marshal(raw); err == nil {
		symbols = string(b)
	} else {
		symbols = "<unserializable>"
	}
	e.logger.Printf("structuring: key=%s cache_hit=%v fallback=%v incomplete=%d symbols=%s",
		key, cacheHit, rec.Fallback, len(rec.IncompleteFields), symbols)
}

func redactSymbols(raw map[string]any) string {
	groups := make([]string, 0, len(raw))
	for name := range raw {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range groups {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)
		if nested, ok := raw[name].(map[string]any); ok {
			inner := make([]string, 0, len(nested))
			for k := range nested {
				inner = append(inner, k)
			}
			sort.Strings(inner)
			b.WriteString("=[" + strings.Join(inner, ",") + "]")
		} else {
			b.WriteString("=<val>")
		}
	}
	b.WriteByte('}')
	return b.String()
}
