package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"bersona/internal/llmclient"
)

// FailsafeJSON is returned by GenerateJSON after total chain exhaustion
// when the caller did not ask for an error. It parses into a valid minimal
// record so downstream consumers never see raw failure text.
const FailsafeJSON = `{"core_identity":"fallback","motivation":"unknown","decision_style":"unknown","social_style":"unknown","strength_traits":["resilient"],"growth_opportunities":["refine details"],"advanced":{}}`

const (
	backoffBase   = 600 * time.Millisecond
	backoffJitter = 200 * time.Millisecond
	backoffCap    = 4 * time.Second

	retryTempStep = 0.2

	clientCacheSize = 16
)

// ClientError reports that every model in the chain was exhausted.
type ClientError struct {
	Chain   []string
	LastErr string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("all models exhausted (chain=%s): %s", strings.Join(e.Chain, ","), e.LastErr)
}

// CallStats captures per-call outcome details for the caller. On failure
// FinalModel is empty and ModelIndex is -1.
type CallStats struct {
	FinalModel       string `json:"final_model"`
	ModelIndex       int    `json:"model_index"`
	Attempts         int    `json:"attempts"`
	Retries          int    `json:"retries"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Err              string `json:"error,omitempty"`
}

// GenerateOptions control one GenerateJSON call.
type GenerateOptions struct {
	Model          string
	FallbackModels []string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
	RaiseOnFailure bool

	// Stats, when non-nil, receives call outcome details.
	Stats *CallStats
}

// ModelStats summarizes observed latency for one model.
type ModelStats struct {
	Calls int     `json:"calls"`
	AvgMS float64 `json:"avg_ms"`
}

// Snapshot is a read-only view of the invoker counters. Calls counts
// individual attempts, the same granularity as the per-model duration
// lists; success and fail count whole GenerateJSON outcomes.
type Snapshot struct {
	Calls               uint64                `json:"calls"`
	Success             uint64                `json:"success"`
	Fail                uint64                `json:"fail"`
	Retries             uint64                `json:"retries"`
	FallbackActivations uint64                `json:"fallback_activations"`
	Models              map[string]ModelStats `json:"models"`
}

// Factory builds a provider client for a model name.
type Factory func(ctx context.Context, model string) (llmclient.Client, error)

// Invoker runs prompts through an ordered model chain with per-model
// retries. Constructed provider clients are kept in a small LRU so repeat
// calls reuse connections.
type Invoker struct {
	factory Factory
	clients *lru.Cache[string, llmclient.Client]
	logger  *log.Logger

	sleep func(time.Duration)

	mu             sync.Mutex
	calls          uint64
	success        uint64
	fail           uint64
	retries        uint64
	fallbacks      uint64
	modelDurations map[string][]float64
}

func NewInvoker(logger *log.Logger) *Invoker {
	return NewInvokerWithFactory(logger, func(ctx context.Context, model string) (llmclient.Client, error) {
		return llmclient.New(ctx, model)
	})
}

func NewInvokerWithFactory(logger *log.Logger, factory Factory) *Invoker {
	if logger == nil {
		logger = log.Default()
	}
	cache, _ := lru.NewWithEvict(clientCacheSize, func(_ string, c llmclient.Client) {
		_ = c.Close()
	})
	return &Invoker{
		factory:        factory,
		clients:        cache,
		logger:         logger,
		sleep:          time.Sleep,
		modelDurations: make(map[string][]float64),
	}
}

// client returns the cached client for model, constructing it on demand.
// A failing constructor degrades to the stub client so the pipeline keeps
// producing records without credentials.
func (i *Invoker) client(ctx context.Context, model string) llmclient.Client {
	if c, ok := i.clients.Get(model); ok {
		return c
	}
	c, err := i.factory(ctx, model)
	if err != nil {
		i.logger.Printf("llm: client init failed for %q, degrading to stub: %v", model, err)
		c = llmclient.NewStubClient(model)
	}
	i.clients.Add(model, c)
	return c
}

// GenerateJSON runs prompt through the model chain. Each model gets
// MaxRetries+1 attempts; an error or blank completion counts as a failure.
// Exhausting the whole chain returns *ClientError when RaiseOnFailure is
// set, otherwise FailsafeJSON.
func (i *Invoker) GenerateJSON(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	chain := append([]string{opts.Model}, opts.FallbackModels...)
	attemptsPerModel := opts.MaxRetries + 1
	if attemptsPerModel < 1 {
		attemptsPerModel = 1
	}

	var (
		totalAttempts int
		totalRetries  int
		lastErr       = "no models attempted"
	)

	for mi, model := range chain {
		if mi > 0 {
			i.mu.Lock()
			i.fallbacks++
			i.mu.Unlock()
			i.logger.Printf("llm: falling back to model %q (index %d)", model, mi)
		}
		cli := i.client(ctx, model)

		for attempt := 1; attempt <= attemptsPerModel; attempt++ {
			if ctx.Err() != nil {
				lastErr = ctx.Err().Error()
				break
			}
			// Retries damp the sampling temperature by a fixed step for
			// more deterministic output.
			temp := opts.Temperature
			if attempt > 1 {
				totalRetries++
				i.mu.Lock()
				i.retries++
				i.mu.Unlock()
				temp = reduceTemp(opts.Temperature)
			}
			totalAttempts++
			i.mu.Lock()
			i.calls++
			i.mu.Unlock()

			res, dur, err := i.attempt(ctx, cli, prompt, llmclient.CallOptions{
				Temperature: temp,
				MaxTokens:   opts.MaxTokens,
				Timeout:     opts.Timeout,
			})
			i.recordDuration(model, dur)

			if err == nil && strings.TrimSpace(res.Text) != "" {
				i.mu.Lock()
				i.success++
				i.mu.Unlock()
				if opts.Stats != nil {
					*opts.Stats = CallStats{
						FinalModel:       model,
						ModelIndex:       mi,
						Attempts:         totalAttempts,
						Retries:          totalRetries,
						PromptTokens:     res.PromptTokens,
						CompletionTokens: res.CompletionTokens,
					}
				}
				return res.Text, nil
			}

			if err == nil {
				err = llmclient.ErrEmptyCompletion
			}
			lastErr = err.Error()
			i.logger.Printf("llm: model %q attempt %d/%d failed: %v", model, attempt, attemptsPerModel, err)

			var perm *llmclient.PermanentError
			if errors.As(err, &perm) {
				break
			}
			if attempt < attemptsPerModel {
				i.sleep(backoff(attempt))
			}
		}
	}

	i.mu.Lock()
	i.fail++
	i.mu.Unlock()
	if opts.Stats != nil {
		*opts.Stats = CallStats{
			FinalModel: "",
			ModelIndex: -1,
			Attempts:   totalAttempts,
			Retries:    totalRetries,
			Err:        lastErr,
		}
	}
	if opts.RaiseOnFailure {
		return "", &ClientError{Chain: chain, LastErr: lastErr}
	}
	return FailsafeJSON, nil
}

func (i *Invoker) attempt(ctx context.Context, cli llmclient.Client, prompt string, opts llmclient.CallOptions) (llmclient.CallResult, time.Duration, error) {
	cctx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := cli.Complete(cctx, prompt, opts)
	return res, time.Since(start), err
}

func (i *Invoker) recordDuration(model string, dur time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.modelDurations[model] = append(i.modelDurations[model], float64(dur.Milliseconds()))
}

// MetricsSnapshot returns a copy of the process-wide counters.
func (i *Invoker) MetricsSnapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	models := make(map[string]ModelStats, len(i.modelDurations))
	for model, durs := range i.modelDurations {
		var sum float64
		for _, d := range durs {
			sum += d
		}
		avg := 0.0
		if len(durs) > 0 {
			avg = sum / float64(len(durs))
		}
		models[model] = ModelStats{Calls: len(durs), AvgMS: avg}
	}
	return Snapshot{
		Calls:               i.calls,
		Success:             i.success,
		Fail:                i.fail,
		Retries:             i.retries,
		FallbackActivations: i.fallbacks,
		Models:              models,
	}
}

// Close releases every cached provider client.
func (i *Invoker) Close() {
	i.clients.Purge()
}

func reduceTemp(t float64) float64 {
	t -= retryTempStep
	if t < 0 {
		return 0
	}
	return t
}

// backoff computes the wait before retry n+1: base * 2^(n-1) plus random
// jitter, capped.
func backoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	d += time.Duration(rand.Int63n(int64(backoffJitter)))
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
