package llmclient

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyCompletion reports a transport-level success that carried no text.
// The invocation layer treats it the same as a call error.
var ErrEmptyCompletion = errors.New("empty completion from model")

// PermanentError marks an error that will not resolve with retries. The
// invocation layer skips the remaining attempts for the model and moves on
// to the next one in the chain.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// CallOptions are the per-call generation knobs. Zero values mean provider
// defaults; Timeout is enforced by the caller through ctx.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// CallResult is the raw outcome of a single completion call.
type CallResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client is a thin wrapper around one provider/model pair. It only focuses
// on the API call itself; retries, fallback chains and accounting live in
// the invocation layer.
type Client interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts CallOptions) (CallResult, error)
	Close() error
}

// estimateTokens is the rough chars/4 heuristic used when a provider does
// not report usage.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
