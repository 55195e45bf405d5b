package llmclient

import (
	"context"
	"strings"
)

// Kind is the closed set of supported providers. Routing is by model name
// prefix; anything unrecognized goes to the OpenAI-compatible backend.
type Kind int

const (
	KindStub Kind = iota
	KindGemini
	KindOpenAICompat
)

func (k Kind) String() string {
	switch k {
	case KindStub:
		return "stub"
	case KindGemini:
		return "gemini"
	case KindOpenAICompat:
		return "openai-compat"
	}
	return "unknown"
}

// StubModelPrefix routes a model name to the deterministic stub client.
const StubModelPrefix = "stub"

// KindForModel maps a model name to its provider kind.
func KindForModel(model string) Kind {
	switch {
	case strings.HasPrefix(model, StubModelPrefix):
		return KindStub
	case strings.HasPrefix(model, "gemini"):
		return KindGemini
	default:
		return KindOpenAICompat
	}
}

// New constructs a client for the given model, dispatching on its kind.
// API keys are read from the environment by the provider constructors.
func New(ctx context.Context, model string) (Client, error) {
	switch KindForModel(model) {
	case KindStub:
		return NewStubClient(model), nil
	case KindGemini:
		return NewGeminiClient(ctx, model)
	default:
		return NewOpenAICompatClient("", model)
	}
}
