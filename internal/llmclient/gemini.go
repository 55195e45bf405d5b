package llmclient

import (
	"context"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client. The
// client reads GEMINI_API_KEY from the environment.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// Complete asks for application/json output and reports token usage from
// the response metadata when present.
func (g *GeminiClient) Complete(ctx context.Context, prompt string, opts CallOptions) (CallResult, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		cfg,
	)
	if err != nil {
		return CallResult{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return CallResult{}, ErrEmptyCompletion
	}
	res := CallResult{Text: resp.Candidates[0].Content.Parts[0].Text}
	if resp.UsageMetadata != nil {
		res.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	} else {
		res.PromptTokens = estimateTokens(prompt)
		res.CompletionTokens = estimateTokens(res.Text)
	}
	return res, nil
}
