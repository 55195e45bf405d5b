package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultChatCompletionsURL = "https://api.groq.com/openai/v1/chat/completions"

// OpenAICompatClient calls an OpenAI-compatible Chat Completions endpoint
// (Groq by default) and asks for a JSON object response.
type OpenAICompatClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAICompatClient creates a client for model. If apiKey is empty, it
// falls back to the GROQ_API_KEY env var; OPENAI_COMPAT_BASE_URL overrides
// the endpoint.
func NewOpenAICompatClient(apiKey, model string) (*OpenAICompatClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	baseURL := os.Getenv("OPENAI_COMPAT_BASE_URL")
	if baseURL == "" {
		baseURL = defaultChatCompletionsURL
	}
	return &OpenAICompatClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}, nil
}

func (c *OpenAICompatClient) Name() string { return "OpenAICompat:" + c.model }
func (c *OpenAICompatClient) Close() error { return nil }

type chatReq struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAICompatClient) Complete(ctx context.Context, prompt string, opts CallOptions) (CallResult, error) {
	reqBody := chatReq{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return CallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return CallResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(body) > max {
			body = body[:max]
		}
		err := fmt.Errorf("chat completions: unexpected status %s: %s", resp.Status, string(body))
		if resp.StatusCode == 400 && strings.Contains(string(body), `"code":"context_length_exceeded"`) {
			return CallResult{}, NewPermanentError(err)
		}
		return CallResult{}, err
	}
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CallResult{}, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return CallResult{}, ErrEmptyCompletion
	}
	return CallResult{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}
