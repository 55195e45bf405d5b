package llmclient

import (
	"context"
	"strings"
)

// BatchListMarker precedes the serialized symbol list in merged batch
// prompts. The batch template embeds it so the stub can find the list and
// answer with a length-matched array; keep the two in sync through this
// constant.
const BatchListMarker = "Raw symbol data list:"

const stubRecord = `{
  "core_identity": "a steady, observant individual who values consistency",
  "motivation": "building reliable foundations for the people around them",
  "decision_style": "deliberate and evidence-driven",
  "social_style": "reserved but loyal in close circles",
  "strength_traits": ["patient", "methodical", "dependable"],
  "growth_opportunities": ["embracing spontaneity", "voicing needs earlier"],
  "advanced": {"element_balance": "earth-dominant"}
}`

// StubClient returns a fixed, well-formed persona payload. It exists so
// the pipeline can run end to end without credentials; any model name
// starting with "stub" resolves to it.
type StubClient struct {
	model string
}

func NewStubClient(model string) *StubClient {
	return &StubClient{model: model}
}

func (s *StubClient) Name() string { return "Stub:" + s.model }
func (s *StubClient) Close() error { return nil }

// Complete answers with the fixed record. When the prompt carries a
// BatchListMarker-tagged JSON array of symbol sets, the reply is an array
// with one record per element so merged batch calls see a length-matched
// response.
func (s *StubClient) Complete(ctx context.Context, prompt string, opts CallOptions) (CallResult, error) {
	if err := ctx.Err(); err != nil {
		return CallResult{}, err
	}
	text := stubRecord
	if n := batchPromptLen(prompt); n > 1 {
		records := make([]string, n)
		for i := range records {
			records[i] = stubRecord
		}
		text = "[" + strings.Join(records, ",\n") + "]"
	}
	return CallResult{
		Text:             text,
		PromptTokens:     estimateTokens(prompt),
		CompletionTokens: estimateTokens(text),
	}, nil
}

// batchPromptLen counts the symbol sets of a merged batch prompt: the
// first balanced JSON array after BatchListMarker. Prompts without the
// marker are treated as single-item; a bare "[" elsewhere (such as a list
// skeleton in the field definitions) must not trigger the array reply.
func batchPromptLen(prompt string) int {
	i := strings.LastIndex(prompt, BatchListMarker)
	if i < 0 {
		return 0
	}
	return arrayLen(prompt[i+len(BatchListMarker):])
}

// arrayLen counts the top-level elements of the first balanced JSON array
// in s, or 0 when there is none.
func arrayLen(s string) int {
	start := strings.Index(s, "[")
	if start < 0 {
		return 0
	}
	depth := 0
	elems := 0
	inString := false
	escaped := false
	sawValue := false
	for _, r := range s[start:] {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
			if depth == 1 {
				sawValue = true
			}
		case '[', '{':
			depth++
			if depth == 2 && r == '{' {
				sawValue = true
			}
		case ']', '}':
			depth--
			if depth == 0 {
				if sawValue {
					elems++
				}
				return elems
			}
		case ',':
			if depth == 1 {
				elems++
				sawValue = false
			}
		default:
			if depth == 1 && !isSpaceRune(r) {
				sawValue = true
			}
		}
	}
	return 0
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
