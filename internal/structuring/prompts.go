package structuring

import (
	"encoding/json"
	"strings"

	"bersona/internal/llmclient"
)

// StructurePromptTemplate renders one symbol mapping into a strict
// JSON-only structuring instruction. The literal {raw_symbols_json} token
// is substituted with the serialized input.
const StructurePromptTemplate = `You are a rigorous translator of symbolic systems into modern psychological and behavioral trait language. Translate the raw symbol data below into a single structured persona feature JSON object. Output nothing except the JSON object itself: no prose, no Markdown, no code fences, no comments.

Field definitions (all required; if information is missing, give a reasonable generalization, never an empty string):
{
  "core_identity": "one concise phrase capturing the core inner disposition",
  "motivation": "the primary inner drive or value pursuit",
  "decision_style": "decision-making style (e.g. logical, analytical, intuitive, emotionally balanced, pragmatic)",
  "social_style": "social expression style (e.g. reserved, outgoing, steady, warm, observant)",
  "strength_traits": ["2-6 short strength keywords, no duplicates"],
  "growth_opportunities": ["1-4 concrete, actionable growth areas or blind spots"],
  "advanced": {"optional expansion of higher-order symbols": "use {} when none apply"}
}

Style requirements:
1. The JSON must be valid UTF-8 with no comments; field order is free.
2. Stay neutral, professional and compact; avoid hedging filler.
3. No psychological diagnoses and no fatalistic wording; describe behavior and tendency.
4. Never invent higher-order concepts that do not appear in the symbols.

Raw symbol data:
{raw_symbols_json}

If optional advanced symbols (such as ascendant_sign or moon_sign) are absent from the input, do not fabricate them.

Example (style reference only, do not copy):
INPUT_SYMBOLS={"astrology_raw": {"sun_sign": "Virgo"}}
OUTPUT_JSON={
  "core_identity": "detail-driven analysis and improvement focus",
  "motivation": "bringing order and value by solving concrete problems",
  "decision_style": "logic and evidence first",
  "social_style": "reserved and courteous",
  "strength_traits": ["analytical", "responsible", "improvement-minded"],
  "growth_opportunities": ["ease perfectionism", "build tolerance for error"],
  "advanced": {}
}

Now output the single JSON object:`

// BatchStructurePromptTemplate is the merged-call variant. The reply must
// be a JSON array whose length matches the input list, element i
// structuring input i. The {raw_symbols_batch_json} token is substituted
// with the serialized input list.
const BatchStructurePromptTemplate = `You are a rigorous translator of symbolic systems into modern psychological and behavioral trait language. Structure every element of the input list below. Reply with a JSON array where element i is the structured persona feature object for input i, following the single-object field definitions:
{
  "core_identity": "...",
  "motivation": "...",
  "decision_style": "...",
  "social_style": "...",
  "strength_traits": ["..."],
  "growth_opportunities": ["..."],
  "advanced": {}
}

The array length must equal the number of input elements. Output nothing except the JSON array.

` + llmclient.BatchListMarker + `
{raw_symbols_batch_json}

Now output the single JSON array:`

const (
	rawSymbolsToken      = "{raw_symbols_json}"
	rawSymbolsBatchToken = "{raw_symbols_batch_json}"
)

// RenderStructurePrompt substitutes the serialized symbols into the
// single-item template.
func RenderStructurePrompt(raw map[string]any) string {
	return strings.Replace(StructurePromptTemplate, rawSymbolsToken, marshalForPrompt(raw), 1)
}

// RenderBatchPrompt substitutes the serialized symbol list into the batch
// template.
func RenderBatchPrompt(raws []map[string]any) string {
	b, err := json.Marshal(raws)
	if err != nil {
		b = []byte("[]")
	}
	return strings.Replace(BatchStructurePromptTemplate, rawSymbolsBatchToken, string(b), 1)
}

func marshalForPrompt(raw map[string]any) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return "{}"
	}
	return string(b)
}
