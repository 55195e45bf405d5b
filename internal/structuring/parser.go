package structuring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bersona/internal/persona"
)

// ErrParse is the distinguished parse failure: blank input, no JSON object
// located in the text, or a non-object top level. Callers match it with
// errors.Is.
var ErrParse = errors.New("unparseable model output")

// Cleaned holds the normalized field values extracted from model output.
type Cleaned struct {
	CoreIdentity  string
	Motivation    string
	DecisionStyle string
	SocialStyle   string

	StrengthTraits      []string
	GrowthOpportunities []string

	Advanced map[string]any
}

// Meta describes how the parse went: which fields were defaulted, how long
// the raw text was, and whether brace extraction was needed.
type Meta struct {
	IncompleteFields []string
	RawLength        int
	Extracted        bool
}

// ParseStructuredOutput locates a JSON object in raw model text and
// normalizes its fields. The whole text is tried first; on failure the
// first balanced brace-delimited object is extracted and parsed.
func ParseStructuredOutput(raw string) (Cleaned, Meta, error) {
	meta := Meta{RawLength: len(raw)}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cleaned{}, meta, fmt.Errorf("%w: blank output", ErrParse)
	}

	var top any
	if err := json.Unmarshal([]byte(trimmed), &top); err == nil {
		obj, ok := top.(map[string]any)
		if !ok {
			return Cleaned{}, meta, fmt.Errorf("%w: top-level value is not an object", ErrParse)
		}
		cleaned, inc := CleanFields(obj)
		meta.IncompleteFields = inc
		return cleaned, meta, nil
	}

	span, ok := extractBalanced(trimmed, '{', '}')
	if !ok {
		return Cleaned{}, meta, fmt.Errorf("%w: no JSON object found", ErrParse)
	}
	meta.Extracted = true
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return Cleaned{}, meta, fmt.Errorf("%w: extracted span is invalid: %v", ErrParse, err)
	}
	cleaned, inc := CleanFields(obj)
	meta.IncompleteFields = inc
	return cleaned, meta, nil
}

// ExtractArray locates a JSON array in raw model text and returns its
// top-level elements, for merged batch replies.
func ExtractArray(raw string) ([]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: blank output", ErrParse)
	}
	var top any
	if err := json.Unmarshal([]byte(trimmed), &top); err == nil {
		if arr, ok := top.([]any); ok {
			return arr, nil
		}
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrParse)
	}
	span, ok := extractBalanced(trimmed, '[', ']')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array found", ErrParse)
	}
	var arr []any
	if err := json.Unmarshal([]byte(span), &arr); err != nil {
		return nil, fmt.Errorf("%w: extracted span is invalid: %v", ErrParse, err)
	}
	return arr, nil
}

// CleanFields normalizes a parsed object into the schema field shape.
// Missing or invalid scalars become "unknown" and are reported as
// incomplete; list fields are coerced, cleaned, deduplicated and bounded.
func CleanFields(obj map[string]any) (Cleaned, []string) {
	var incomplete []string

	scalar := func(field string) string {
		v, ok := obj[field]
		if !ok {
			incomplete = append(incomplete, field)
			return persona.Unknown
		}
		s, ok := v.(string)
		if !ok {
			incomplete = append(incomplete, field)
			return persona.Unknown
		}
		c := persona.CleanString(s)
		if c == "" {
			incomplete = append(incomplete, field)
			return persona.Unknown
		}
		return c
	}

	list := func(field string, limit int) []string {
		items := coerceList(obj[field])
		out := make([]string, 0, len(items))
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			s, ok := stringify(item)
			if !ok {
				continue
			}
			s = persona.CleanString(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
			if len(out) >= limit {
				break
			}
		}
		if len(out) == 0 {
			incomplete = append(incomplete, field)
		}
		return out
	}

	cleaned := Cleaned{
		CoreIdentity:        scalar("core_identity"),
		Motivation:          scalar("motivation"),
		DecisionStyle:       scalar("decision_style"),
		SocialStyle:         scalar("social_style"),
		StrengthTraits:      list("strength_traits", persona.MaxStrengths),
		GrowthOpportunities: list("growth_opportunities", persona.MaxGrowthOpps),
	}
	if adv, ok := obj["advanced"].(map[string]any); ok {
		cleaned.Advanced = adv
	} else {
		cleaned.Advanced = map[string]any{}
	}
	return cleaned, incomplete
}

func coerceList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{v}
	}
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64, bool:
		return fmt.Sprintf("%v", t), true
	default:
		return "", false
	}
}

// extractBalanced returns the first balanced open..close span, skipping
// over string literals and escapes.
func extractBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
