package structuring

import (
	"errors"
	"testing"

	"bersona/internal/tester"
)

func TestParseWholeText(t *testing.T) {
	raw := `{"core_identity":"steady builder","motivation":"lasting results","decision_style":"pragmatic","social_style":"reserved","strength_traits":["patient","thorough"],"growth_opportunities":["delegate more"],"advanced":{"element":"earth"}}`
	cleaned, meta, err := ParseStructuredOutput(raw)
	tester.NoErr(t, err)
	tester.False(t, meta.Extracted)
	tester.Eq(t, cleaned.CoreIdentity, "steady builder")
	tester.Eq(t, cleaned.StrengthTraits, []string{"patient", "thorough"})
	tester.Eq(t, cleaned.Advanced["element"], any("earth"))
	tester.Len(t, meta.IncompleteFields, 0)
}

func TestParseExtractsFirstObject(t *testing.T) {
	raw := "Sure! Here is the JSON you asked for:\n" +
		`{"core_identity":"curious {nested} mind","motivation":"learning","decision_style":"quick","social_style":"chatty"}` +
		"\nHope that helps."
	cleaned, meta, err := ParseStructuredOutput(raw)
	tester.NoErr(t, err)
	tester.True(t, meta.Extracted)
	tester.Eq(t, cleaned.CoreIdentity, "curious {nested} mind")
	tester.Contains(t, meta.IncompleteFields, "strength_traits")
	tester.Contains(t, meta.IncompleteFields, "growth_opportunities")
}

func TestParseRejectsBlankAndMissingJSON(t *testing.T) {
	for _, raw := range []string{"", "   \n\t", "not json at all", "[1, 2, 3]"} {
		_, _, err := ParseStructuredOutput(raw)
		tester.True(t, errors.Is(err, ErrParse), raw)
	}
}

func TestParseDefaultsInvalidScalars(t *testing.T) {
	raw := `{"core_identity":42,"motivation":"","decision_style":"  ","strength_traits":["a"]}`
	cleaned, meta, err := ParseStructuredOutput(raw)
	tester.NoErr(t, err)
	tester.Eq(t, cleaned.CoreIdentity, "unknown")
	tester.Eq(t, cleaned.Motivation, "unknown")
	tester.Eq(t, cleaned.DecisionStyle, "unknown")
	tester.Eq(t, cleaned.SocialStyle, "unknown")
	tester.Contains(t, meta.IncompleteFields, "core_identity")
	tester.Contains(t, meta.IncompleteFields, "motivation")
	tester.Contains(t, meta.IncompleteFields, "decision_style")
	tester.Contains(t, meta.IncompleteFields, "social_style")
}

func TestParseNormalizesStrings(t *testing.T) {
	raw := "{\"core_identity\":\"\\u0001 bold　thinker \",\"motivation\":\"m\",\"decision_style\":\"d\",\"social_style\":\"s\"}"
	cleaned, _, err := ParseStructuredOutput(raw)
	tester.NoErr(t, err)
	tester.Eq(t, cleaned.CoreIdentity, "bold thinker")
}

func TestParseListCoercionAndTruncation(t *testing.T) {
	raw := `{"core_identity":"c","motivation":"m","decision_style":"d","social_style":"s",
		"strength_traits":["a","b","a","c","","d","e","f","g","h","i"],
		"growth_opportunities":"just one"}`
	cleaned, _, err := ParseStructuredOutput(raw)
	tester.NoErr(t, err)
	tester.Eq(t, cleaned.StrengthTraits, []string{"a", "b", "c", "d", "e", "f", "g", "h"})
	tester.Eq(t, cleaned.GrowthOpportunities, []string{"just one"})
}

func TestParseNumericListElements(t *testing.T) {
	raw := `{"core_identity":"c","motivation":"m","decision_style":"d","social_style":"s",
		"strength_traits":[1,true,{"no":"maps"}]}`
	cleaned, _, err := ParseStructuredOutput(raw)
	tester.NoErr(t, err)
	tester.Eq(t, cleaned.StrengthTraits, []string{"1", "true"})
}

func TestParseAdvancedDefaultsToEmptyMap(t *testing.T) {
	raw := `{"core_identity":"c","motivation":"m","decision_style":"d","social_style":"s","advanced":"nope"}`
	cleaned, _, err := ParseStructuredOutput(raw)
	tester.NoErr(t, err)
	tester.Eq(t, len(cleaned.Advanced), 0)
}

func TestExtractArray(t *testing.T) {
	arr, err := ExtractArray(`reply: [{"a":1},{"b":"x]y"}] done`)
	tester.NoErr(t, err)
	tester.Len(t, arr, 2)

	_, err = ExtractArray(`{"not":"an array"}`)
	tester.True(t, errors.Is(err, ErrParse))

	_, err = ExtractArray("")
	tester.True(t, errors.Is(err, ErrParse))
}

func TestExtractBalancedSkipsStringsAndEscapes(t *testing.T) {
	span, ok := extractBalanced(`x {"a":"br{ace \" here"} y {"b":2}`, '{', '}')
	tester.True(t, ok)
	tester.Eq(t, span, `{"a":"br{ace \" here"}`)

	_, ok = extractBalanced(`{"never":"closes"`, '{', '}')
	tester.False(t, ok)
}
