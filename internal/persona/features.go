package persona

import (
	"strings"
	"time"
)

const (
	// SchemaVersion identifies the record layout for downstream consumers.
	SchemaVersion = "1.0.0"

	// MaxStrengths and MaxGrowthOpps bound the list fields after dedupe.
	MaxStrengths  = 8
	MaxGrowthOpps = 6
)

// Unknown is the substitute value for a core scalar that was missing or
// invalid in the source data.
const Unknown = "unknown"

// Features is the canonical structured persona record. Every production
// path (LLM success, parse-failure fallback, call-failure fallback) must
// converge to this shape with the same field guarantees: the four core
// scalars are never empty, the list fields are deduplicated and bounded.
// Instances are immutable by convention once returned.
type Features struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`

	CoreIdentity  string `json:"core_identity"`
	Motivation    string `json:"motivation"`
	DecisionStyle string `json:"decision_style"`
	SocialStyle   string `json:"social_style"`

	StrengthTraits      []string `json:"strength_traits"`
	GrowthOpportunities []string `json:"growth_opportunities"`

	Advanced map[string]any `json:"advanced"`

	Fallback         bool     `json:"fallback"`
	IncompleteFields []string `json:"incomplete_fields"`
	RawSourceHash    string   `json:"raw_source_hash,omitempty"`
}

// Params carries raw field values into New. Fields are normalized on
// construction; callers never mutate the resulting record.
type Params struct {
	CoreIdentity  string
	Motivation    string
	DecisionStyle string
	SocialStyle   string

	StrengthTraits      []string
	GrowthOpportunities []string

	Advanced map[string]any

	Fallback         bool
	IncompleteFields []string
	RawSourceHash    string
}

// New builds a normalized Features record: empty scalars become Unknown,
// list fields are trimmed, deduplicated (first-seen order) and truncated.
func New(p Params) *Features {
	adv := p.Advanced
	if adv == nil {
		adv = map[string]any{}
	}
	inc := p.IncompleteFields
	if inc == nil {
		inc = []string{}
	}
	return &Features{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   time.Now().UTC(),

		CoreIdentity:  scalarOrUnknown(p.CoreIdentity),
		Motivation:    scalarOrUnknown(p.Motivation),
		DecisionStyle: scalarOrUnknown(p.DecisionStyle),
		SocialStyle:   scalarOrUnknown(p.SocialStyle),

		StrengthTraits:      DedupeLimit(p.StrengthTraits, MaxStrengths),
		GrowthOpportunities: DedupeLimit(p.GrowthOpportunities, MaxGrowthOpps),

		Advanced:         adv,
		Fallback:         p.Fallback,
		IncompleteFields: inc,
		RawSourceHash:    p.RawSourceHash,
	}
}

// NewMinimal builds a record from the reduced field set used for fallback
// construction and cache reconstruction. The raw symbols are hashed for
// traceability; fallback defaults to the given flag.
func NewMinimal(core, motivation, decision, social string, strengths, growth []string, rawSymbols map[string]any, incomplete []string, fallback bool) *Features {
	return New(Params{
		CoreIdentity:        core,
		Motivation:          motivation,
		DecisionStyle:       decision,
		SocialStyle:         social,
		StrengthTraits:      strengths,
		GrowthOpportunities: growth,
		Fallback:            fallback,
		IncompleteFields:    incomplete,
		RawSourceHash:       DeriveKey(rawSymbols),
	})
}

func scalarOrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}

// DedupeLimit trims, drops empties and duplicates (case-sensitive,
// first-seen order) and truncates to limit.
func DedupeLimit(values []string, limit int) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Issues reports semantic problems without failing: all core scalars
// unknown, or a missing/thin strength list.
func (f *Features) Issues() []string {
	var issues []string
	unknownAll := f.CoreIdentity == Unknown &&
		f.Motivation == Unknown &&
		f.DecisionStyle == Unknown &&
		f.SocialStyle == Unknown
	if unknownAll {
		issues = append(issues, "all_core_scalars_unknown")
	}
	if len(f.StrengthTraits) == 0 {
		issues = append(issues, "empty_strength_traits")
	}
	if len(f.StrengthTraits) < 2 {
		issues = append(issues, "few_strength_traits")
	}
	return issues
}

// EmbeddingText joins the descriptive fields into a single block suitable
// for downstream embedding.
func (f *Features) EmbeddingText() string {
	return strings.Join([]string{
		f.CoreIdentity,
		f.Motivation,
		f.DecisionStyle,
		f.SocialStyle,
		strings.Join(f.StrengthTraits, ", "),
		strings.Join(f.GrowthOpportunities, ", "),
	}, " \n")
}
