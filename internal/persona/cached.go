package persona

import "time"

// Cached is the projection of a Features record persisted in the
// structuring cache. The minimal projection drops provenance fields; the
// full projection keeps everything needed to rebuild the record verbatim.
type Cached struct {
	CoreIdentity  string `json:"core_identity"`
	Motivation    string `json:"motivation"`
	DecisionStyle string `json:"decision_style"`
	SocialStyle   string `json:"social_style"`

	StrengthTraits      []string `json:"strength_traits"`
	GrowthOpportunities []string `json:"growth_opportunities"`

	Fallback      bool   `json:"fallback"`
	SchemaVersion string `json:"schema_version"`

	// Populated only when the cache stores full records.
	Full             bool           `json:"full,omitempty"`
	Advanced         map[string]any `json:"advanced,omitempty"`
	IncompleteFields []string       `json:"incomplete_fields,omitempty"`
	GeneratedAt      time.Time      `json:"generated_at,omitempty"`
	RawSourceHash    string         `json:"raw_source_hash,omitempty"`
}

// Minimal returns the reduced projection used as the default cache value.
func (f *Features) Minimal() Cached {
	return Cached{
		CoreIdentity:        f.CoreIdentity,
		Motivation:          f.Motivation,
		DecisionStyle:       f.DecisionStyle,
		SocialStyle:         f.SocialStyle,
		StrengthTraits:      f.StrengthTraits,
		GrowthOpportunities: f.GrowthOpportunities,
		Fallback:            f.Fallback,
		SchemaVersion:       f.SchemaVersion,
	}
}

// Dump returns the full projection.
func (f *Features) Dump() Cached {
	c := f.Minimal()
	c.Full = true
	c.Advanced = f.Advanced
	c.IncompleteFields = f.IncompleteFields
	c.GeneratedAt = f.GeneratedAt
	c.RawSourceHash = f.RawSourceHash
	return c
}

// Restore rebuilds a Features record from a cached projection. Minimal
// projections come back as a fresh record tagged with the cached fallback
// flag; full projections restore provenance fields too.
func (c Cached) Restore(rawSymbols map[string]any) *Features {
	f := NewMinimal(
		c.CoreIdentity, c.Motivation, c.DecisionStyle, c.SocialStyle,
		c.StrengthTraits, c.GrowthOpportunities,
		rawSymbols, nil, c.Fallback,
	)
	if c.Full {
		f.Advanced = c.Advanced
		if f.Advanced == nil {
			f.Advanced = map[string]any{}
		}
		if c.IncompleteFields != nil {
			f.IncompleteFields = c.IncompleteFields
		}
		if c.RawSourceHash != "" {
			f.RawSourceHash = c.RawSourceHash
		}
	}
	return f
}
