package structuring

import (
	"bersona/internal/persona"
)

// fallbackTemplate is one heuristic persona sketch. Wording stays neutral
// and behavioral; no fatalistic phrasing.
type fallbackTemplate struct {
	core       string
	motivation string
	decision   string
	social     string
	strengths  []string
	growth     []string
}

// sunSignTemplates covers the twelve zodiac signs, matched case-sensitively
// against astrology_raw.sun_sign.
var sunSignTemplates = map[string]fallbackTemplate{
	"Aries": {
		core:       "action-driven and experiment-oriented",
		motivation: "starting new things and making fast progress",
		decision:   "direct and quick",
		social:     "outgoing and candid",
		strengths:  []string{"courage", "execution", "trailblazing"},
		growth:     []string{"cultivating patience"},
	},
	"Taurus": {
		core:       "steady persistence and value accumulation",
		motivation: "building sustainable, tangible results",
		decision:   "grounded and pragmatic",
		social:     "gentle and restrained",
		strengths:  []string{"endurance", "reliability", "eye for detail"},
		growth:     []string{"allowing more flexibility"},
	},
	"Gemini": {
		core:       "information exchange and wide curiosity",
		motivation: "gathering and sharing fresh information",
		decision:   "rapid comparison",
		social:     "quick-witted and conversational",
		strengths:  []string{"adaptability", "communication", "multiple angles"},
		growth:     []string{"deepening focus"},
	},
	"Cancer": {
		core:       "emotional sensitivity and protective instinct",
		motivation: "building safety and belonging",
		decision:   "context-aware",
		social:     "considerate and understated",
		strengths:  []string{"care", "memory", "intuition"},
		growth:     []string{"clearer boundaries"},
	},
	"Leo": {
		core:       "expressive drive and self-presentation",
		motivation: "earning recognition and influence",
		decision:   "confident and intuitive",
		social:     "warm and expansive",
		strengths:  []string{"leadership", "inspiration", "confidence"},
		growth:     []string{"listening more"},
	},
	"Virgo": {
		core:       "detail-driven analysis and improvement focus",
		motivation: "raising value through optimization",
		decision:   "logical decomposition",
		social:     "reserved and careful",
		strengths:  []string{"analysis", "responsibility", "improvement"},
		growth:     []string{"easing perfectionism"},
	},
	"Libra": {
		core:       "balance, coordination and aesthetic sense",
		motivation: "fostering cooperation and harmony",
		decision:   "weighing every side",
		social:     "diplomatic and friendly",
		strengths:  []string{"coordination", "relational sense", "aesthetics"},
		growth:     []string{"practicing decisiveness"},
	},
	"Scorpio": {
		core:       "deep insight and focused resilience",
		motivation: "probing the core and controlling variables",
		decision:   "quiet analysis",
		social:     "watchful and contained",
		strengths:  []string{"insight", "focus", "resilience"},
		growth:     []string{"releasing tension"},
	},
	"Sagittarius": {
		core:       "exploration and the pursuit of meaning",
		motivation: "widening horizons and abstract understanding",
		decision:   "big-picture intuition",
		social:     "open and optimistic",
		strengths:  []string{"vision", "learning", "optimism"},
		growth:     []string{"following through on detail"},
	},
	"Capricorn": {
		core:       "structured goals and disciplined climbing",
		motivation: "achieving long-term accomplishment",
		decision:   "strategic planning",
		social:     "composed and steady",
		strengths:  []string{"sustained execution", "planning", "responsibility"},
		growth:     []string{"adjusting flexibly"},
	},
	"Aquarius": {
		core:       "independent thinking and systemic innovation",
		motivation: "introducing new models and improvements",
		decision:   "abstract evaluation",
		social:     "rational with distance",
		strengths:  []string{"innovation", "systems sense", "objectivity"},
		growth:     []string{"emotional connection"},
	},
	"Pisces": {
		core:       "empathetic blending and flowing imagination",
		motivation: "emotional resonance and creative expression",
		decision:   "intuitive feel",
		social:     "soft and inclusive",
		strengths:  []string{"empathy", "imagination", "adaptability"},
		growth:     []string{"clearer boundaries"},
	},
}

// dayMasterTemplates covers the ten heavenly stems, matched case-sensitively
// against bazi_raw.day_master.
var dayMasterTemplates = map[string]fallbackTemplate{
	"Jia": {
		core:       "upright growth and steady expansion",
		motivation: "advancing along a principled path",
		decision:   "forthright and forward-looking",
		social:     "dependable and direct",
		strengths:  []string{"integrity", "initiative", "persistence"},
		growth:     []string{"bending without breaking"},
	},
	"Yi": {
		core:       "flexible growth and quiet adaptation",
		motivation: "finding room to flourish in any setting",
		decision:   "gentle and adaptive",
		social:     "tactful and accommodating",
		strengths:  []string{"flexibility", "tact", "perseverance"},
		growth:     []string{"asserting a firm stance"},
	},
	"Bing": {
		core:       "radiant energy and open generosity",
		motivation: "warming and energizing those around",
		decision:   "bold and transparent",
		social:     "bright and magnanimous",
		strengths:  []string{"enthusiasm", "openness", "generosity"},
		growth:     []string{"pacing the output of energy"},
	},
	"Ding": {
		core:       "focused warmth and careful illumination",
		motivation: "refining ideas into guiding light",
		decision:   "considered and precise",
		social:     "warm in close quarters",
		strengths:  []string{"precision", "devotion", "insight"},
		growth:     []string{"sharing concerns earlier"},
	},
	"Wu": {
		core:       "mountain-like steadiness and containment",
		motivation: "holding ground and supporting others",
		decision:   "deliberate and unhurried",
		social:     "reliable and reserved",
		strengths:  []string{"stability", "trustworthiness", "patience"},
		growth:     []string{"welcoming change"},
	},
	"Ji": {
		core:       "cultivating soil and practical nurture",
		motivation: "helping things and people grow",
		decision:   "practical and inclusive",
		social:     "modest and supportive",
		strengths:  []string{"nurture", "pragmatism", "tolerance"},
		growth:     []string{"guarding personal limits"},
	},
	"Geng": {
		core:       "forged resolve and decisive edge",
		motivation: "cutting through obstacles to outcomes",
		decision:   "decisive and principled",
		social:     "straightforward and loyal",
		strengths:  []string{"decisiveness", "resolve", "fairness"},
		growth:     []string{"softening the delivery"},
	},
	"Xin": {
		core:       "refined precision and polished standards",
		motivation: "perfecting craft and presentation",
		decision:   "exacting and discerning",
		social:     "poised and selective",
		strengths:  []string{"refinement", "discernment", "standards"},
		growth:     []string{"accepting rough drafts"},
	},
	"Ren": {
		core:       "broad currents and resourceful flow",
		motivation: "connecting ideas across wide waters",
		decision:   "expansive and opportunistic",
		social:     "sociable and fluid",
		strengths:  []string{"resourcefulness", "breadth", "momentum"},
		growth:     []string{"channeling the current"},
	},
	"Gui": {
		core:       "subtle depth and quiet permeation",
		motivation: "understanding what lies beneath",
		decision:   "intuitive and indirect",
		social:     "soft-spoken and perceptive",
		strengths:  []string{"subtlety", "perception", "persistence"},
		growth:     []string{"surfacing conclusions sooner"},
	},
}

// Template truncation policy: fallback output stays visibly terser than
// LLM output.
const (
	fallbackMaxStrengths = 2
	fallbackMaxGrowth    = 1
)

// BuildFallback produces a deterministic heuristic record from the raw
// symbols alone. Lookup order: astrology_raw.sun_sign, then
// bazi_raw.day_master, then a generic insufficient-information record.
// The result always carries fallback=true and never fails.
func BuildFallback(raw map[string]any) *persona.Features {
	if tpl, ok := matchTemplate(raw, "astrology_raw", "sun_sign", sunSignTemplates); ok {
		return fromTemplate(tpl, raw)
	}
	if tpl, ok := matchTemplate(raw, "bazi_raw", "day_master", dayMasterTemplates); ok {
		return fromTemplate(tpl, raw)
	}
	return persona.NewMinimal(
		"insufficient information for a summary",
		"insufficient information for a summary",
		persona.Unknown,
		persona.Unknown,
		[]string{"adaptability"},
		[]string{"more information needed"},
		raw,
		[]string{"core_identity", "motivation"},
		true,
	)
}

func matchTemplate(raw map[string]any, group, field string, table map[string]fallbackTemplate) (fallbackTemplate, bool) {
	g, ok := raw[group].(map[string]any)
	if !ok {
		return fallbackTemplate{}, false
	}
	name, ok := g[field].(string)
	if !ok {
		return fallbackTemplate{}, false
	}
	tpl, ok := table[name]
	return tpl, ok
}

func fromTemplate(tpl fallbackTemplate, raw map[string]any) *persona.Features {
	strengths := tpl.strengths
	if len(strengths) > fallbackMaxStrengths {
		strengths = strengths[:fallbackMaxStrengths]
	}
	growth := tpl.growth
	if len(growth) > fallbackMaxGrowth {
		growth = growth[:fallbackMaxGrowth]
	}
	return persona.NewMinimal(
		tpl.core, tpl.motivation, tpl.decision, tpl.social,
		strengths, growth,
		raw, nil, true,
	)
}
