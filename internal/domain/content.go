package domain

import "strings"

// Tone is the voice applied to rewritten copy.
type Tone string

const (
	ToneNeutral      Tone = "neutral"
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneBold         Tone = "bold"

	DefaultTone = ToneProfessional
)

// ParseTone normalizes a tone name. Empty input is valid and yields "".
func ParseTone(raw string) (Tone, bool) {
	t := Tone(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case "", ToneNeutral, ToneFriendly, ToneProfessional, ToneBold:
		return t, true
	default:
		return "", false
	}
}

// LayoutParadigm is the high level visual direction of a style system.
type LayoutParadigm string

const (
	LayoutModern  LayoutParadigm = "modern"
	LayoutClassic LayoutParadigm = "classic"
	LayoutMinimal LayoutParadigm = "minimal"
	LayoutBold    LayoutParadigm = "bold"
)

// Valid reports whether p is one of the known paradigms.
func (p LayoutParadigm) Valid() bool {
	switch p {
	case LayoutModern, LayoutClassic, LayoutMinimal, LayoutBold:
		return true
	}
	return false
}

// Well-known design token names.
const (
	TokenColorPrimary   = "color_primary"
	TokenColorSecondary = "color_secondary"
	TokenFontSans       = "font_sans"
)

// DefaultComponents is scaffolded when the style proposal omits a list.
var DefaultComponents = []string{"Navbar", "Footer", "Hero", "CTASection", "FeatureGrid"}

// CopyBlock is one section of before/after copy.
type CopyBlock struct {
	Path         string `json:"path"`
	OriginalText string `json:"original_text"`
	ImprovedText string `json:"improved_text"`
	Tone         Tone   `json:"tone"`
}

// CopyPlan is the rewritten copy for a page.
type CopyPlan struct {
	Summary string      `json:"summary"`
	Blocks  []CopyBlock `json:"blocks"`
}

// StyleSystem is the proposed visual language for the generated site.
type StyleSystem struct {
	LayoutParadigm LayoutParadigm    `json:"layout_paradigm"`
	DesignTokens   map[string]string `json:"design_tokens"`
	Components     []string          `json:"components"`
}

// ContentNode is a salient section extracted from page markup.
type ContentNode struct {
	ID       string        `json:"id"`
	Tag      string        `json:"tag"`
	Text     string        `json:"text"`
	Path     string        `json:"path"`
	Children []ContentNode `json:"children,omitempty"`
}

// ContentHierarchy is the outline the copywriter works from.
type ContentHierarchy struct {
	URL   string        `json:"url,omitempty"`
	Nodes []ContentNode `json:"nodes"`
}

// EvaluationCriterion steers the style proposal.
type EvaluationCriterion struct {
	Key         string  `json:"key" yaml:"key"`
	Description string  `json:"description" yaml:"description"`
	Weight      float64 `json:"weight" yaml:"weight"`
}

// Suggestion is a rule-based recommendation derived from an audit.
type Suggestion struct {
	Area      string `json:"area"`
	Action    string `json:"action"`
	Priority  string `json:"priority"`
	Reference string `json:"reference,omitempty"`
}

// SitePage is an entry of the proposed site map.
type SitePage struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// SitePlan is the skeleton proposed for the regenerated site.
type SitePlan struct {
	SiteMap      []SitePage        `json:"site_map"`
	Components   []string          `json:"components"`
	DesignTokens map[string]string `json:"design_tokens"`
}

// Analysis bundles suggestions and the site plan.
type Analysis struct {
	Suggestions []Suggestion `json:"suggestions"`
	Plan        SitePlan     `json:"plan"`
}
