package domain

import "encoding/json"

const (
	StrategyMobile  = "mobile"
	StrategyDesktop = "desktop"
)

// AuditOptions tunes how a page is rendered and scored.
type AuditOptions struct {
	Mobile         *bool `json:"mobile,omitempty"`
	ViewportWidth  int   `json:"viewport_width,omitempty"`
	ViewportHeight int   `json:"viewport_height,omitempty"`
}

// IsMobile defaults to true when the caller did not say otherwise.
func (o AuditOptions) IsMobile() bool {
	return o.Mobile == nil || *o.Mobile
}

// Strategy maps the mobile flag to the scoring strategy name.
func (o AuditOptions) Strategy() string {
	if o.IsMobile() {
		return StrategyMobile
	}
	return StrategyDesktop
}

// Viewport returns the effective viewport size.
func (o AuditOptions) Viewport() (int, int) {
	width, height := 1366, 768
	if o.IsMobile() {
		width, height = 390, 844
	}
	if o.ViewportWidth > 0 {
		width = o.ViewportWidth
	}
	if o.ViewportHeight > 0 {
		height = o.ViewportHeight
	}
	return width, height
}

// Scores holds 0-100 category scores; nil means the metric is unavailable.
type Scores struct {
	Performance   *int `json:"performance,omitempty"`
	Accessibility *int `json:"accessibility,omitempty"`
	Usability     *int `json:"usability,omitempty"`
}

// IsEmpty reports whether no metric was recorded.
func (s Scores) IsEmpty() bool {
	return s.Performance == nil && s.Accessibility == nil && s.Usability == nil
}

// Issue is a single finding about the audited page.
type Issue struct {
	ID       string         `json:"id"`
	Category string         `json:"category"`
	Severity string         `json:"severity"`
	Summary  string         `json:"summary"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Artifacts lists the files and raw payloads captured during an audit.
type Artifacts struct {
	Screenshots   []string        `json:"screenshots"`
	Axe           json.RawMessage `json:"axe,omitempty"`
	PSI           json.RawMessage `json:"psi,omitempty"`
	DOMSamplePath string          `json:"dom_sample_path,omitempty"`
}

// AuditReport is the result payload of an audit job.
type AuditReport struct {
	URL       string    `json:"url"`
	Scores    Scores    `json:"scores"`
	Issues    []Issue   `json:"issues"`
	Artifacts Artifacts `json:"artifacts"`
	Warnings  []string  `json:"warnings,omitempty"`
}
