package synthesis

import (
	"github.com/tidwall/gjson"

	"uxforge/internal/domain"
)

const (
	maxAxeSuggestions = 10

	DefaultColorPrimary   = "#0ea5e9"
	DefaultColorSecondary = "#111827"
	DefaultFontSans       = `Inter, ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial, "Apple Color Emoji", "Segoe UI Emoji"`
)

// DefaultTokens returns a fresh copy of the baseline design tokens.
func DefaultTokens() map[string]string {
	return map[string]string{
		domain.TokenColorPrimary:   DefaultColorPrimary,
		domain.TokenColorSecondary: DefaultColorSecondary,
		domain.TokenFontSans:       DefaultFontSans,
	}
}

// Analyze derives rule-based suggestions and a site plan from an audit. A nil
// report yields only the baseline suggestion.
func Analyze(report *domain.AuditReport) domain.Analysis {
	suggestions := make([]domain.Suggestion, 0, maxAxeSuggestions+2)
	if report != nil {
		if len(report.Artifacts.Axe) > 0 {
			violations := gjson.GetBytes(report.Artifacts.Axe, "violations").Array()
			if len(violations) > maxAxeSuggestions {
				violations = violations[:maxAxeSuggestions]
			}
			for _, v := range violations {
				suggestions = append(suggestions, domain.Suggestion{
					Area:      "accessibility",
					Action:    firstString(v, "Fix accessibility issue", "help", "description"),
					Priority:  firstString(v, "moderate", "impact"),
					Reference: v.Get("helpUrl").String(),
				})
			}
		}
		if perf := report.Scores.Performance; perf != nil && *perf < 80 {
			priority := "moderate"
			if *perf < 60 {
				priority = "high"
			}
			suggestions = append(suggestions, domain.Suggestion{
				Area:     "performance",
				Action:   "Optimize images, enable compression, and reduce render-blocking resources.",
				Priority: priority,
			})
		}
	}
	suggestions = append(suggestions, domain.Suggestion{
		Area:     "layout",
		Action:   "Adopt a consistent 12-column responsive grid, clear visual hierarchy (H1~H3), and prominent CTA in hero.",
		Priority: "moderate",
	})

	return domain.Analysis{
		Suggestions: suggestions,
		Plan: domain.SitePlan{
			SiteMap: []domain.SitePage{
				{Path: "/", Title: "Home"},
				{Path: "/about", Title: "About"},
				{Path: "/contact", Title: "Contact"},
			},
			Components:   []string{"Navbar", "Footer", "Hero", "FeatureGrid", "CTASection", "ContentSection"},
			DesignTokens: DefaultTokens(),
		},
	}
}

func firstString(v gjson.Result, fallback string, paths ...string) string {
	for _, p := range paths {
		if s := v.Get(p).String(); s != "" {
			return s
		}
	}
	return fallback
}
