// Package audit runs the render, accessibility and scoring phases against a
// single page and folds whatever succeeded into one report.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
)

const (
	WarningRenderFailed = "playwright_failed"
	WarningScoreFailed  = "psi_failed"

	maxAxeIssues = 20
)

// RenderResult carries the artifacts captured by a Renderer. A Renderer that
// fails midway still returns what it captured alongside the error.
type RenderResult struct {
	Screenshots   []string
	DOMSamplePath string
	Axe           json.RawMessage
}

// Renderer drives a headless browser against the page under audit.
type Renderer interface {
	Render(ctx context.Context, url string, opts domain.AuditOptions, outDir string) (*RenderResult, error)
}

// ScoreResult is the outcome of a third-party scoring call.
type ScoreResult struct {
	Scores domain.Scores
	Raw    json.RawMessage
}

// ScoreProvider rates a URL for performance, accessibility and SEO.
type ScoreProvider interface {
	Score(ctx context.Context, url, strategy string) (*ScoreResult, error)
}

// URLValidator is the fatal precondition of an audit.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) error
}

// Orchestrator runs the audit phases.
type Orchestrator struct {
	validator URLValidator
	renderer  Renderer
	scorer    ScoreProvider
	logger    infra.Logger
}

// NewOrchestrator wires the audit phases. Renderer and scorer may be nil, in
// which case their phase is reported as unavailable.
func NewOrchestrator(validator URLValidator, renderer Renderer, scorer ScoreProvider, logger infra.Logger) *Orchestrator {
	return &Orchestrator{
		validator: validator,
		renderer:  renderer,
		scorer:    scorer,
		logger:    logger,
	}
}

// Run audits url. Only URL validation can fail the audit; every other phase
// degrades into a warning on the report.
func (o *Orchestrator) Run(ctx context.Context, url string, opts domain.AuditOptions, workDir string) (*domain.AuditReport, error) {
	if o.validator != nil {
		if err := o.validator.Validate(ctx, url); err != nil {
			return nil, err
		}
	}
	logger := o.logger.With().Str("url", url).Logger()
	logger.Info().Bool("mobile", opts.IsMobile()).Str("out_dir", workDir).Msg("audit: perform")

	report := &domain.AuditReport{
		URL:       url,
		Issues:    []domain.Issue{},
		Artifacts: domain.Artifacts{Screenshots: []string{}},
	}

	o.renderPhase(ctx, logger, report, url, opts, workDir)
	o.scorePhase(ctx, logger, report, url, opts)

	if len(report.Issues) == 0 {
		report.Issues = IssuesFromAxe(report.Artifacts.Axe, maxAxeIssues)
	}
	if len(report.Issues) == 0 {
		report.Issues = []domain.Issue{BaselineIssue()}
	}

	logger.Info().
		Int("screenshots", len(report.Artifacts.Screenshots)).
		Int("issues", len(report.Issues)).
		Msg("audit: done")
	return report, nil
}

func (o *Orchestrator) renderPhase(ctx context.Context, logger infra.Logger, report *domain.AuditReport, url string, opts domain.AuditOptions, workDir string) {
	if o.renderer == nil {
		report.Warnings = append(report.Warnings, warning(WarningRenderFailed, errors.New("renderer not configured")))
		return
	}
	res, err := safeRender(ctx, o.renderer, url, opts, workDir)
	if res != nil {
		report.Artifacts.Screenshots = append(report.Artifacts.Screenshots, res.Screenshots...)
		report.Artifacts.DOMSamplePath = res.DOMSamplePath
		if len(res.Axe) > 0 {
			report.Artifacts.Axe = res.Axe
		}
	}
	if err != nil {
		report.Warnings = append(report.Warnings, warning(WarningRenderFailed, err))
		logger.Warn().Err(err).Msg("audit: render failed")
	}
}

func (o *Orchestrator) scorePhase(ctx context.Context, logger infra.Logger, report *domain.AuditReport, url string, opts domain.AuditOptions) {
	if o.scorer == nil {
		report.Warnings = append(report.Warnings, warning(WarningScoreFailed, errors.New("score provider not configured")))
		return
	}
	res, err := safeScore(ctx, o.scorer, url, opts.Strategy())
	if err != nil {
		report.Warnings = append(report.Warnings, warning(WarningScoreFailed, err))
		logger.Warn().Err(err).Msg("audit: scoring failed")
		return
	}
	if res == nil {
		return
	}
	report.Artifacts.PSI = res.Raw
	report.Scores = res.Scores
	logger.Info().
		Interface("performance", res.Scores.Performance).
		Interface("accessibility", res.Scores.Accessibility).
		Interface("usability", res.Scores.Usability).
		Msg("audit: scored")
}

// safeRender converts a panicking renderer into an ordinary phase failure.
func safeRender(ctx context.Context, r Renderer, url string, opts domain.AuditOptions, outDir string) (res *RenderResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer panic: %v", rec)
		}
	}()
	return r.Render(ctx, url, opts, outDir)
}

func safeScore(ctx context.Context, p ScoreProvider, url, strategy string) (res *ScoreResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("score provider panic: %v", rec)
		}
	}()
	return p.Score(ctx, url, strategy)
}

func warning(prefix string, err error) string {
	return fmt.Sprintf("%s: %s", prefix, strings.TrimSpace(err.Error()))
}

// IssuesFromAxe maps up to limit axe-core violations onto issues.
func IssuesFromAxe(raw json.RawMessage, limit int) []domain.Issue {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	violations := gjson.GetBytes(raw, "violations").Array()
	issues := make([]domain.Issue, 0, min(len(violations), limit))
	for _, v := range violations {
		if len(issues) >= limit {
			break
		}
		issue := domain.Issue{
			ID:       firstNonEmpty(v.Get("id").String(), "axe-issue"),
			Category: "accessibility",
			Severity: firstNonEmpty(v.Get("impact").String(), "moderate"),
			Summary:  firstNonEmpty(v.Get("description").String(), v.Get("help").String(), "Axe violation"),
		}
		evidence := map[string]any{"helpUrl": nil}
		if help := v.Get("helpUrl"); help.Exists() && help.Type != gjson.Null {
			evidence["helpUrl"] = help.String()
		}
		issue.Evidence = evidence
		issues = append(issues, issue)
	}
	return issues
}

// BaselineIssue is the finding reported when nothing specific was detected.
func BaselineIssue() domain.Issue {
	return domain.Issue{
		ID:       "baseline-review",
		Category: "usability",
		Severity: "info",
		Summary:  "No specific issues detected; manual review recommended.",
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
