// Package synthesis turns an audit (or caller supplied content) into a
// rewritten copy plan and a style system by chaining three model calls:
// hierarchy extraction, copywriting and style proposal.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
)

// DefaultDOMSampleLimit caps how much of the rendered DOM is sent to the model.
const DefaultDOMSampleLimit = 200_000

type Input struct {
	Report      *domain.AuditReport
	Content     string
	Tone        domain.Tone
	Criteria    []domain.EvaluationCriterion
	BrandColors []string
}

type Output struct {
	Hierarchy domain.ContentHierarchy
	CopyPlan  domain.CopyPlan
	Style     domain.StyleSystem
	Analysis  domain.Analysis
}

type Options struct {
	Criteria       []domain.EvaluationCriterion
	DOMSampleLimit int
	Logger         infra.Logger
}

// Orchestrator runs the synthesis chain. Any step failure fails the whole run.
type Orchestrator struct {
	synth    ContentSynthesizer
	criteria []domain.EvaluationCriterion
	domLimit int
	logger   infra.Logger
}

func NewOrchestrator(synth ContentSynthesizer, opts Options) *Orchestrator {
	criteria := opts.Criteria
	if len(criteria) == 0 {
		criteria = DefaultCriteria()
	}
	limit := opts.DOMSampleLimit
	if limit <= 0 {
		limit = DefaultDOMSampleLimit
	}
	return &Orchestrator{synth: synth, criteria: criteria, domLimit: limit, logger: opts.Logger}
}

func (o *Orchestrator) Synthesize(ctx context.Context, in Input) (*Output, error) {
	if o.synth == nil {
		return nil, errors.New("synthesis: no content synthesizer configured")
	}
	tone := in.Tone
	if tone == "" {
		tone = domain.DefaultTone
	}
	analysis := Analyze(in.Report)

	source, url, err := o.sourceText(in)
	if err != nil {
		return nil, err
	}
	o.logger.Info().Str("url", url).Int("source_bytes", len(source)).Str("tone", string(tone)).Msg("synthesis: extract hierarchy")
	raw, err := o.synth.Complete(ctx, hierarchyPrompt(url, source))
	if err != nil {
		return nil, fmt.Errorf("synthesis: hierarchy: %w", err)
	}
	hierarchy, err := ParseHierarchy(raw)
	if err != nil {
		return nil, err
	}
	if hierarchy.URL == "" {
		hierarchy.URL = url
	}

	prompt, err := copyPrompt(hierarchy, tone)
	if err != nil {
		return nil, err
	}
	o.logger.Info().Int("nodes", len(hierarchy.Nodes)).Msg("synthesis: copywriter")
	raw, err = o.synth.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("synthesis: copywriter: %w", err)
	}
	plan, err := ParseCopyPlan(raw, tone)
	if err != nil {
		return nil, err
	}

	criteria := in.Criteria
	if len(criteria) == 0 {
		criteria = o.criteria
	}
	prompt, err = stylePrompt(criteria)
	if err != nil {
		return nil, err
	}
	o.logger.Info().Int("criteria", len(criteria)).Msg("synthesis: style system")
	raw, err = o.synth.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("synthesis: style: %w", err)
	}
	style, err := ParseStyleSystem(raw)
	if err != nil {
		return nil, err
	}
	applyTokenDefaults(&style, analysis.Plan.DesignTokens, in.BrandColors)

	o.logger.Info().
		Int("blocks", len(plan.Blocks)).
		Str("layout", string(style.LayoutParadigm)).
		Int("suggestions", len(analysis.Suggestions)).
		Msg("synthesis: done")
	return &Output{Hierarchy: hierarchy, CopyPlan: plan, Style: style, Analysis: analysis}, nil
}

// sourceText prefers explicit content over the audit's DOM sample.
func (o *Orchestrator) sourceText(in Input) (text, url string, err error) {
	if in.Report != nil {
		url = in.Report.URL
	}
	if strings.TrimSpace(in.Content) != "" {
		return in.Content, url, nil
	}
	if in.Report == nil || in.Report.Artifacts.DOMSamplePath == "" {
		return "", url, nil
	}
	f, err := os.Open(in.Report.Artifacts.DOMSamplePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			o.logger.Warn().Str("path", in.Report.Artifacts.DOMSamplePath).Msg("synthesis: dom sample missing")
			return "", url, nil
		}
		return "", url, fmt.Errorf("synthesis: open dom sample: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, int64(o.domLimit)))
	if err != nil {
		return "", url, fmt.Errorf("synthesis: read dom sample: %w", err)
	}
	return strings.ToValidUTF8(string(data), ""), url, nil
}

func applyTokenDefaults(style *domain.StyleSystem, defaults map[string]string, brandColors []string) {
	if style.DesignTokens == nil {
		style.DesignTokens = map[string]string{}
	}
	for key, value := range defaults {
		if strings.TrimSpace(style.DesignTokens[key]) == "" {
			style.DesignTokens[key] = value
		}
	}
	for _, c := range brandColors {
		if c = strings.TrimSpace(c); c != "" {
			style.DesignTokens[domain.TokenColorPrimary] = c
			break
		}
	}
}
