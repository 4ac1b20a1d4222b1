// Package pipeline chains content synthesis and project materialization into a
// single generation run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
	"uxforge/internal/materialize"
	"uxforge/internal/synthesis"
)

// Request is the input of one generation run. Report may be nil when the run
// starts from caller supplied content.
type Request struct {
	Report      *domain.AuditReport
	Content     string
	Tone        domain.Tone
	BrandColors []string
}

// Synthesizer produces the copy plan, style system and analysis.
type Synthesizer interface {
	Synthesize(ctx context.Context, in synthesis.Input) (*synthesis.Output, error)
}

type Options struct {
	Synthesizer  Synthesizer
	Materializer materialize.Materializer
	// Zero disables the deadline.
	SynthesisTimeout time.Duration
	BuildTimeout     time.Duration
	Logger           infra.Logger
}

type Pipeline struct {
	synth            Synthesizer
	materializer     materialize.Materializer
	synthesisTimeout time.Duration
	buildTimeout     time.Duration
	logger           infra.Logger
}

func New(opts Options) (*Pipeline, error) {
	if opts.Synthesizer == nil {
		return nil, errors.New("pipeline: synthesizer is required")
	}
	if opts.Materializer == nil {
		return nil, errors.New("pipeline: materializer is required")
	}
	return &Pipeline{
		synth:            opts.Synthesizer,
		materializer:     opts.Materializer,
		synthesisTimeout: opts.SynthesisTimeout,
		buildTimeout:     opts.BuildTimeout,
		logger:           opts.Logger,
	}, nil
}

// Run synthesizes content and materializes the project under workDir. Any
// failure fails the run; no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, req Request, workDir string) (*domain.GenerationResult, error) {
	start := time.Now()

	synthCtx, cancel := withOptionalTimeout(ctx, p.synthesisTimeout)
	out, err := p.synth.Synthesize(synthCtx, synthesis.Input{
		Report:      req.Report,
		Content:     req.Content,
		Tone:        req.Tone,
		BrandColors: req.BrandColors,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("blocks", len(out.CopyPlan.Blocks)).
		Msg("pipeline: synthesis done")

	buildCtx, cancel := withOptionalTimeout(ctx, p.buildTimeout)
	defer cancel()
	project, err := p.materializer.Materialize(buildCtx, materialize.Input{
		Report:   req.Report,
		CopyPlan: out.CopyPlan,
		Style:    out.Style,
		Analysis: out.Analysis,
	}, workDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.logger.Info().
		Dur("elapsed", time.Since(start)).
		Str("backend", project.Backend).
		Msg("pipeline: materialize done")

	return &domain.GenerationResult{
		CopyPlan:    out.CopyPlan,
		StyleSystem: out.Style,
		Analysis:    out.Analysis,
		Project:     project,
	}, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
