// Package jobs tracks asynchronous audit and generation work. The Service is
// the facade handlers talk to: it validates requests, records a queued job,
// hands the work to a background execution and lets callers poll the result.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
	"uxforge/internal/pipeline"
)

// Auditor runs the audit phases against one URL.
type Auditor interface {
	Run(ctx context.Context, url string, opts domain.AuditOptions, workDir string) (*domain.AuditReport, error)
}

// Generator runs synthesis followed by materialization.
type Generator interface {
	Run(ctx context.Context, req pipeline.Request, workDir string) (*domain.GenerationResult, error)
}

// URLChecker is the synchronous preflight applied before an audit is queued.
type URLChecker interface {
	Validate(ctx context.Context, rawURL string) error
}

// WorkDirs hands out per-job scratch directories.
type WorkDirs interface {
	Dir(ctx context.Context, parts ...string) (string, error)
}

// Spawner schedules a background task.
type Spawner func(task func())

// GoSpawner runs each task on its own goroutine.
func GoSpawner(task func()) { go task() }

// AuditRequest is the input of StartAudit.
type AuditRequest struct {
	URL     string               `json:"url"`
	Options *domain.AuditOptions `json:"options,omitempty"`
}

// Preferences are optional generation hints.
type Preferences struct {
	Tone        string   `json:"tone,omitempty"`
	BrandColors []string `json:"brand_colors,omitempty"`
	Deploy      bool     `json:"deploy,omitempty"`
}

// GenerateRequest is the input of StartGeneration.
type GenerateRequest struct {
	AuditID     string       `json:"audit_id,omitempty"`
	Content     string       `json:"content,omitempty"`
	Tone        string       `json:"tone,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Options wires a Service.
type Options struct {
	Registry  *Registry
	Auditor   Auditor
	Generator Generator
	Checker   URLChecker
	WorkDirs  WorkDirs
	Spawner   Spawner
	Logger    infra.Logger
	NewID     func() string
}

// Service is the job API facade.
type Service struct {
	registry  *Registry
	auditor   Auditor
	generator Generator
	checker   URLChecker
	workDirs  WorkDirs
	spawn     Spawner
	logger    infra.Logger
	newID     func() string
	wg        sync.WaitGroup
}

// NewService validates opts and returns a ready Service.
func NewService(opts Options) (*Service, error) {
	if opts.Auditor == nil {
		return nil, errors.New("jobs: auditor is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("jobs: generator is required")
	}
	if opts.WorkDirs == nil {
		return nil, errors.New("jobs: work dirs are required")
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(opts.Logger)
	}
	spawn := opts.Spawner
	if spawn == nil {
		spawn = GoSpawner
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		registry:  registry,
		auditor:   opts.Auditor,
		generator: opts.Generator,
		checker:   opts.Checker,
		workDirs:  opts.WorkDirs,
		spawn:     spawn,
		logger:    opts.Logger,
		newID:     newID,
	}, nil
}

// Registry exposes the underlying job store.
func (s *Service) Registry() *Registry { return s.registry }

// StartAudit queues an audit and returns its id.
func (s *Service) StartAudit(ctx context.Context, req AuditRequest) (string, error) {
	target := strings.TrimSpace(req.URL)
	if target == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrBadRequest)
	}
	if s.checker != nil {
		if err := s.checker.Validate(ctx, target); err != nil {
			return "", err
		}
	}
	var opts domain.AuditOptions
	if req.Options != nil {
		opts = *req.Options
	}

	id := s.newID()
	if err := s.registry.Create(domain.JobKindAudit, id); err != nil {
		return "", err
	}
	s.logger.Info().Str("job_id", id).Str("url", target).Msg("audit: queued")

	s.launch(domain.JobKindAudit, id, func(ctx context.Context, workDir string) (any, error) {
		report, err := s.auditor.Run(ctx, target, opts, workDir)
		if err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("job_id", id).
			Int("screenshots", len(report.Artifacts.Screenshots)).
			Int("issues", len(report.Issues)).
			Int("warnings", len(report.Warnings)).
			Msg("audit: completed")
		return report, nil
	})
	return id, nil
}

// PollAudit returns the current state of an audit job.
func (s *Service) PollAudit(id string) (domain.Job, error) {
	return s.poll(domain.JobKindAudit, id)
}

// StartGeneration queues a generation job. It needs either a completed audit
// or caller supplied content.
func (s *Service) StartGeneration(ctx context.Context, req GenerateRequest) (string, error) {
	tone, err := resolveTone(req)
	if err != nil {
		return "", err
	}
	auditID := strings.TrimSpace(req.AuditID)
	content := req.Content
	if auditID == "" && strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: must provide content or a completed audit_id", domain.ErrBadRequest)
	}

	var report *domain.AuditReport
	if auditID != "" {
		job, ok := s.registry.Get(domain.JobKindAudit, auditID)
		if !ok || job.Status != domain.JobStatusDone {
			return "", fmt.Errorf("%w: audit not found or incomplete", domain.ErrPreconditionFailed)
		}
		report = &domain.AuditReport{}
		if err := json.Unmarshal(job.Result, report); err != nil {
			return "", fmt.Errorf("%w: decode audit result: %v", domain.ErrPreconditionFailed, err)
		}
	}

	var brandColors []string
	if req.Preferences != nil {
		brandColors = append(brandColors, req.Preferences.BrandColors...)
	}
	pipeReq := pipeline.Request{
		Report:      report,
		Content:     content,
		Tone:        tone,
		BrandColors: brandColors,
	}

	id := s.newID()
	if err := s.registry.Create(domain.JobKindGenerate, id); err != nil {
		return "", err
	}
	s.logger.Info().Str("job_id", id).Bool("from_audit", report != nil).Str("tone", string(tone)).Msg("generate: queued")

	s.launch(domain.JobKindGenerate, id, func(ctx context.Context, workDir string) (any, error) {
		result, err := s.generator.Run(ctx, pipeReq, workDir)
		if err != nil {
			return nil, err
		}
		if result.Project != nil {
			s.logger.Info().
				Str("job_id", id).
				Str("backend", result.Project.Backend).
				Str("project_dir", result.Project.ProjectDir).
				Msg("generate: completed")
		}
		return result, nil
	})
	return id, nil
}

// PollGeneration returns the current state of a generation job.
func (s *Service) PollGeneration(id string) (domain.Job, error) {
	return s.poll(domain.JobKindGenerate, id)
}

// Drain waits for in-flight jobs or gives up when ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) poll(kind domain.JobKind, id string) (domain.Job, error) {
	job, ok := s.registry.Get(kind, id)
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	s.logger.Debug().Str("kind", string(kind)).Str("job_id", id).Str("status", string(job.Status)).Msg("job: polled")
	return job, nil
}

type work func(ctx context.Context, workDir string) (any, error)

func (s *Service) launch(kind domain.JobKind, id string, fn work) {
	s.wg.Add(1)
	s.spawn(func() {
		defer s.wg.Done()
		s.execute(kind, id, fn)
	})
}

// execute is the outermost boundary of a background job: nothing escapes it,
// every outcome ends up on the registry.
func (s *Service) execute(kind domain.JobKind, id string, fn work) {
	logger := s.logger.With().Str("kind", string(kind)).Str("job_id", id).Logger()
	defer func() {
		if rec := recover(); rec != nil {
			jobErr := &domain.JobError{
				Error:     fmt.Sprintf("panic: %v", rec),
				Traceback: string(debug.Stack()),
			}
			logger.Error().Str("error", jobErr.Error).Msg("job: panicked")
			s.record(logger, s.registry.Fail(kind, id, jobErr))
		}
	}()

	// Jobs are not cancellable; they outlive the request that queued them.
	ctx := context.Background()
	s.record(logger, s.registry.Start(kind, id))

	workDir, err := s.workDirs.Dir(ctx, string(kind), id)
	if err != nil {
		s.fail(logger, kind, id, fmt.Errorf("prepare work dir: %w", err))
		return
	}
	logger.Info().Str("work_dir", workDir).Msg("job: started")

	result, err := fn(ctx, workDir)
	if err != nil {
		s.fail(logger, kind, id, err)
		return
	}
	s.record(logger, s.registry.Complete(kind, id, result))
}

func (s *Service) fail(logger infra.Logger, kind domain.JobKind, id string, err error) {
	logger.Error().Err(err).Msg("job: failed")
	s.record(logger, s.registry.Fail(kind, id, &domain.JobError{
		Error:     err.Error(),
		Traceback: traceback(err),
	}))
}

func (s *Service) record(logger infra.Logger, err error) {
	if err != nil {
		logger.Warn().Err(err).Msg("job: registry update rejected")
	}
}

// traceback renders the wrapped error chain followed by the stack of the
// goroutine that observed the failure.
func traceback(err error) string {
	sb := &strings.Builder{}
	depth := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		if depth > 0 {
			sb.WriteString("caused by: ")
		}
		fmt.Fprintf(sb, "%T: %v\n", e, e)
		depth++
	}
	sb.WriteString("\n")
	sb.Write(debug.Stack())
	return sb.String()
}

func resolveTone(req GenerateRequest) (domain.Tone, error) {
	candidates := []string{req.Tone}
	if req.Preferences != nil {
		candidates = append(candidates, req.Preferences.Tone)
	}
	for _, raw := range candidates {
		tone, ok := domain.ParseTone(raw)
		if !ok {
			return "", fmt.Errorf("%w: unsupported tone %q", domain.ErrBadRequest, raw)
		}
		if tone != "" {
			return tone, nil
		}
	}
	return domain.DefaultTone, nil
}
