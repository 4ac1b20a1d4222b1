package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"uxforge/internal/domain"
	"uxforge/internal/pipeline"
)

type fakeAuditor struct {
	mu      sync.Mutex
	urls    []string
	workDir string
	err     error
	panic   bool
}

func (f *fakeAuditor) Run(_ context.Context, url string, opts domain.AuditOptions, workDir string) (*domain.AuditReport, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.workDir = workDir
	f.mu.Unlock()
	if f.panic {
		panic("renderer exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AuditReport{
		URL:    url,
		Scores: domain.Scores{},
		Issues: []domain.Issue{{ID: "baseline-review", Category: "usability", Severity: "info"}},
	}, nil
}

type fakeGenerator struct {
	mu  sync.Mutex
	req pipeline.Request
	err error
}

func (f *fakeGenerator) Run(_ context.Context, req pipeline.Request, workDir string) (*domain.GenerationResult, error) {
	f.mu.Lock()
	f.req = req
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.GenerationResult{
		CopyPlan:    domain.CopyPlan{Summary: "Modernized copy", Blocks: []domain.CopyBlock{}},
		StyleSystem: domain.StyleSystem{LayoutParadigm: domain.LayoutModern},
		Project:     &domain.GeneratedProject{Backend: domain.BackendLocal, ProjectDir: workDir},
	}, nil
}

type tempDirs struct{ root string }

func (d tempDirs) Dir(_ context.Context, parts ...string) (string, error) {
	return filepath.Join(append([]string{d.root}, parts...)...), nil
}

type checkerFunc func(ctx context.Context, raw string) error

func (f checkerFunc) Validate(ctx context.Context, raw string) error { return f(ctx, raw) }

// deferredSpawner holds tasks until run is called.
type deferredSpawner struct {
	mu    sync.Mutex
	tasks []func()
}

func (d *deferredSpawner) spawn(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
}

func (d *deferredSpawner) run() {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

func inline(task func()) { task() }

func newTestService(t *testing.T, auditor *fakeAuditor, gen *fakeGenerator, spawn Spawner) *Service {
	t.Helper()
	counter := 0
	svc, err := NewService(Options{
		Auditor:   auditor,
		Generator: gen,
		WorkDirs:  tempDirs{root: t.TempDir()},
		Spawner:   spawn,
		Logger:    zerolog.Nop(),
		NewID: func() string {
			counter++
			return fmt.Sprintf("job-%d", counter)
		},
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestAuditJobMovesThroughStates(t *testing.T) {
	spawner := &deferredSpawner{}
	auditor := &fakeAuditor{}
	svc := newTestService(t, auditor, &fakeGenerator{}, spawner.spawn)

	id, err := svc.StartAudit(context.Background(), AuditRequest{URL: "  https://example.com  "})
	if err != nil {
		t.Fatalf("StartAudit returned error: %v", err)
	}
	job, err := svc.PollAudit(id)
	if err != nil || job.Status != domain.JobStatusQueued {
		t.Fatalf("before run: %+v, %v", job, err)
	}

	spawner.run()
	job, err = svc.PollAudit(id)
	if err != nil || job.Status != domain.JobStatusDone {
		t.Fatalf("after run: %+v, %v", job, err)
	}
	var report domain.AuditReport
	if err := json.Unmarshal(job.Result, &report); err != nil || report.URL != "https://example.com" {
		t.Fatalf("result = %s, %v", job.Result, err)
	}
	if !strings.HasSuffix(auditor.workDir, filepath.Join("audit", id)) {
		t.Fatalf("work dir = %s", auditor.workDir)
	}

	// Polling a finished job is idempotent.
	again, _ := svc.PollAudit(id)
	if again.Status != job.Status || string(again.Result) != string(job.Result) {
		t.Fatalf("second poll differs: %+v", again)
	}
}

func TestStartAuditValidation(t *testing.T) {
	invalid := fmt.Errorf("%w: private address", domain.ErrInvalidURL)
	svc, err := NewService(Options{
		Auditor:   &fakeAuditor{},
		Generator: &fakeGenerator{},
		WorkDirs:  tempDirs{root: t.TempDir()},
		Spawner:   inline,
		Logger:    zerolog.Nop(),
		Checker: checkerFunc(func(_ context.Context, raw string) error {
			if strings.Contains(raw, "127.0.0.1") {
				return invalid
			}
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	if _, err := svc.StartAudit(context.Background(), AuditRequest{URL: "   "}); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("blank url = %v", err)
	}
	if _, err := svc.StartAudit(context.Background(), AuditRequest{URL: "http://127.0.0.1"}); !errors.Is(err, domain.ErrInvalidURL) {
		t.Fatalf("private url = %v", err)
	}
	if n := svc.Registry().Len(domain.JobKindAudit); n != 0 {
		t.Fatalf("rejected requests created %d jobs", n)
	}
}

func TestAuditFailureAndPanicBecomeJobErrors(t *testing.T) {
	tests := []struct {
		name    string
		auditor *fakeAuditor
		want    string
	}{
		{"error", &fakeAuditor{err: fmt.Errorf("audit: %w", domain.ErrInvalidURL)}, "invalid url"},
		{"panic", &fakeAuditor{panic: true}, "panic: renderer exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.auditor, &fakeGenerator{}, inline)
			id, err := svc.StartAudit(context.Background(), AuditRequest{URL: "https://example.com"})
			if err != nil {
				t.Fatalf("StartAudit returned error: %v", err)
			}
			job, _ := svc.PollAudit(id)
			if job.Status != domain.JobStatusError || job.Error == nil || job.Result != nil {
				t.Fatalf("job = %+v", job)
			}
			if !strings.Contains(job.Error.Error, tt.want) {
				t.Fatalf("error = %q, want %q", job.Error.Error, tt.want)
			}
			if job.Error.Traceback == "" {
				t.Fatalf("expected a traceback")
			}
		})
	}
}

func TestStartGenerationRejections(t *testing.T) {
	spawner := &deferredSpawner{}
	svc := newTestService(t, &fakeAuditor{}, &fakeGenerator{}, spawner.spawn)
	pending, _ := svc.StartAudit(context.Background(), AuditRequest{URL: "https://example.com"})

	tests := []struct {
		name string
		req  GenerateRequest
		want error
	}{
		{"nothing", GenerateRequest{}, domain.ErrBadRequest},
		{"blank content", GenerateRequest{Content: "   "}, domain.ErrBadRequest},
		{"unknown audit", GenerateRequest{AuditID: "nope"}, domain.ErrPreconditionFailed},
		{"queued audit", GenerateRequest{AuditID: pending}, domain.ErrPreconditionFailed},
		{"bad tone", GenerateRequest{Content: "hi", Tone: "sarcastic"}, domain.ErrBadRequest},
		{"bad preference tone", GenerateRequest{Content: "hi", Preferences: &Preferences{Tone: "angry"}}, domain.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.StartGeneration(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := svc.Registry().Len(domain.JobKindGenerate); n != 0 {
		t.Fatalf("rejected requests created %d jobs", n)
	}
}

func TestGenerationFromCompletedAudit(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(t, &fakeAuditor{}, gen, inline)
	auditID, _ := svc.StartAudit(context.Background(), AuditRequest{URL: "https://example.com"})

	id, err := svc.StartGeneration(context.Background(), GenerateRequest{
		AuditID:     auditID,
		Preferences: &Preferences{Tone: "Friendly", BrandColors: []string{"#123456"}},
	})
	if err != nil {
		t.Fatalf("StartGeneration returned error: %v", err)
	}
	job, err := svc.PollGeneration(id)
	if err != nil || job.Status != domain.JobStatusDone {
		t.Fatalf("job = %+v, %v", job, err)
	}
	if gen.req.Report == nil || gen.req.Report.URL != "https://example.com" {
		t.Fatalf("report not passed: %+v", gen.req)
	}
	if gen.req.Tone != domain.ToneFriendly || gen.req.BrandColors[0] != "#123456" {
		t.Fatalf("request = %+v", gen.req)
	}
	var result domain.GenerationResult
	if err := json.Unmarshal(job.Result, &result); err != nil || result.Project == nil {
		t.Fatalf("result = %s, %v", job.Result, err)
	}
	if _, err := svc.PollAudit(id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("generation id must not resolve as an audit: %v", err)
	}
}

func TestResolveTone(t *testing.T) {
	tests := []struct {
		name string
		req  GenerateRequest
		want domain.Tone
	}{
		{"default", GenerateRequest{}, domain.ToneProfessional},
		{"request wins", GenerateRequest{Tone: "bold", Preferences: &Preferences{Tone: "friendly"}}, domain.ToneBold},
		{"preference fallback", GenerateRequest{Preferences: &Preferences{Tone: "neutral"}}, domain.ToneNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTone(tt.req)
			if err != nil || got != tt.want {
				t.Fatalf("resolveTone = %s, %v", got, err)
			}
		})
	}
}

func TestGenerationFailureRecordsError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("synthesis: copywriter: %w", domain.ErrSynthesisSchema)}
	svc := newTestService(t, &fakeAuditor{}, gen, inline)
	id, err := svc.StartGeneration(context.Background(), GenerateRequest{Content: "Hello world"})
	if err != nil {
		t.Fatalf("StartGeneration returned error: %v", err)
	}
	job, _ := svc.PollGeneration(id)
	if job.Status != domain.JobStatusError || !strings.Contains(job.Error.Error, "schema") {
		t.Fatalf("job = %+v", job)
	}
	if !strings.Contains(job.Error.Traceback, "caused by") {
		t.Fatalf("traceback = %q", job.Error.Traceback)
	}
}

func TestConcurrentJobsAndDrain(t *testing.T) {
	svc, err := NewService(Options{
		Auditor:   &fakeAuditor{},
		Generator: &fakeGenerator{},
		WorkDirs:  tempDirs{root: t.TempDir()},
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.StartAudit(context.Background(), AuditRequest{URL: fmt.Sprintf("https://example.com/%d", i)})
			if err != nil {
				t.Errorf("StartAudit returned error: %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Drain(ctx); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		job, err := svc.PollAudit(id)
		if err != nil || job.Status != domain.JobStatusDone {
			t.Fatalf("job %s = %+v, %v", id, job, err)
		}
	}
	if len(seen) != 20 {
		t.Fatalf("jobs = %d", len(seen))
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(Options{Generator: &fakeGenerator{}, WorkDirs: tempDirs{}}); err == nil {
		t.Fatalf("expected error without auditor")
	}
	if _, err := NewService(Options{Auditor: &fakeAuditor{}, WorkDirs: tempDirs{}}); err == nil {
		t.Fatalf("expected error without generator")
	}
	if _, err := NewService(Options{Auditor: &fakeAuditor{}, Generator: &fakeGenerator{}}); err == nil {
		t.Fatalf("expected error without work dirs")
	}
}
