package materialize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
	"uxforge/internal/runner"
	"uxforge/internal/storage"
	"uxforge/pkg/zip"
)

const (
	projectDirName = "next_project"
	zipName        = "next_project.zip"
	pagePath       = "app/page.tsx"
)

// LocalWorkspace is a project directory on disk.
type LocalWorkspace struct {
	store  *storage.FileStore
	runner runner.CommandRunner
}

func NewLocalWorkspace(store *storage.FileStore, r runner.CommandRunner) *LocalWorkspace {
	return &LocalWorkspace{store: store, runner: r}
}

func (w *LocalWorkspace) Root() string { return w.store.BasePath() }

func (w *LocalWorkspace) WriteFile(ctx context.Context, path, content string) error {
	_, err := w.store.Write(ctx, path, []byte(content))
	return err
}

func (w *LocalWorkspace) ReadFile(ctx context.Context, path string) (string, error) {
	data, err := w.store.Read(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *LocalWorkspace) Exec(ctx context.Context, command string) (string, error) {
	if w.runner == nil {
		return "", errors.New("materialize: no command runner configured")
	}
	out, err := w.runner.RunShell(ctx, w.Root(), command)
	return string(out), err
}

type LocalOptions struct {
	Runner runner.CommandRunner
	// Verify runs install, lint and build after writing the project.
	Verify bool
	// Agent optionally refines app/page.tsx after the scaffold is written.
	Agent      Agent
	StyleGuide string
	Logger     infra.Logger
}

// Local writes the scaffold under the job work dir and archives it.
type Local struct {
	runner     runner.CommandRunner
	verify     bool
	agent      Agent
	styleGuide string
	logger     infra.Logger
}

func NewLocal(opts LocalOptions) *Local {
	r := opts.Runner
	if r == nil {
		r = runner.NewRunner()
	}
	return &Local{
		runner:     r,
		verify:     opts.Verify,
		agent:      opts.Agent,
		styleGuide: opts.StyleGuide,
		logger:     opts.Logger,
	}
}

func (l *Local) Materialize(ctx context.Context, in Input, workDir string) (*domain.GeneratedProject, error) {
	store, err := storage.NewFileStore(filepath.Join(workDir, projectDirName))
	if err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}
	ws := NewLocalWorkspace(store, l.runner)
	l.logger.Info().Str("project_dir", ws.Root()).Msg("materialize: local start")

	files, err := RenderProject(in)
	if err != nil {
		return nil, err
	}
	extra, err := supportFiles(in)
	if err != nil {
		return nil, err
	}
	files = append(files, extra...)

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := ws.WriteFile(ctx, f.Path, f.Content); err != nil {
			return nil, fmt.Errorf("materialize: write %s: %w", f.Path, err)
		}
		written = append(written, f.Path)
	}
	sort.Strings(written)

	project := &domain.GeneratedProject{
		Backend:    domain.BackendLocal,
		ProjectDir: ws.Root(),
		Files:      written,
		Build:      SkippedBuild(),
	}

	if l.agent != nil {
		task := AgentTask{TargetPath: pagePath, StyleGuide: l.styleGuide, CopyPlan: in.CopyPlan, Style: in.Style, SiteMap: in.Analysis.Plan.SiteMap}
		status, err := l.agent.RunTask(ctx, task, NewToolbox(ws, nil, l.logger))
		if err != nil {
			// The templated page is already in place.
			l.logger.Warn().Err(err).Msg("materialize: agent failed, keeping templated page")
			status = "failed: " + err.Error()
		}
		project.AgentStatus = status
	}

	if l.verify {
		project.Build = Verify(ctx, ws, l.logger)
	}

	zipPath := filepath.Join(workDir, zipName)
	if err := zip.ArchiveDir(ws.Root(), zipPath); err != nil {
		return nil, fmt.Errorf("materialize: archive project: %w", err)
	}
	project.ZipPath = zipPath

	l.logger.Info().
		Str("project_dir", project.ProjectDir).
		Str("zip_path", zipPath).
		Int("files", len(written)).
		Str("build", string(project.Build.Build.Status)).
		Msg("materialize: local done")
	return project, nil
}

// supportFiles returns analysis.json, AUDIT.md and its HTML rendering.
func supportFiles(in Input) ([]File, error) {
	analysis, err := json.MarshalIndent(in.Analysis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("materialize: encode analysis: %w", err)
	}
	md := AuditMarkdown(in)
	page, err := AuditHTML(md)
	if err != nil {
		return nil, err
	}
	return []File{
		{Path: "analysis.json", Content: string(analysis) + "\n"},
		{Path: "AUDIT.md", Content: md},
		{Path: "public/audit.html", Content: page},
	}, nil
}
