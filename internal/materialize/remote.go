package materialize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
)

const commitMessage = "Apply copy updates from site audit"

// SessionInfo describes a running dev server.
type SessionInfo struct {
	RepoID        string
	EphemeralURL  string
	MCPURL        string
	CodeServerURL string
}

// Session is a live remote workspace backed by a git repository.
type Session interface {
	Workspace
	Committer
	Info() SessionInfo
	Close(ctx context.Context) error
}

// DevServer hands out remote sessions.
type DevServer interface {
	// Provision creates a repository from templateRepo and starts a server.
	Provision(ctx context.Context, templateRepo string) (Session, error)
	// Connect starts a server for an existing repository.
	Connect(ctx context.Context, repoID string) (Session, error)
}

type RemoteOptions struct {
	DevServer    DevServer
	Agent        Agent
	RepoID       string
	TemplateRepo string
	StyleGuide   string
	Logger       infra.Logger
}

// Remote applies the copy plan inside a dev server through an agent, then
// verifies and commits.
type Remote struct {
	devServer    DevServer
	agent        Agent
	repoID       string
	templateRepo string
	styleGuide   string
	logger       infra.Logger
}

func NewRemote(opts RemoteOptions) (*Remote, error) {
	if opts.DevServer == nil {
		return nil, errors.New("materialize: remote backend needs a dev server client")
	}
	if opts.Agent == nil {
		return nil, errors.New("materialize: remote backend needs an agent")
	}
	return &Remote{
		devServer:    opts.DevServer,
		agent:        opts.Agent,
		repoID:       strings.TrimSpace(opts.RepoID),
		templateRepo: strings.TrimSpace(opts.TemplateRepo),
		styleGuide:   opts.StyleGuide,
		logger:       opts.Logger,
	}, nil
}

func (r *Remote) Materialize(ctx context.Context, in Input, _ string) (*domain.GeneratedProject, error) {
	session, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn().Err(err).Msg("materialize: close dev server")
		}
	}()
	info := session.Info()
	logger := r.logger.With().Str("repo_id", info.RepoID).Logger()
	logger.Info().Str("url", info.EphemeralURL).Msg("materialize: remote session ready")

	extra, err := supportFiles(in)
	if err != nil {
		return nil, err
	}
	for _, f := range extra {
		if err := session.WriteFile(ctx, f.Path, f.Content); err != nil {
			return nil, fmt.Errorf("materialize: write %s: %w", f.Path, err)
		}
	}

	gate := &commitGate{}
	task := AgentTask{TargetPath: pagePath, StyleGuide: r.styleGuide, CopyPlan: in.CopyPlan, Style: in.Style, SiteMap: in.Analysis.Plan.SiteMap}
	status, err := r.agent.RunTask(ctx, task, NewToolbox(session, gate, logger))
	if err != nil {
		return nil, fmt.Errorf("materialize: agent: %w", err)
	}
	logger.Info().Str("status", status).Msg("materialize: agent done")

	project := &domain.GeneratedProject{
		Backend:       domain.BackendRemote,
		RepoID:        info.RepoID,
		EphemeralURL:  info.EphemeralURL,
		MCPURL:        info.MCPURL,
		CodeServerURL: info.CodeServerURL,
		AgentStatus:   status,
		Build:         Verify(ctx, session, logger),
	}

	if !project.Build.Lint.OK() || !project.Build.Build.OK() {
		logger.Warn().
			Str("lint", string(project.Build.Lint.Status)).
			Str("build", string(project.Build.Build.Status)).
			Msg("materialize: verification failed, not committing")
		return project, nil
	}
	if err := session.CommitAndPush(ctx, gate.messageOr(commitMessage)); err != nil {
		logger.Error().Err(err).Msg("materialize: commit and push failed")
		return project, nil
	}
	project.Committed = true
	logger.Info().Msg("materialize: committed")
	return project, nil
}

func (r *Remote) open(ctx context.Context) (Session, error) {
	if r.repoID != "" {
		s, err := r.devServer.Connect(ctx, r.repoID)
		if err != nil {
			return nil, fmt.Errorf("materialize: connect dev server: %w", err)
		}
		return s, nil
	}
	s, err := r.devServer.Provision(ctx, r.templateRepo)
	if err != nil {
		return nil, fmt.Errorf("materialize: provision dev server: %w", err)
	}
	return s, nil
}

// commitGate records commit requests from the agent. The real commit only
// happens after lint and build pass.
type commitGate struct {
	mu      sync.Mutex
	message string
}

func (g *commitGate) CommitAndPush(_ context.Context, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.message = strings.TrimSpace(message)
	return nil
}

func (g *commitGate) messageOr(fallback string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.message == "" {
		return fallback
	}
	return g.message
}
