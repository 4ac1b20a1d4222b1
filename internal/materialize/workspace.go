// Package materialize turns a copy plan and style system into a runnable
// Next.js project, either on local disk or inside a remote dev server.
package materialize

import (
	"context"
	"strings"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
)

const (
	InstallCommand = "npm ci || npm install"
	LintCommand    = "npm run lint"
	BuildCommand   = "npm run build"

	maxStepLog = 8 << 10
)

// Workspace is the file and process surface a project lives in.
type Workspace interface {
	WriteFile(ctx context.Context, path, content string) error
	ReadFile(ctx context.Context, path string) (string, error)
	// Exec runs a shell command in the project root and returns its output.
	// A non-zero exit is reported as an error together with the output.
	Exec(ctx context.Context, command string) (string, error)
}

// Input carries everything a materializer needs.
type Input struct {
	Report   *domain.AuditReport
	CopyPlan domain.CopyPlan
	Style    domain.StyleSystem
	Analysis domain.Analysis
}

// Materializer produces a project and reports where it lives.
type Materializer interface {
	Materialize(ctx context.Context, in Input, workDir string) (*domain.GeneratedProject, error)
}

// Verify runs install, lint and build. Every step runs even if an earlier one
// failed so each outcome is recorded on its own.
func Verify(ctx context.Context, ws Workspace, logger infra.Logger) domain.BuildOutcome {
	return domain.BuildOutcome{
		Install: runStep(ctx, ws, logger, "install", InstallCommand),
		Lint:    runStep(ctx, ws, logger, "lint", LintCommand),
		Build:   runStep(ctx, ws, logger, "build", BuildCommand),
	}
}

// SkippedBuild is reported when verification is disabled.
func SkippedBuild() domain.BuildOutcome {
	skipped := domain.StepOutcome{Status: domain.StepSkipped}
	return domain.BuildOutcome{Install: skipped, Lint: skipped, Build: skipped}
}

func runStep(ctx context.Context, ws Workspace, logger infra.Logger, name, command string) domain.StepOutcome {
	logger.Info().Str("step", name).Str("cmd", command).Msg("materialize: verify step")
	out, err := ws.Exec(ctx, command)
	outcome := domain.StepOutcome{Status: domain.StepOK, Log: tail(out, maxStepLog)}
	if err != nil {
		outcome.Status = domain.StepFailed
		if outcome.Log == "" {
			outcome.Log = err.Error()
		} else {
			outcome.Log += "\n" + err.Error()
		}
		logger.Warn().Err(err).Str("step", name).Msg("materialize: verify step failed")
	}
	return outcome
}

// tail keeps the last n bytes of s, where build errors usually are.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[len(s)-n:], "")
}
