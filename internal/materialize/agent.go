package materialize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
)

// Tool names exposed to page-editing agents.
const (
	ToolReadFile      = "read_file"
	ToolWriteFile     = "write_file"
	ToolExec          = "exec"
	ToolNPMInstall    = "npm_install"
	ToolNPMLint       = "npm_lint"
	ToolCommitAndPush = "commit_and_push"
)

type ToolParam struct {
	Name        string
	Description string
	Required    bool
}

// Tool is a named capability an agent may invoke with string arguments.
type Tool struct {
	Name        string
	Description string
	Params      []ToolParam
	Run         func(ctx context.Context, args map[string]string) (string, error)
}

// Toolbox is the ordered set of tools offered to an agent.
type Toolbox []Tool

// Lookup finds a tool by name.
func (tb Toolbox) Lookup(name string) (Tool, bool) {
	for _, t := range tb {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Invoke runs the named tool after checking required arguments.
func (tb Toolbox) Invoke(ctx context.Context, name string, args map[string]string) (string, error) {
	tool, ok := tb.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	for _, p := range tool.Params {
		if _, present := args[p.Name]; p.Required && !present {
			return "", fmt.Errorf("tool %s: missing argument %q", name, p.Name)
		}
	}
	return tool.Run(ctx, args)
}

// Committer pushes the current workspace state upstream.
type Committer interface {
	CommitAndPush(ctx context.Context, message string) error
}

// NewToolbox exposes ws (and committer when non-nil) as agent tools.
func NewToolbox(ws Workspace, committer Committer, logger infra.Logger) Toolbox {
	tools := Toolbox{
		{
			Name:        ToolReadFile,
			Description: "Read a file from the project, path relative to the project root.",
			Params:      []ToolParam{{Name: "path", Description: "Relative file path", Required: true}},
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				logger.Info().Str("path", args["path"]).Msg("agent: read_file")
				return ws.ReadFile(ctx, args["path"])
			},
		},
		{
			Name:        ToolWriteFile,
			Description: "Write a file in the project, creating parent directories.",
			Params: []ToolParam{
				{Name: "path", Description: "Relative file path", Required: true},
				{Name: "content", Description: "Full file content", Required: true},
			},
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				logger.Info().Str("path", args["path"]).Int("size", len(args["content"])).Msg("agent: write_file")
				if err := ws.WriteFile(ctx, args["path"], args["content"]); err != nil {
					return "", err
				}
				return "ok", nil
			},
		},
		{
			Name:        ToolExec,
			Description: "Run a shell command in the project root.",
			Params:      []ToolParam{{Name: "command", Description: "Shell command", Required: true}},
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				logger.Info().Str("cmd", args["command"]).Msg("agent: exec")
				return ws.Exec(ctx, args["command"])
			},
		},
		{
			Name:        ToolNPMInstall,
			Description: "Install project dependencies.",
			Run: func(ctx context.Context, _ map[string]string) (string, error) {
				logger.Info().Msg("agent: npm_install")
				return ws.Exec(ctx, InstallCommand)
			},
		},
		{
			Name:        ToolNPMLint,
			Description: "Run the project linter.",
			Run: func(ctx context.Context, _ map[string]string) (string, error) {
				logger.Info().Msg("agent: npm_lint")
				return ws.Exec(ctx, LintCommand)
			},
		},
	}
	if committer != nil {
		tools = append(tools, Tool{
			Name:        ToolCommitAndPush,
			Description: "Commit all changes and push them to the remote repository.",
			Params:      []ToolParam{{Name: "message", Description: "Commit message", Required: true}},
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				logger.Info().Str("message", args["message"]).Msg("agent: commit_and_push")
				if err := committer.CommitAndPush(ctx, args["message"]); err != nil {
					return "", err
				}
				return "ok", nil
			},
		})
	}
	return tools
}

// AgentTask asks an agent to create or update one page.
type AgentTask struct {
	TargetPath string
	StyleGuide string
	CopyPlan   domain.CopyPlan
	Style      domain.StyleSystem
	SiteMap    []domain.SitePage
}

const agentSystem = `You are a senior front-end engineer editing a Next.js (app router, TypeScript, Tailwind) project through tools.
Update or create the target page so it follows the style guide and uses every improved copy block.
Read existing files before changing them. Keep the page compiling: run npm_install and npm_lint after writing.
When commit_and_push is available it only records the commit message; the caller commits after lint and build pass.
Finish with a one line status.`

// Prompt renders the system and user messages for the task.
func (t AgentTask) Prompt() (system, user string, err error) {
	plan, err := json.MarshalIndent(t.CopyPlan, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("materialize: encode copy plan: %w", err)
	}
	tokens, err := json.MarshalIndent(t.Style.DesignTokens, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("materialize: encode tokens: %w", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "target_path: %s\n\n", t.TargetPath)
	fmt.Fprintf(&sb, "style_guide:\n%s\n\n", strings.TrimSpace(t.StyleGuide))
	fmt.Fprintf(&sb, "copy_plan_json:\n%s\n\n", plan)
	fmt.Fprintf(&sb, "design_tokens_json:\n%s\n", tokens)
	return agentSystem, sb.String(), nil
}

// Agent performs an AgentTask using the supplied tools and returns a short
// status line.
type Agent interface {
	RunTask(ctx context.Context, task AgentTask, tools Toolbox) (string, error)
}
