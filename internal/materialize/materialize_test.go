package materialize

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"uxforge/internal/domain"
)

type fakeWorkspace struct {
	mu        sync.Mutex
	files     map[string]string
	failing   map[string]error
	commands  []string
	commits   []string
	commitErr error
	closed    bool
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{files: map[string]string{}, failing: map[string]error{}}
}

func (f *fakeWorkspace) WriteFile(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
	return nil
}

func (f *fakeWorkspace) ReadFile(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return content, nil
}

func (f *fakeWorkspace) Exec(_ context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	if err := f.failing[command]; err != nil {
		return "output of " + command, err
	}
	return "output of " + command, nil
}

func (f *fakeWorkspace) CommitAndPush(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, message)
	return nil
}

func (f *fakeWorkspace) Info() SessionInfo {
	return SessionInfo{RepoID: "repo-1", EphemeralURL: "https://dev.example", MCPURL: "https://dev.example/mcp", CodeServerURL: "https://code.example"}
}

func (f *fakeWorkspace) Close(context.Context) error {
	f.closed = true
	return nil
}

type fakeDevServer struct {
	session      *fakeWorkspace
	provisioned  string
	connected    string
	provisionErr error
}

func (d *fakeDevServer) Provision(_ context.Context, templateRepo string) (Session, error) {
	if d.provisionErr != nil {
		return nil, d.provisionErr
	}
	d.provisioned = templateRepo
	return d.session, nil
}

func (d *fakeDevServer) Connect(_ context.Context, repoID string) (Session, error) {
	d.connected = repoID
	return d.session, nil
}

type writingAgent struct {
	commitRequest string
	err           error
}

func (a *writingAgent) RunTask(ctx context.Context, task AgentTask, tools Toolbox) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	page, err := RenderPage(task.CopyPlan, task.Style, task.SiteMap)
	if err != nil {
		return "", err
	}
	if _, err := tools.Invoke(ctx, ToolWriteFile, map[string]string{"path": task.TargetPath, "content": page}); err != nil {
		return "", err
	}
	if a.commitRequest != "" {
		if _, err := tools.Invoke(ctx, ToolCommitAndPush, map[string]string{"message": a.commitRequest}); err != nil {
			return "", err
		}
	}
	return "page updated", nil
}

func sampleInput() Input {
	perf := 72
	return Input{
		Report: &domain.AuditReport{
			URL:    "https://example.com",
			Scores: domain.Scores{Performance: &perf},
			Issues: []domain.Issue{{ID: "baseline-review", Category: "usability", Severity: "info", Summary: "Manual review"}},
		},
		CopyPlan: domain.CopyPlan{Summary: "Sharper copy", Blocks: []domain.CopyBlock{
			{Path: "hero.h1", OriginalText: "Welcome", ImprovedText: "Ship faster", Tone: domain.ToneBold},
			{Path: "hero.p", OriginalText: "We do things", ImprovedText: "Deploy in seconds", Tone: domain.ToneBold},
			{Path: "features.fast_setup", OriginalText: "Setup", ImprovedText: "Set up in a minute", Tone: domain.ToneBold},
			{Path: "cta.button", OriginalText: "Click", ImprovedText: "Start your trial", Tone: domain.ToneBold},
		}},
		Style: domain.StyleSystem{
			LayoutParadigm: domain.LayoutModern,
			DesignTokens:   map[string]string{"color_primary": "#ff0000;}", "font_sans": "Inter"},
			Components:     append([]string(nil), domain.DefaultComponents...),
		},
		Analysis: domain.Analysis{
			Suggestions: []domain.Suggestion{{Area: "layout", Action: "Use a grid", Priority: "moderate"}},
			Plan: domain.SitePlan{SiteMap: []domain.SitePage{
				{Path: "/", Title: "Home"}, {Path: "/about", Title: "About"}, {Path: "/contact", Title: "Contact"},
			}},
		},
	}
}

func TestVerifyRecordsEachStep(t *testing.T) {
	ws := newFakeWorkspace()
	ws.failing[LintCommand] = errors.New("exit status 1")
	got := Verify(context.Background(), ws, zerolog.Nop())
	if !got.Install.OK() || !got.Build.OK() {
		t.Fatalf("install/build should pass: %+v", got)
	}
	if got.Lint.Status != domain.StepFailed || !strings.Contains(got.Lint.Log, "exit status 1") {
		t.Fatalf("lint = %+v", got.Lint)
	}
	want := []string{InstallCommand, LintCommand, BuildCommand}
	if strings.Join(ws.commands, "|") != strings.Join(want, "|") {
		t.Fatalf("commands = %v", ws.commands)
	}
}

func TestLocalMaterializeWritesProject(t *testing.T) {
	workDir := t.TempDir()
	local := NewLocal(LocalOptions{Logger: zerolog.Nop()})
	project, err := local.Materialize(context.Background(), sampleInput(), workDir)
	if err != nil {
		t.Fatalf("Materialize returned error: %v", err)
	}
	if project.Backend != domain.BackendLocal {
		t.Fatalf("backend = %q", project.Backend)
	}
	if project.Build.Build.Status != domain.StepSkipped {
		t.Fatalf("build = %+v", project.Build)
	}
	for _, rel := range []string{
		"package.json", "next.config.js", "tsconfig.json", "tailwind.config.js", "postcss.config.js",
		"next-env.d.ts", "app/globals.css", "app/layout.tsx", "app/page.tsx", "app/about/page.tsx",
		"components/Hero.tsx", "components/Navbar.tsx", "analysis.json", "AUDIT.md", "public/audit.html",
	} {
		if _, err := os.Stat(filepath.Join(project.ProjectDir, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}

	css, _ := os.ReadFile(filepath.Join(project.ProjectDir, "app", "globals.css"))
	if !strings.Contains(string(css), "--color-primary: #ff0000;") || strings.Contains(string(css), "#ff0000;}") {
		t.Fatalf("globals.css = %s", css)
	}
	page, _ := os.ReadFile(filepath.Join(project.ProjectDir, "app", "page.tsx"))
	for _, want := range []string{"Ship faster", "Start your trial", "Fast Setup", "import FeatureGrid from '../components/FeatureGrid';"} {
		if !strings.Contains(string(page), want) {
			t.Fatalf("page.tsx missing %q:\n%s", want, page)
		}
	}
	html, _ := os.ReadFile(filepath.Join(project.ProjectDir, "public", "audit.html"))
	if !strings.Contains(string(html), "<table>") || !strings.Contains(string(html), "Sharper copy") {
		t.Fatalf("audit.html = %s", html)
	}

	r, err := zip.OpenReader(project.ZipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()
	if len(r.File) != len(project.Files) {
		t.Fatalf("zip entries = %d, files = %d", len(r.File), len(project.Files))
	}
}

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	fail     map[string]bool
}

func (r *fakeRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	return r.RunShell(ctx, workDir, name+" "+strings.Join(args, " "))
}

func (r *fakeRunner) RunShell(_ context.Context, _ string, command string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	if r.fail[command] {
		return []byte("boom"), errors.New("exit status 1")
	}
	return []byte("done"), nil
}

func (r *fakeRunner) LookPath(string) bool { return true }

func TestLocalMaterializeVerifies(t *testing.T) {
	run := &fakeRunner{fail: map[string]bool{BuildCommand: true}}
	local := NewLocal(LocalOptions{Runner: run, Verify: true, Agent: &writingAgent{}, Logger: zerolog.Nop()})
	project, err := local.Materialize(context.Background(), sampleInput(), t.TempDir())
	if err != nil {
		t.Fatalf("Materialize returned error: %v", err)
	}
	if !project.Build.Install.OK() || !project.Build.Lint.OK() || project.Build.Build.OK() {
		t.Fatalf("build = %+v", project.Build)
	}
	if project.AgentStatus != "page updated" {
		t.Fatalf("agent status = %q", project.AgentStatus)
	}
	if len(run.commands) != 3 {
		t.Fatalf("commands = %v", run.commands)
	}
}

func TestRemoteCommitsOnlyAfterLintAndBuild(t *testing.T) {
	tests := []struct {
		name       string
		failing    string
		wantCommit bool
	}{
		{name: "all pass", wantCommit: true},
		{name: "lint fails", failing: LintCommand},
		{name: "build fails", failing: BuildCommand},
		{name: "install fails only", failing: InstallCommand, wantCommit: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := newFakeWorkspace()
			if tc.failing != "" {
				session.failing[tc.failing] = errors.New("exit status 1")
			}
			dev := &fakeDevServer{session: session}
			agent := &writingAgent{commitRequest: "Polish homepage"}
			remote, err := NewRemote(RemoteOptions{DevServer: dev, Agent: agent, TemplateRepo: "https://git.example/template", Logger: zerolog.Nop()})
			if err != nil {
				t.Fatal(err)
			}
			project, err := remote.Materialize(context.Background(), sampleInput(), t.TempDir())
			if err != nil {
				t.Fatalf("Materialize returned error: %v", err)
			}
			if project.Committed != tc.wantCommit {
				t.Fatalf("committed = %v, want %v", project.Committed, tc.wantCommit)
			}
			if tc.wantCommit && (len(session.commits) != 1 || session.commits[0] != "Polish homepage") {
				t.Fatalf("commits = %v", session.commits)
			}
			if !tc.wantCommit && len(session.commits) != 0 {
				t.Fatalf("unexpected commits = %v", session.commits)
			}
			if dev.provisioned != "https://git.example/template" || !session.closed {
				t.Fatalf("provisioned = %q closed = %v", dev.provisioned, session.closed)
			}
			if project.RepoID != "repo-1" || project.MCPURL == "" {
				t.Fatalf("project = %+v", project)
			}
			if _, ok := session.files[pagePath]; !ok {
				t.Fatalf("agent did not write %s", pagePath)
			}
		})
	}
}

func TestRemoteConnectsAndFailsOnAgentError(t *testing.T) {
	session := newFakeWorkspace()
	dev := &fakeDevServer{session: session}
	remote, _ := NewRemote(RemoteOptions{DevServer: dev, Agent: &writingAgent{err: errors.New("model refused")}, RepoID: "existing", Logger: zerolog.Nop()})
	if _, err := remote.Materialize(context.Background(), sampleInput(), ""); err == nil {
		t.Fatalf("expected agent error")
	}
	if dev.connected != "existing" || !session.closed {
		t.Fatalf("connected = %q closed = %v", dev.connected, session.closed)
	}

	dev = &fakeDevServer{provisionErr: errors.New("quota")}
	remote, _ = NewRemote(RemoteOptions{DevServer: dev, Agent: &writingAgent{}, Logger: zerolog.Nop()})
	if _, err := remote.Materialize(context.Background(), sampleInput(), ""); err == nil {
		t.Fatalf("expected provision error")
	}
}

func TestToolboxInvoke(t *testing.T) {
	ws := newFakeWorkspace()
	tools := NewToolbox(ws, nil, zerolog.Nop())
	if _, ok := tools.Lookup(ToolCommitAndPush); ok {
		t.Fatalf("commit tool offered without a committer")
	}
	if _, err := tools.Invoke(context.Background(), ToolWriteFile, map[string]string{"path": "a.txt"}); err == nil {
		t.Fatalf("expected missing content error")
	}
	if _, err := tools.Invoke(context.Background(), "rm_rf", nil); err == nil {
		t.Fatalf("expected unknown tool error")
	}
	out, err := tools.Invoke(context.Background(), ToolNPMLint, nil)
	if err != nil || out != "output of "+LintCommand {
		t.Fatalf("npm_lint = %q, %v", out, err)
	}
}

func TestRenderPageAddsContentSections(t *testing.T) {
	plan := domain.CopyPlan{Blocks: []domain.CopyBlock{
		{Path: "h1", ImprovedText: "One"}, {Path: "p", ImprovedText: "Two"}, {Path: "about_us", ImprovedText: "Three"},
	}}
	page, err := RenderPage(plan, domain.StyleSystem{Components: []string{"Hero", "Footer"}}, nil)
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if !strings.Contains(page, "import ContentSection") || !strings.Contains(page, "About Us") {
		t.Fatalf("page = %s", page)
	}
	if strings.Contains(page, "FeatureGrid") || strings.Contains(page, "<Navbar") {
		t.Fatalf("unexpected components in page = %s", page)
	}
}

func TestAgentTaskPrompt(t *testing.T) {
	task := AgentTask{TargetPath: pagePath, StyleGuide: "Use big headlines", CopyPlan: sampleInput().CopyPlan}
	system, user, err := task.Prompt()
	if err != nil {
		t.Fatal(err)
	}
	if system == "" || !strings.Contains(user, "target_path: app/page.tsx") || !strings.Contains(user, "Ship faster") {
		t.Fatalf("user prompt = %s", user)
	}
}
