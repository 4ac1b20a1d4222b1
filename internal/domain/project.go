package domain

// StepStatus is the outcome of one verification step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepOutcome records a single install, lint or build run.
type StepOutcome struct {
	Status StepStatus `json:"status"`
	Log    string     `json:"log,omitempty"`
}

// OK reports whether the step succeeded.
func (s StepOutcome) OK() bool { return s.Status == StepOK }

// BuildOutcome keeps install, lint and build results separate so callers can
// tell a lint failure apart from a broken build.
type BuildOutcome struct {
	Install StepOutcome `json:"install"`
	Lint    StepOutcome `json:"lint"`
	Build   StepOutcome `json:"build"`
}

// Materialization backends.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// GeneratedProject is the materialized site. Local fields or remote fields are
// populated depending on Backend.
type GeneratedProject struct {
	Backend    string   `json:"backend"`
	ProjectDir string   `json:"project_dir,omitempty"`
	ZipPath    string   `json:"zip_path,omitempty"`
	Files      []string `json:"files,omitempty"`

	RepoID        string `json:"repo_id,omitempty"`
	EphemeralURL  string `json:"ephemeral_url,omitempty"`
	MCPURL        string `json:"mcp_ephemeral_url,omitempty"`
	CodeServerURL string `json:"code_server_url,omitempty"`
	AgentStatus   string `json:"agent_status,omitempty"`
	Committed     bool   `json:"committed"`

	Build BuildOutcome `json:"build"`
}

// GenerationResult is the payload of a generation job.
type GenerationResult struct {
	CopyPlan    CopyPlan          `json:"copy_plan"`
	StyleSystem StyleSystem       `json:"style_system"`
	Analysis    Analysis          `json:"analysis"`
	Project     *GeneratedProject `json:"project"`
}
