// Package devserver talks to a hosted dev-server API that provisions git
// repositories and exposes their files and processes over HTTP.
package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
	"uxforge/internal/materialize"
)

const (
	DefaultBaseURL      = "https://api.freestyle.sh"
	DefaultTemplateRepo = "https://github.com/freestyle-sh/freestyle-base-nextjs-shadcn"
	defaultRepoName     = "uxforge-nextjs-project"
	defaultTimeout      = 10 * time.Minute
	maxResponseBytes    = 16 << 20
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("devserver: api key is required")

type Options struct {
	APIKey     string
	BaseURL    string
	RepoName   string
	HTTPClient *http.Client
	Logger     infra.Logger
}

// Client implements materialize.DevServer.
type Client struct {
	apiKey     string
	baseURL    string
	repoName   string
	httpClient *http.Client
	logger     infra.Logger
}

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	repoName := strings.TrimSpace(opts.RepoName)
	if repoName == "" {
		repoName = defaultRepoName
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, repoName: repoName, httpClient: httpClient, logger: opts.Logger}, nil
}

type createRepoRequest struct {
	Name   string     `json:"name"`
	Public bool       `json:"public"`
	Source repoSource `json:"source"`
}

type repoSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type createRepoResponse struct {
	RepoID string `json:"repoId"`
}

type devServerRequest struct {
	RepoID string `json:"repoId"`
}

type devServerResponse struct {
	EphemeralURL    string `json:"ephemeralUrl"`
	MCPEphemeralURL string `json:"mcpEphemeralUrl"`
	CodeServerURL   string `json:"codeServerUrl"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Provision creates a repository from templateRepo and requests a dev server for it.
func (c *Client) Provision(ctx context.Context, templateRepo string) (materialize.Session, error) {
	templateRepo = strings.TrimSpace(templateRepo)
	if templateRepo == "" {
		templateRepo = DefaultTemplateRepo
	}
	var repo createRepoResponse
	err := c.do(ctx, http.MethodPost, "/git/v1/repo", createRepoRequest{
		Name:   c.repoName,
		Public: true,
		Source: repoSource{Type: "git", URL: templateRepo},
	}, &repo)
	if err != nil {
		return nil, fmt.Errorf("devserver: create repo: %w", err)
	}
	if repo.RepoID == "" {
		return nil, fmt.Errorf("%w: devserver: create repo returned no id", domain.ErrProviderFailure)
	}
	c.logger.Info().Str("repo_id", repo.RepoID).Str("template", templateRepo).Msg("devserver: repo created")
	return c.Connect(ctx, repo.RepoID)
}

// Connect requests a dev server for an existing repository.
func (c *Client) Connect(ctx context.Context, repoID string) (materialize.Session, error) {
	repoID = strings.TrimSpace(repoID)
	if repoID == "" {
		return nil, errors.New("devserver: repo id is required")
	}
	var resp devServerResponse
	if err := c.do(ctx, http.MethodPost, "/ephemeral/v1/dev-servers", devServerRequest{RepoID: repoID}, &resp); err != nil {
		return nil, fmt.Errorf("devserver: request dev server: %w", err)
	}
	c.logger.Info().Str("repo_id", repoID).Str("url", resp.EphemeralURL).Msg("devserver: connected")
	return &Session{
		client: c,
		info: materialize.SessionInfo{
			RepoID:        repoID,
			EphemeralURL:  resp.EphemeralURL,
			MCPURL:        resp.MCPEphemeralURL,
			CodeServerURL: resp.CodeServerURL,
		},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && (detail.Message != "" || detail.Error != "") {
			msg := detail.Message
			if msg == "" {
				msg = detail.Error
			}
			return fmt.Errorf("%w: status %d: %s", domain.ErrProviderFailure, resp.StatusCode, msg)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderFailure, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Session is one running dev server.
type Session struct {
	client *Client
	info   materialize.SessionInfo
}

type writeFileRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type readFileResponse struct {
	Content string `json:"content"`
}

type execRequest struct {
	Command string `json:"command"`
}

type execResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

type commitRequest struct {
	Message string `json:"message"`
}

func (s *Session) Info() materialize.SessionInfo { return s.info }

func (s *Session) filePath(path string) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" || strings.Contains(path, "..") {
		return "", fmt.Errorf("devserver: invalid path %q", path)
	}
	return s.base() + "/files/" + escapePath(path), nil
}

func (s *Session) base() string {
	return "/ephemeral/v1/dev-servers/" + url.PathEscape(s.info.RepoID)
}

func (s *Session) ReadFile(ctx context.Context, path string) (string, error) {
	endpoint, err := s.filePath(path)
	if err != nil {
		return "", err
	}
	var resp readFileResponse
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", fmt.Errorf("devserver: read %s: %w", path, err)
	}
	return resp.Content, nil
}

func (s *Session) WriteFile(ctx context.Context, path, content string) error {
	endpoint, err := s.filePath(path)
	if err != nil {
		return err
	}
	if err := s.client.do(ctx, http.MethodPut, endpoint, writeFileRequest{Content: content, Encoding: "utf-8"}, nil); err != nil {
		return fmt.Errorf("devserver: write %s: %w", path, err)
	}
	return nil
}

// Exec runs command on the dev server. A non-zero exit code is an error that
// carries the combined output.
func (s *Session) Exec(ctx context.Context, command string) (string, error) {
	var resp execResponse
	if err := s.client.do(ctx, http.MethodPost, s.base()+"/exec", execRequest{Command: command}, &resp); err != nil {
		return "", fmt.Errorf("devserver: exec: %w", err)
	}
	out := strings.TrimSpace(strings.Join([]string{resp.Stdout, resp.Stderr}, "\n"))
	if resp.ExitCode != 0 {
		return out, fmt.Errorf("devserver: %q exited with code %d", command, resp.ExitCode)
	}
	return out, nil
}

func (s *Session) CommitAndPush(ctx context.Context, message string) error {
	if err := s.client.do(ctx, http.MethodPost, s.base()+"/git/commit-push", commitRequest{Message: message}, nil); err != nil {
		return fmt.Errorf("devserver: commit and push: %w", err)
	}
	return nil
}

func (s *Session) Close(ctx context.Context) error {
	if err := s.client.do(ctx, http.MethodPost, s.base()+"/shutdown", nil, nil); err != nil {
		return fmt.Errorf("devserver: shutdown: %w", err)
	}
	return nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var _ materialize.DevServer = (*Client)(nil)
var _ materialize.Session = (*Session)(nil)
