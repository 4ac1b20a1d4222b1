// Package axe supplies the axe-core accessibility engine that the renderer
// injects into audited pages.
package axe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.9.1/axe.min.js"

	// RunExpression evaluates to a promise of the axe results object.
	RunExpression = "(async () => { return await axe.run(); })()"

	defaultTimeout = 10 * time.Second
	maxScriptBytes = 8 << 20
)

type Options struct {
	ScriptURL  string
	HTTPClient *http.Client
}

// Loader downloads axe-core once and serves the cached source afterwards.
type Loader struct {
	scriptURL  string
	httpClient *http.Client

	mu     sync.Mutex
	script string
}

func NewLoader(opts Options) *Loader {
	scriptURL := strings.TrimSpace(opts.ScriptURL)
	if scriptURL == "" {
		scriptURL = DefaultScriptURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Loader{scriptURL: scriptURL, httpClient: client}
}

// Script returns the axe-core source.
func (l *Loader) Script(ctx context.Context) (string, error) {
	if l == nil {
		return "", errors.New("axe: loader not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.script != "" {
		return l.script, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.scriptURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("axe: fetch script: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("axe: fetch script: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBytes))
	if err != nil {
		return "", fmt.Errorf("axe: read script: %w", err)
	}
	script := string(body)
	if strings.TrimSpace(script) == "" {
		return "", errors.New("axe: empty script")
	}
	l.script = script
	return script, nil
}
