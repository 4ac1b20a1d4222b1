// Package browser renders audited pages in headless Chrome.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"uxforge/internal/audit"
	"uxforge/internal/domain"
	"uxforge/internal/infra"
	"uxforge/internal/providers/axe"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultScanTimeout       = 30 * time.Second
	defaultLaunchTimeout     = 30 * time.Second
	defaultCaptureTimeout    = 30 * time.Second
	DefaultDOMSampleLimit    = 2_000_000

	aboveFoldFile = "screenshot_above_fold.png"
	fullPageFile  = "screenshot_full.png"
	domSampleFile = "dom.html"
)

// ScriptSource provides the accessibility engine injected into the page.
type ScriptSource interface {
	Script(ctx context.Context) (string, error)
}

type Options struct {
	ExecPath          string
	Headless          bool
	NoSandbox         bool
	NavigationTimeout time.Duration
	// LaunchTimeout bounds browser startup.
	LaunchTimeout     time.Duration
	// CaptureTimeout bounds each screenshot and the DOM snapshot.
	CaptureTimeout    time.Duration
	DOMSampleLimit    int
	Scanner           ScriptSource
	Logger            infra.Logger
}

// runFunc executes browser actions; chromedp.Run in production.
type runFunc func(ctx context.Context, actions ...chromedp.Action) error

// Renderer captures screenshots, a DOM sample and an accessibility scan.
type Renderer struct {
	execPath   string
	headless   bool
	noSandbox  bool
	navTimeout     time.Duration
	launchTimeout  time.Duration
	captureTimeout time.Duration
	scanTimeout    time.Duration
	domLimit       int
	scanner        ScriptSource
	logger         infra.Logger
	run            runFunc
}

func NewRenderer(opts Options) *Renderer {
	navTimeout := opts.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}
	launchTimeout := opts.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = defaultLaunchTimeout
	}
	captureTimeout := opts.CaptureTimeout
	if captureTimeout <= 0 {
		captureTimeout = defaultCaptureTimeout
	}
	domLimit := opts.DOMSampleLimit
	if domLimit <= 0 {
		domLimit = DefaultDOMSampleLimit
	}
	return &Renderer{
		execPath:       strings.TrimSpace(opts.ExecPath),
		headless:       opts.Headless,
		noSandbox:      opts.NoSandbox,
		navTimeout:     navTimeout,
		launchTimeout:  launchTimeout,
		captureTimeout: captureTimeout,
		scanTimeout:    defaultScanTimeout,
		domLimit:       domLimit,
		scanner:        opts.Scanner,
		logger:         opts.Logger,
		run:            chromedp.Run,
	}
}

// budget is the longest a single Render may take.
func (r *Renderer) budget() time.Duration {
	return r.launchTimeout + r.navTimeout + 3*r.captureTimeout + r.scanTimeout
}

// Render implements audit.Renderer. On failure the artifacts captured so far
// are returned together with the error.
func (r *Renderer) Render(ctx context.Context, url string, opts domain.AuditOptions, outDir string) (*audit.RenderResult, error) {
	res := &audit.RenderResult{}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("browser: ensure out dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.budget())
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := r.launch(browserCtx, cancelBrowser); err != nil {
		return res, fmt.Errorf("browser: launch: %w", err)
	}

	width, height := opts.Viewport()
	emulate := []chromedp.EmulateViewportOption{chromedp.EmulateScale(1)}
	if opts.IsMobile() {
		emulate = append(emulate, chromedp.EmulateMobile)
	}

	r.logger.Debug().Str("url", url).Int("width", width).Int("height", height).Msg("browser: navigate")
	if err := r.step(browserCtx, r.navTimeout,
		chromedp.EmulateViewport(int64(width), int64(height), emulate...),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return res, fmt.Errorf("browser: navigate: %w", err)
	}

	var above []byte
	if err := r.step(browserCtx, r.captureTimeout, chromedp.CaptureScreenshot(&above)); err != nil {
		return res, fmt.Errorf("browser: screenshot: %w", err)
	}
	path, err := writeArtifact(outDir, aboveFoldFile, above)
	if err != nil {
		return res, err
	}
	res.Screenshots = append(res.Screenshots, path)

	var full []byte
	if err := r.step(browserCtx, r.captureTimeout, chromedp.FullScreenshot(&full, 100)); err != nil {
		r.logger.Debug().Err(err).Str("url", url).Msg("browser: full page screenshot skipped")
	} else if path, err := writeArtifact(outDir, fullPageFile, full); err == nil {
		res.Screenshots = append(res.Screenshots, path)
	}

	var html string
	if err := r.step(browserCtx, r.captureTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return res, fmt.Errorf("browser: dom snapshot: %w", err)
	}
	domPath, err := writeArtifact(outDir, domSampleFile, []byte(truncateUTF8(html, r.domLimit)))
	if err != nil {
		return res, err
	}
	res.DOMSamplePath = domPath

	if axeRaw, err := r.scan(browserCtx); err != nil {
		r.logger.Info().Err(err).Str("url", url).Msg("browser: axe unavailable")
	} else {
		res.Axe = axeRaw
	}
	return res, nil
}

// launch starts the browser. The first run owns the browser lifetime and
// cannot carry its own deadline, so a stalled start cancels the browser context.
func (r *Renderer) launch(browserCtx context.Context, cancelBrowser context.CancelFunc) error {
	done := make(chan error, 1)
	go func() { done <- r.run(browserCtx) }()

	timer := time.NewTimer(r.launchTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		cancelBrowser()
		<-done
		return fmt.Errorf("no response after %s", r.launchTimeout)
	}
}

// step runs actions under their own deadline.
func (r *Renderer) step(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.run(stepCtx, actions...)
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", r.headless), chromedp.DisableGPU)
	if r.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}
	return opts
}

func (r *Renderer) scan(ctx context.Context) (json.RawMessage, error) {
	if r.scanner == nil {
		return nil, errors.New("no accessibility scanner configured")
	}
	scanCtx, cancel := context.WithTimeout(ctx, r.scanTimeout)
	defer cancel()
	script, err := r.scanner.Script(scanCtx)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := r.run(scanCtx,
		chromedp.Evaluate(script, nil),
		chromedp.Evaluate(axe.RunExpression, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	); err != nil {
		return nil, fmt.Errorf("axe run: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errors.New("axe run: invalid result")
	}
	return json.RawMessage(raw), nil
}

func writeArtifact(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("browser: write %s: %w", name, err)
	}
	return path, nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
