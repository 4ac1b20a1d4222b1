package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"uxforge/internal/audit"
	"uxforge/internal/domain"
)

const (
	defaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls the PageSpeed Insights API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    base,
		httpClient: client,
	}
}

// Score runs a Lighthouse report for target. Without an API key the request is
// still attempted against the anonymous quota.
func (c *Client) Score(ctx context.Context, target, strategy string) (*audit.ScoreResult, error) {
	if c == nil {
		return nil, errors.New("pagespeed: client not configured")
	}
	params := url.Values{}
	params.Set("url", target)
	params.Set("strategy", strategy)
	for _, category := range []string{"PERFORMANCE", "ACCESSIBILITY", "SEO"} {
		params.Add("category", category)
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pagespeed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("pagespeed: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: pagespeed status %d: %s", domain.ErrProviderFailure, resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: pagespeed returned invalid json", domain.ErrProviderFailure)
	}
	return &audit.ScoreResult{
		Scores: ParseScores(body),
		Raw:    json.RawMessage(body),
	}, nil
}

// ParseScores extracts 0-100 category scores from a runPagespeed payload. The
// seo category is reported as usability.
func ParseScores(payload []byte) domain.Scores {
	categories := gjson.GetBytes(payload, "lighthouseResult.categories")
	return domain.Scores{
		Performance:   categoryScore(categories, "performance"),
		Accessibility: categoryScore(categories, "accessibility"),
		Usability:     categoryScore(categories, "seo"),
	}
}

func categoryScore(categories gjson.Result, name string) *int {
	score := categories.Get(name + ".score")
	if !score.Exists() || score.Type != gjson.Number {
		return nil
	}
	v := int(math.Round(score.Float() * 100))
	return &v
}
