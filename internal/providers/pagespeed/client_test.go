package pagespeed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"uxforge/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestScoreParsesCategories(t *testing.T) {
	var captured *http.Request
	client := NewClient(Options{
		APIKey: "k",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			captured = r
			return jsonResponse(200, `{"lighthouseResult":{"categories":{"performance":{"score":0.87},"accessibility":{"score":1},"seo":{"score":null}}}}`), nil
		})},
	})

	res, err := client.Score(context.Background(), "https://example.com", domain.StrategyDesktop)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if res.Scores.Performance == nil || *res.Scores.Performance != 87 {
		t.Fatalf("performance = %v, want 87", res.Scores.Performance)
	}
	if res.Scores.Accessibility == nil || *res.Scores.Accessibility != 100 {
		t.Fatalf("accessibility = %v, want 100", res.Scores.Accessibility)
	}
	if res.Scores.Usability != nil {
		t.Fatalf("usability = %v, want nil", *res.Scores.Usability)
	}
	q := captured.URL.Query()
	if q.Get("strategy") != "desktop" || q.Get("key") != "k" || len(q["category"]) != 3 {
		t.Fatalf("query = %v", q)
	}
}

func TestScoreNon2xxIsError(t *testing.T) {
	client := NewClient(Options{
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(429, `{"error":{"message":"Quota exceeded"}}`), nil
		})},
	})
	_, err := client.Score(context.Background(), "https://example.com", domain.StrategyMobile)
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("err = %v, want ErrProviderFailure", err)
	}
	if !strings.Contains(err.Error(), "Quota exceeded") {
		t.Fatalf("err = %v, want upstream message", err)
	}
}

func TestScoreTransportError(t *testing.T) {
	client := NewClient(Options{
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: timeout")
		})},
	})
	if _, err := client.Score(context.Background(), "https://example.com", domain.StrategyMobile); err == nil {
		t.Fatalf("expected transport error")
	}
}
