package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"uxforge/internal/domain"
	"uxforge/internal/jobs"
)

type fakeJobs struct {
	startAudit func(jobs.AuditRequest) (string, error)
	startGen   func(jobs.GenerateRequest) (string, error)
	jobs       map[string]domain.Job
}

func (f *fakeJobs) StartAudit(_ context.Context, req jobs.AuditRequest) (string, error) {
	return f.startAudit(req)
}

func (f *fakeJobs) PollAudit(id string) (domain.Job, error) {
	return f.poll(id)
}

func (f *fakeJobs) StartGeneration(_ context.Context, req jobs.GenerateRequest) (string, error) {
	return f.startGen(req)
}

func (f *fakeJobs) PollGeneration(id string) (domain.Job, error) {
	return f.poll(id)
}

func (f *fakeJobs) poll(id string) (domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return job, nil
}

func newTestRouter(svc JobService) http.Handler {
	app := NewApp(svc, zerolog.Nop())
	r := chi.NewRouter()
	r.Get("/health", app.Health)
	r.Post("/audit", app.StartAudit)
	r.Get("/audit/{id}", app.AuditStatus)
	r.Post("/generate", app.StartGeneration)
	r.Get("/generate/{id}", app.GenerationStatus)
	r.Get("/generate/{id}/archive", app.GenerationArchive)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(&fakeJobs{}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestStartAudit(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "accepted", body: `{"url":"https://example.com"}`, wantCode: http.StatusAccepted},
		{name: "invalid json", body: `{"url":`, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "invalid url", body: `{"url":"ftp://x"}`, err: domain.ErrInvalidURL, wantCode: http.StatusBadRequest, wantErr: "invalid_url"},
		{name: "internal", body: `{"url":"https://example.com"}`, err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantErr: "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got jobs.AuditRequest
			svc := &fakeJobs{startAudit: func(req jobs.AuditRequest) (string, error) {
				got = req
				if tc.err != nil {
					return "", fmt.Errorf("start: %w", tc.err)
				}
				return "a-1", nil
			}}
			rec := do(t, newTestRouter(svc), http.MethodPost, "/audit", tc.body)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if tc.wantErr != "" {
				if code := errorCode(t, rec); code != tc.wantErr {
					t.Fatalf("error code = %q, want %q", code, tc.wantErr)
				}
				return
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["audit_id"] != "a-1" {
				t.Fatalf("audit_id = %q", body["audit_id"])
			}
			if got.URL != "https://example.com" {
				t.Fatalf("forwarded url = %q", got.URL)
			}
		})
	}
}

func TestStartGeneration(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "accepted", wantCode: http.StatusAccepted},
		{name: "bad request", err: domain.ErrBadRequest, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "audit not done", err: domain.ErrPreconditionFailed, wantCode: http.StatusBadRequest, wantErr: "precondition_failed"},
		{name: "unknown audit", err: domain.ErrNotFound, wantCode: http.StatusNotFound, wantErr: "not_found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got jobs.GenerateRequest
			svc := &fakeJobs{startGen: func(req jobs.GenerateRequest) (string, error) {
				got = req
				if tc.err != nil {
					return "", tc.err
				}
				return "g-1", nil
			}}
			body := `{"audit_id":"a-1","tone":"bold","preferences":{"brand_colors":["#112233"]}}`
			rec := do(t, newTestRouter(svc), http.MethodPost, "/generate", body)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantErr != "" {
				if code := errorCode(t, rec); code != tc.wantErr {
					t.Fatalf("error code = %q, want %q", code, tc.wantErr)
				}
				return
			}
			if !strings.Contains(rec.Body.String(), `"job_id":"g-1"`) {
				t.Fatalf("body = %s", rec.Body.String())
			}
			if got.AuditID != "a-1" || got.Tone != "bold" || got.Preferences == nil || len(got.Preferences.BrandColors) != 1 {
				t.Fatalf("forwarded request = %+v", got)
			}
		})
	}
}

func TestJobStatus(t *testing.T) {
	svc := &fakeJobs{jobs: map[string]domain.Job{
		"a-1": {Status: domain.JobStatusDone, Result: json.RawMessage(`{"url":"https://example.com"}`)},
		"g-1": {Status: domain.JobStatusError, Error: &domain.JobError{Error: "agent failed", Traceback: "stack"}},
	}}
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodGet, "/audit/a-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	var done map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if done["status"] != "done" || done["result"] == nil {
		t.Fatalf("audit body = %v", done)
	}
	if _, ok := done["error"]; ok {
		t.Fatalf("done job must not carry error: %v", done)
	}

	rec = do(t, h, http.MethodGet, "/generate/g-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("generation status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"traceback":"stack"`) {
		t.Fatalf("generation body = %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/audit/missing", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("missing status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestGenerationArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "next_project.zip")
	if err := os.WriteFile(zipPath, []byte("PK\x03\x04"), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
	result := func(path string) json.RawMessage {
		raw, err := json.Marshal(domain.GenerationResult{Project: &domain.GeneratedProject{Backend: domain.BackendLocal, ZipPath: path}})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return raw
	}

	svc := &fakeJobs{jobs: map[string]domain.Job{
		"ready":   {Status: domain.JobStatusDone, Result: result(zipPath)},
		"running": {Status: domain.JobStatusRunning},
		"remote":  {Status: domain.JobStatusDone, Result: result("")},
		"gone":    {Status: domain.JobStatusDone, Result: result(filepath.Join(dir, "deleted.zip"))},
	}}
	h := newTestRouter(svc)

	tests := []struct {
		id       string
		wantCode int
		wantErr  string
	}{
		{id: "ready", wantCode: http.StatusOK},
		{id: "running", wantCode: http.StatusConflict, wantErr: "not_ready"},
		{id: "remote", wantCode: http.StatusNotFound, wantErr: "not_found"},
		{id: "gone", wantCode: http.StatusGone, wantErr: "gone"},
		{id: "missing", wantCode: http.StatusNotFound, wantErr: "not_found"},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/generate/"+tc.id+"/archive", "")
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantErr != "" {
				if code := errorCode(t, rec); code != tc.wantErr {
					t.Fatalf("error code = %q, want %q", code, tc.wantErr)
				}
				return
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
				t.Fatalf("content type = %q", ct)
			}
			if !strings.Contains(rec.Header().Get("Content-Disposition"), "ready-next_project.zip") {
				t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
			}
			if rec.Body.String() != "PK\x03\x04" {
				t.Fatalf("body = %q", rec.Body.String())
			}
		})
	}
}
