package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
	"uxforge/internal/jobs"
)

const maxBodyBytes = 1 << 20

// JobService is the job facade the handlers drive.
type JobService interface {
	StartAudit(ctx context.Context, req jobs.AuditRequest) (string, error)
	PollAudit(id string) (domain.Job, error)
	StartGeneration(ctx context.Context, req jobs.GenerateRequest) (string, error)
	PollGeneration(id string) (domain.Job, error)
}

type App struct {
	Jobs   JobService
	Logger infra.Logger
}

func NewApp(svc JobService, logger infra.Logger) *App {
	return &App{Jobs: svc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// fail maps service errors onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		a.error(w, http.StatusBadRequest, "invalid_url", err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrPreconditionFailed):
		a.error(w, http.StatusBadRequest, "precondition_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// Health is the liveness probe.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
