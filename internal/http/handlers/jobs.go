package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"uxforge/internal/domain"
	"uxforge/internal/jobs"
)

func (a *App) StartAudit(w http.ResponseWriter, r *http.Request) {
	var req jobs.AuditRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.Jobs.StartAudit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"audit_id": id})
}

func (a *App) AuditStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.PollAudit(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) StartGeneration(w http.ResponseWriter, r *http.Request) {
	var req jobs.GenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.Jobs.StartGeneration(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.PollGeneration(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

// GenerationArchive streams the zipped project of a finished local generation.
func (a *App) GenerationArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Jobs.PollGeneration(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if job.Status != domain.JobStatusDone {
		a.error(w, http.StatusConflict, "not_ready", "generation is "+string(job.Status))
		return
	}
	var result domain.GenerationResult
	if err := json.Unmarshal(job.Result, &result); err != nil || result.Project == nil || result.Project.ZipPath == "" {
		a.error(w, http.StatusNotFound, "not_found", "no archive for this job")
		return
	}
	if _, err := os.Stat(result.Project.ZipPath); err != nil {
		a.error(w, http.StatusGone, "gone", "archive no longer available")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+"-"+filepath.Base(result.Project.ZipPath)+`"`)
	http.ServeFile(w, r, result.Project.ZipPath)
}
