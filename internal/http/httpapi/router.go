package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"uxforge/internal/http/handlers"
	"uxforge/internal/infra"
	"uxforge/internal/middleware"
)

type RouterOptions struct {
	CORSOrigins     []string
	RateLimitPerMin int
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/health", app.Health)

	limit := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Route("/audit", func(r chi.Router) {
		r.With(limit).Post("/", app.StartAudit)
		r.Get("/{id}", app.AuditStatus)
	})
	r.Route("/generate", func(r chi.Router) {
		r.With(limit).Post("/", app.StartGeneration)
		r.Get("/{id}", app.GenerationStatus)
		r.Get("/{id}/archive", app.GenerationArchive)
	})

	return r
}
