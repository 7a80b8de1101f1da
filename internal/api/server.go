// Package api implements the HTTP layer for the PsicoClima backend.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/psicoclima/psicoclima-backend/internal/anonymity"
	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/psicoclima/psicoclima-backend/internal/labels"
	"github.com/psicoclima/psicoclima-backend/internal/narrative"
	"github.com/psicoclima/psicoclima-backend/internal/store"
	"github.com/psicoclima/psicoclima-backend/internal/worker"
)

// Config holds values the HTTP layer reads from environment at startup.
type Config struct {
	// BaseURL is used to construct links in responses and emails.
	// e.g. "https://app.psicoclima.com.br"
	BaseURL string

	// Env is "production", "staging", or "development".
	Env string
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles all single-query reads. Injected directly — no repo wrapper.
	q db.Querier

	// store handles multi-step atomic writes.
	store *store.Store

	// service orchestrates report and action-plan generation.
	service *narrative.Service

	// guard gates response-level detail views below the anonymity floor.
	guard anonymity.Guard

	// catalog resolves category keys to display labels.
	catalog labels.Catalog

	// worker enqueues report generation after an assessment is closed.
	worker worker.Enqueuer

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	q db.Querier,
	st *store.Store,
	service *narrative.Service,
	guard anonymity.Guard,
	catalog labels.Catalog,
	enqueuer worker.Enqueuer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		q:       q,
		store:   st,
		service: service,
		guard:   guard,
		catalog: catalog,
		worker:  enqueuer,
		cfg:     cfg,
		logger:  logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(120 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API v1 ────────────────────────────────────────────────────────────────
	// Authorization lives in the gateway in front of this service; by the time
	// a request lands here the caller is already allowed to see the
	// assessment.
	r.Route("/api/assessments/{assessmentID}", func(r chi.Router) {
		r.Post("/responses", s.handleIngestResponses)
		r.Post("/close", s.handleCloseAssessment)

		r.Get("/summary", s.handleGetSummary)
		r.Get("/responses", s.handleGetResponses)

		r.Post("/report", s.handleGenerateReport)
		r.Post("/action-plan", s.handleGenerateActionPlan)
		r.Get("/artifacts", s.handleListArtifacts)
	})

	return r
}
