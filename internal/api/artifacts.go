package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/psicoclima/psicoclima-backend/internal/narrative"
	"github.com/psicoclima/psicoclima-backend/internal/store"
	"github.com/psicoclima/psicoclima-backend/internal/worker"
)

// ─── POST /api/assessments/:assessmentID/report ──────────────────────────────

// handleGenerateReport generates a report synchronously and persists it as a
// new artifact row. Regeneration is always allowed — each run appends to the
// history, it never replaces earlier artifacts.
//
// The assessment must be closed: a report over a still-moving response set
// would be stale the moment it is written.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	assessmentID, ok := urlUUID(w, r, "assessmentID")
	if !ok {
		return
	}

	assessment, err := s.q.GetAssessmentByID(r.Context(), assessmentID)
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get assessment: %w", err))
		return
	}
	if assessment.Status != db.AssessmentClosed {
		respondErr(w, http.StatusConflict, "assessment must be closed before generating a report")
		return
	}

	summary, err := s.loadSummary(r.Context(), assessment)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	report, attempts, err := s.service.GenerateReport(r.Context(), summary)
	if errors.Is(err, narrative.ErrInsufficientData) {
		respondErrCode(w, http.StatusUnprocessableEntity, "INSUFFICIENT_DATA",
			"not enough participants to generate a report")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("generate report: %w", err))
		return
	}

	artifact, err := s.store.SaveArtifact(r.Context(), store.SaveArtifactParams{
		AssessmentID: assessmentID,
		Kind:         db.ArtifactReport,
		Title:        worker.ReportTitle(assessment.QuestionnaireKind),
		Payload:      report,
		DecisionLog:  attempts,
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("save report artifact: %w", err))
		return
	}

	respond(w, http.StatusCreated, map[string]any{
		"success":     true,
		"artifact_id": artifact.ID.String(),
		"report":      report,
	})
}

// ─── POST /api/assessments/:assessmentID/action-plan ─────────────────────────

type actionPlanRequest struct {
	HighRiskCategories []string `json:"high_risk_categories"`
}

// handleGenerateActionPlan generates an action plan from the current
// aggregates. Unlike the report it does not require a closed assessment —
// a partial plan over live data is useful mid-collection. An empty category
// list means "derive the high-risk categories from the data".
func (s *Server) handleGenerateActionPlan(w http.ResponseWriter, r *http.Request) {
	assessmentID, ok := urlUUID(w, r, "assessmentID")
	if !ok {
		return
	}

	var req actionPlanRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	assessment, err := s.q.GetAssessmentByID(r.Context(), assessmentID)
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get assessment: %w", err))
		return
	}

	summary, err := s.loadSummary(r.Context(), assessment)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	plan, attempts, err := s.service.GenerateActionPlan(r.Context(), summary, req.HighRiskCategories)
	if errors.Is(err, narrative.ErrInsufficientData) {
		respondErrCode(w, http.StatusUnprocessableEntity, "INSUFFICIENT_DATA",
			"not enough participants to generate an action plan")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("generate action plan: %w", err))
		return
	}

	artifact, err := s.store.SaveArtifact(r.Context(), store.SaveArtifactParams{
		AssessmentID: assessmentID,
		Kind:         db.ArtifactActionPlan,
		Title:        "Plano de Ação",
		Payload:      plan,
		DecisionLog:  attempts,
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("save action plan artifact: %w", err))
		return
	}

	respond(w, http.StatusCreated, map[string]any{
		"success":     true,
		"artifact_id": artifact.ID.String(),
		"action_plan": plan,
	})
}

// ─── GET /api/assessments/:assessmentID/artifacts ────────────────────────────

type artifactResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Title       string          `json:"title"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	DecisionLog json.RawMessage `json:"decision_log,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// handleListArtifacts returns the full generation history, newest first.
// Failed generations show up too — the history is an audit trail, not a
// gallery of successes.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	assessmentID, ok := urlUUID(w, r, "assessmentID")
	if !ok {
		return
	}

	if _, err := s.q.GetAssessmentByID(r.Context(), assessmentID); errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "assessment not found")
		return
	} else if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get assessment: %w", err))
		return
	}

	artifacts, err := s.q.ListArtifactsByAssessment(r.Context(), assessmentID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list artifacts: %w", err))
		return
	}

	items := make([]artifactResponse, len(artifacts))
	for i, a := range artifacts {
		item := artifactResponse{
			ID:        a.ID.String(),
			Kind:      string(a.Kind),
			Title:     a.Title,
			Status:    string(a.Status),
			CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if a.Payload.Valid {
			item.Payload = json.RawMessage(a.Payload.RawMessage)
		}
		if a.DecisionLog.Valid {
			item.DecisionLog = json.RawMessage(a.DecisionLog.RawMessage)
		}
		items[i] = item
	}

	respond(w, http.StatusOK, map[string]any{"artifacts": items})
}
