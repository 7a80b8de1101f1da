package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/psicoclima/psicoclima-backend/internal/stats"
	"github.com/psicoclima/psicoclima-backend/internal/store"
)

// ─── POST /api/assessments/:assessmentID/responses ───────────────────────────

// answerInput is one answer in an ingestion batch. Value accepts either a
// JSON string or a JSON number — frontends send whatever the widget holds.
type answerInput struct {
	QuestionID string          `json:"question_id"`
	Value      json.RawMessage `json:"value"`
}

type ingestRequest struct {
	AnonymousID string        `json:"anonymous_id"`
	Answers     []answerInput `json:"answers"`
}

// handleIngestResponses stores one respondent's batch of answers. The batch
// is atomic: all answers commit or none do. Each value is normalized once
// here — downstream aggregation never re-parses raw text.
func (s *Server) handleIngestResponses(w http.ResponseWriter, r *http.Request) {
	assessmentID, ok := urlUUID(w, r, "assessmentID")
	if !ok {
		return
	}

	var req ingestRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AnonymousID == "" {
		respondErr(w, http.StatusBadRequest, "anonymous_id is required")
		return
	}
	if len(req.Answers) == 0 {
		respondErr(w, http.StatusBadRequest, "answers must not be empty")
		return
	}

	inputs := make([]store.ResponseInput, len(req.Answers))
	for i, a := range req.Answers {
		if a.QuestionID == "" {
			respondErr(w, http.StatusBadRequest, "answers[].question_id is required")
			return
		}
		raw := rawValueString(a.Value)
		value := stats.ParseValue(raw)
		numeric := sql.NullFloat64{}
		if value.IsNumber {
			numeric = sql.NullFloat64{Float64: value.Number, Valid: true}
		}
		inputs[i] = store.ResponseInput{
			AnonymousID:  req.AnonymousID,
			QuestionID:   a.QuestionID,
			RawValue:     raw,
			NumericValue: numeric,
		}
	}

	inserted, err := s.store.IngestResponses(r.Context(), assessmentID, inputs)
	if errors.Is(err, store.ErrAssessmentClosed) {
		respondErr(w, http.StatusConflict, "assessment is closed")
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("ingest responses: %w", err))
		return
	}

	respond(w, http.StatusCreated, map[string]any{
		"success":  true,
		"inserted": inserted,
	})
}

// rawValueString normalizes the incoming JSON value to its textual form.
// A JSON string is unquoted; anything else (number, bool) is kept as its
// literal JSON text.
func rawValueString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ─── POST /api/assessments/:assessmentID/close ───────────────────────────────

// handleCloseAssessment transitions the assessment to closed and enqueues
// the automatic report. Closing an already-closed assessment is a 409 —
// the close is an explicit state transition, not an idempotent upsert.
func (s *Server) handleCloseAssessment(w http.ResponseWriter, r *http.Request) {
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
	if assessment.Status != db.AssessmentOpen {
		respondErr(w, http.StatusConflict, "assessment is already closed")
		return
	}

	closed, err := s.q.CloseAssessment(r.Context(), assessmentID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("close assessment: %w", err))
		return
	}

	// Enqueue failure is not fatal: the worker's poller recovers any closed
	// assessment without a report.
	if err := s.worker.Enqueue(r.Context(), assessmentID); err != nil {
		s.logger.Warn("close: enqueue failed, poller will recover",
			"assessment_id", assessmentID,
			"error", err,
		)
	}

	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    string(closed.Status),
		"closed_at": closed.ClosedAt.Time.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// ─── GET /api/assessments/:assessmentID/summary ──────────────────────────────

// handleGetSummary returns the aggregate view of an assessment. Aggregates
// are always visible — they expose no individual answers.
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
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

	summary, err := s.loadSummary(r.Context(), assessment)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, summary)
}

// ─── GET /api/assessments/:assessmentID/responses ────────────────────────────

type responseDetail struct {
	AnonymousID  string `json:"anonymous_id"`
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	Category     string `json:"category"`
	Value        string `json:"value"`
	CreatedAt    string `json:"created_at"`
}

// handleGetResponses returns the response-level detail view, gated by the
// anonymity floor. Below the floor the caller gets the suppression envelope
// and nothing else — not an empty list, which would leak "zero vs hidden".
func (s *Server) handleGetResponses(w http.ResponseWriter, r *http.Request) {
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

	rows, err := s.q.GetResponsesByAssessment(r.Context(), assessmentID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get responses: %w", err))
		return
	}

	participants := countParticipants(rows)
	if result := s.guard.Check(participants); result.Suppressed {
		respond(w, http.StatusOK, result)
		return
	}

	details := make([]responseDetail, len(rows))
	for i, row := range rows {
		details[i] = responseDetail{
			AnonymousID:  row.AnonymousID,
			QuestionID:   row.QuestionID,
			QuestionText: row.QuestionText,
			Category:     row.Category,
			Value:        row.RawValue,
			CreatedAt:    row.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	respond(w, http.StatusOK, map[string]any{
		"suppressed": false,
		"responses":  details,
	})
}

// ─── SHARED HELPERS ──────────────────────────────────────────────────────────

// loadSummary fetches an assessment's responses and aggregates them. Used by
// the summary endpoint and both generation endpoints.
func (s *Server) loadSummary(ctx context.Context, assessment db.Assessment) (stats.Summary, error) {
	rows, err := s.q.GetResponsesByAssessment(ctx, assessment.ID)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("get responses: %w", err)
	}

	totalQuestions, err := s.q.CountQuestions(ctx, assessment.QuestionnaireKind)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("count questions: %w", err)
	}

	return stats.Aggregate(toStatRows(rows), int(totalQuestions)), nil
}

// toStatRows maps joined database rows into the aggregation input shape.
// The numeric value resolved at ingestion wins; rows ingested before the
// normalization existed fall back to re-parsing the raw text.
func toStatRows(rows []db.GetResponsesByAssessmentRow) []stats.ResponseRow {
	out := make([]stats.ResponseRow, len(rows))
	for i, r := range rows {
		value := stats.ParseValue(r.RawValue)
		if r.NumericValue.Valid {
			value = stats.Value{Raw: r.RawValue, Number: r.NumericValue.Float64, IsNumber: true}
		}
		out[i] = stats.ResponseRow{
			AnonymousID:  r.AnonymousID,
			QuestionID:   r.QuestionID,
			QuestionText: r.QuestionText,
			Category:     r.Category,
			Type:         stats.QuestionType(r.Qtype),
			ScaleMax:     int(r.ScaleMax),
			Value:        value,
		}
	}
	return out
}

func countParticipants(rows []db.GetResponsesByAssessmentRow) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[r.AnonymousID] = struct{}{}
	}
	return len(seen)
}
