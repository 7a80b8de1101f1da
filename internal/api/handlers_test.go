package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/psicoclima/psicoclima-backend/internal/anonymity"
	"github.com/psicoclima/psicoclima-backend/internal/api"
	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/psicoclima/psicoclima-backend/internal/labels"
	"github.com/psicoclima/psicoclima-backend/internal/narrative"
	"github.com/psicoclima/psicoclima-backend/internal/store"
	"github.com/psicoclima/psicoclima-backend/internal/worker"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubQuerier satisfies db.Querier with in-memory state.
// Fields may be set per-test to control behaviour.
type stubQuerier struct {
	db.Querier // embedded to panic on unimplemented methods

	assessments   map[uuid.UUID]db.Assessment
	responses     map[uuid.UUID][]db.GetResponsesByAssessmentRow
	artifacts     map[uuid.UUID][]db.GeneratedArtifact
	questionCount int64
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{
		assessments:   make(map[uuid.UUID]db.Assessment),
		responses:     make(map[uuid.UUID][]db.GetResponsesByAssessmentRow),
		artifacts:     make(map[uuid.UUID][]db.GeneratedArtifact),
		questionCount: 2,
	}
}

func (q *stubQuerier) GetAssessmentByID(_ context.Context, id uuid.UUID) (db.Assessment, error) {
	a, ok := q.assessments[id]
	if !ok {
		return db.Assessment{}, sql.ErrNoRows
	}
	return a, nil
}

func (q *stubQuerier) CloseAssessment(_ context.Context, id uuid.UUID) (db.Assessment, error) {
	a, ok := q.assessments[id]
	if !ok {
		return db.Assessment{}, sql.ErrNoRows
	}
	a.Status = db.AssessmentClosed
	a.ClosedAt = sql.NullTime{Time: time.Now(), Valid: true}
	q.assessments[id] = a
	return a, nil
}

func (q *stubQuerier) CountQuestions(_ context.Context, _ db.QuestionnaireKind) (int64, error) {
	return q.questionCount, nil
}

func (q *stubQuerier) GetResponsesByAssessment(_ context.Context, id uuid.UUID) ([]db.GetResponsesByAssessmentRow, error) {
	return q.responses[id], nil
}

func (q *stubQuerier) InsertArtifact(_ context.Context, p db.InsertArtifactParams) (db.GeneratedArtifact, error) {
	a := db.GeneratedArtifact{
		ID:           uuid.New(),
		AssessmentID: p.AssessmentID,
		Kind:         p.Kind,
		Title:        p.Title,
		Payload:      p.Payload,
		DecisionLog:  p.DecisionLog,
		Status:       p.Status,
		CreatedAt:    time.Now(),
	}
	q.artifacts[p.AssessmentID] = append(q.artifacts[p.AssessmentID], a)
	return a, nil
}

func (q *stubQuerier) ListArtifactsByAssessment(_ context.Context, id uuid.UUID) ([]db.GeneratedArtifact, error) {
	return q.artifacts[id], nil
}

// stubWorker records enqueued assessments.
type stubWorker struct {
	enqueued []uuid.UUID
	err      error
}

func (w *stubWorker) Enqueue(_ context.Context, id uuid.UUID) error {
	w.enqueued = append(w.enqueued, id)
	return w.err
}

var _ worker.Enqueuer = (*stubWorker)(nil)

// ─── HELPERS ─────────────────────────────────────────────────────────────────

type testDeps struct {
	q       *stubQuerier
	worker  *stubWorker
	handler http.Handler
}

// newTestServer wires a real Server around the stub querier. The narrative
// service runs with zero providers, so generation always takes the
// deterministic template path.
func newTestServer(t *testing.T, anonymityFloor int) *testDeps {
	t.Helper()

	q := newStubQuerier()
	wk := &stubWorker{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := labels.Default()
	service := narrative.NewService(nil, catalog, 3, logger)

	handler := api.NewServer(
		q,
		store.New(nil, q), // pool unused: stub paths never open a transaction
		service,
		anonymity.New(anonymityFloor),
		catalog,
		wk,
		api.Config{Env: "development", BaseURL: "http://localhost:8080"},
		logger,
	)

	return &testDeps{q: q, worker: wk, handler: handler}
}

func (d *testDeps) addAssessment(status db.AssessmentStatus) uuid.UUID {
	id := uuid.New()
	d.q.assessments[id] = db.Assessment{
		ID:                id,
		OrganizationID:    uuid.New(),
		QuestionnaireKind: db.KindRisk,
		Status:            status,
		CreatedAt:         time.Now(),
	}
	return id
}

func (d *testDeps) addScaleResponse(assessmentID uuid.UUID, anonID, questionID, category, raw string, numeric float64) {
	d.q.responses[assessmentID] = append(d.q.responses[assessmentID], db.GetResponsesByAssessmentRow{
		ID:           uuid.New(),
		AnonymousID:  anonID,
		QuestionID:   questionID,
		RawValue:     raw,
		NumericValue: sql.NullFloat64{Float64: numeric, Valid: true},
		CreatedAt:    time.Now(),
		QuestionText: "pergunta " + questionID,
		Category:     category,
		Qtype:        "scale",
		ScaleMax:     5,
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response body: %v\nbody: %s", err, rec.Body.String())
	}
	return out
}

// seedThreeParticipants loads enough responses to clear the generation floor,
// with a high-risk "demands" category.
func (d *testDeps) seedThreeParticipants(id uuid.UUID) {
	d.addScaleResponse(id, "u1", "q1", "demands", "1", 1)
	d.addScaleResponse(id, "u2", "q1", "demands", "2", 2)
	d.addScaleResponse(id, "u3", "q1", "demands", "1", 1)
	d.addScaleResponse(id, "u1", "q2", "support", "5", 5)
	d.addScaleResponse(id, "u2", "q2", "support", "4", 4)
}

// ─── POST /responses ─────────────────────────────────────────────────────────

func TestIngestResponses_Validation(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"invalid uuid", "/api/assessments/not-a-uuid/responses",
			map[string]any{"anonymous_id": "u1", "answers": []map[string]any{{"question_id": "q1", "value": "4"}}},
			http.StatusBadRequest},
		{"missing anonymous_id", "/api/assessments/" + id.String() + "/responses",
			map[string]any{"answers": []map[string]any{{"question_id": "q1", "value": "4"}}},
			http.StatusBadRequest},
		{"empty answers", "/api/assessments/" + id.String() + "/responses",
			map[string]any{"anonymous_id": "u1", "answers": []map[string]any{}},
			http.StatusBadRequest},
		{"answer missing question_id", "/api/assessments/" + id.String() + "/responses",
			map[string]any{"anonymous_id": "u1", "answers": []map[string]any{{"value": "4"}}},
			http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, d.handler, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

// ─── POST /close ─────────────────────────────────────────────────────────────

func TestCloseAssessment_EnqueuesReport(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen)

	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["status"] != "closed" {
		t.Errorf("status field = %v, want closed", body["status"])
	}
	if len(d.worker.enqueued) != 1 || d.worker.enqueued[0] != id {
		t.Errorf("enqueued = %v, want [%s]", d.worker.enqueued, id)
	}
}

func TestCloseAssessment_AlreadyClosed(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentClosed)

	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/close", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if len(d.worker.enqueued) != 0 {
		t.Errorf("enqueued = %v, want none for a repeated close", d.worker.enqueued)
	}
}

func TestCloseAssessment_NotFound(t *testing.T) {
	d := newTestServer(t, 0)
	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+uuid.NewString()+"/close", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCloseAssessment_EnqueueFailureStillCloses(t *testing.T) {
	d := newTestServer(t, 0)
	d.worker.err = context.DeadlineExceeded
	id := d.addAssessment(db.AssessmentOpen)

	// The poller recovers missed work, so a full queue must not fail the close.
	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite enqueue failure", rec.Code)
	}
}

// ─── GET /summary ────────────────────────────────────────────────────────────

func TestGetSummary(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen)
	d.seedThreeParticipants(id)

	rec := doRequest(t, d.handler, http.MethodGet, "/api/assessments/"+id.String()+"/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if got := body["total_participants"].(float64); got != 3 {
		t.Errorf("total_participants = %v, want 3", got)
	}
	scores := body["category_scores"].([]any)
	if len(scores) != 2 {
		t.Fatalf("got %d category scores, want 2", len(scores))
	}
	demands := scores[0].(map[string]any)
	if demands["category"] != "demands" || demands["risk_level"] != "high" {
		t.Errorf("first category = %v, want high-risk demands", demands)
	}
}

func TestGetSummary_NotFound(t *testing.T) {
	d := newTestServer(t, 0)
	rec := doRequest(t, d.handler, http.MethodGet, "/api/assessments/"+uuid.NewString()+"/summary", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// ─── GET /responses ──────────────────────────────────────────────────────────

func TestGetResponses_SuppressedBelowFloor(t *testing.T) {
	d := newTestServer(t, 10)
	id := d.addAssessment(db.AssessmentOpen)
	d.seedThreeParticipants(id) // 3 distinct participants, floor 10

	rec := doRequest(t, d.handler, http.MethodGet, "/api/assessments/"+id.String()+"/responses", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["suppressed"] != true {
		t.Fatalf("suppressed = %v, want true", body["suppressed"])
	}
	if got := body["remaining"].(float64); got != 7 {
		t.Errorf("remaining = %v, want 7", got)
	}
	if got := body["percent_complete"].(float64); got != 30 {
		t.Errorf("percent_complete = %v, want 30", got)
	}
	// The suppression envelope must not carry the detail rows.
	if _, leaked := body["responses"]; leaked {
		t.Error("suppressed response leaked the detail list")
	}
}

func TestGetResponses_FullDetailAtFloor(t *testing.T) {
	d := newTestServer(t, 3)
	id := d.addAssessment(db.AssessmentOpen)
	d.seedThreeParticipants(id)

	rec := doRequest(t, d.handler, http.MethodGet, "/api/assessments/"+id.String()+"/responses", nil)
	body := decodeBody(t, rec)
	if body["suppressed"] != false {
		t.Fatalf("suppressed = %v, want false", body["suppressed"])
	}
	responses := body["responses"].([]any)
	if len(responses) != 5 {
		t.Errorf("got %d responses, want 5", len(responses))
	}
}

// ─── POST /report ────────────────────────────────────────────────────────────

func TestGenerateReport_RequiresClosedAssessment(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen)
	d.seedThreeParticipants(id)

	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/report", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for open assessment", rec.Code)
	}
}

func TestGenerateReport_Success(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentClosed)
	d.seedThreeParticipants(id)

	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/report", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	report := body["report"].(map[string]any)
	if report["executive_summary"] == "" {
		t.Error("report has empty executive summary")
	}

	// The artifact was persisted with its decision log.
	saved := d.q.artifacts[id]
	if len(saved) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(saved))
	}
	if saved[0].Kind != db.ArtifactReport || saved[0].Status != db.ArtifactCompleted {
		t.Errorf("artifact = kind %q status %q, want completed report", saved[0].Kind, saved[0].Status)
	}
	if !saved[0].DecisionLog.Valid {
		t.Error("artifact has no decision log")
	}
}

func TestGenerateReport_InsufficientData(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentClosed)
	d.addScaleResponse(id, "u1", "q1", "demands", "1", 1)
	d.addScaleResponse(id, "u2", "q1", "demands", "2", 2)

	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/report", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["code"] != "INSUFFICIENT_DATA" {
		t.Errorf("code = %v, want INSUFFICIENT_DATA", body["code"])
	}
	// Nothing is persisted for a refused generation.
	if len(d.q.artifacts[id]) != 0 {
		t.Errorf("got %d artifacts, want 0", len(d.q.artifacts[id]))
	}
}

// ─── POST /action-plan ───────────────────────────────────────────────────────

func TestGenerateActionPlan_Success(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen) // plans do not require a close
	d.seedThreeParticipants(id)

	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/action-plan",
		map[string]any{"high_risk_categories": []string{"demands"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	plan := body["action_plan"].(map[string]any)
	actions := plan["actions"].([]any)
	if len(actions) != 2 {
		t.Errorf("got %d actions, want 2 blueprints for one category", len(actions))
	}

	saved := d.q.artifacts[id]
	if len(saved) != 1 || saved[0].Kind != db.ArtifactActionPlan {
		t.Errorf("artifacts = %+v, want single action plan", saved)
	}
}

// chunkedBody hides the concrete reader type so httptest.NewRequest sets
// ContentLength to -1, as a chunked transfer does.
type chunkedBody struct{ io.Reader }

func TestGenerateActionPlan_ChunkedBodyHonored(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen)
	d.seedThreeParticipants(id)

	// The seeded data derives ["demands"]; the explicit body names support
	// instead. If the body were skipped, the plan would target demands.
	raw, err := json.Marshal(map[string]any{"high_risk_categories": []string{"support"}})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost,
		"/api/assessments/"+id.String()+"/action-plan",
		chunkedBody{bytes.NewReader(raw)})
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	actions := body["action_plan"].(map[string]any)["actions"].([]any)
	if len(actions) == 0 {
		t.Fatal("plan has no actions")
	}
	for _, a := range actions {
		if got := a.(map[string]any)["category"]; got != "support" {
			t.Errorf("action category = %v, want support from the request body", got)
		}
	}
}

func TestGenerateActionPlan_EmptyBodyAllowed(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen)
	d.seedThreeParticipants(id)

	// No body at all: categories derive from the summary.
	rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/action-plan", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
}

// ─── GET /artifacts ──────────────────────────────────────────────────────────

func TestListArtifacts(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentClosed)
	d.seedThreeParticipants(id)

	// Generate twice: history keeps both.
	for i := 0; i < 2; i++ {
		rec := doRequest(t, d.handler, http.MethodPost, "/api/assessments/"+id.String()+"/report", nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("generate %d: status = %d", i, rec.Code)
		}
	}

	rec := doRequest(t, d.handler, http.MethodGet, "/api/assessments/"+id.String()+"/artifacts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	artifacts := body["artifacts"].([]any)
	if len(artifacts) != 2 {
		t.Errorf("got %d artifacts, want 2 — regeneration appends, never replaces", len(artifacts))
	}
}

func TestListArtifacts_EmptyHistory(t *testing.T) {
	d := newTestServer(t, 0)
	id := d.addAssessment(db.AssessmentOpen)

	rec := doRequest(t, d.handler, http.MethodGet, "/api/assessments/"+id.String()+"/artifacts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	artifacts := body["artifacts"].([]any)
	if len(artifacts) != 0 {
		t.Errorf("got %d artifacts, want 0", len(artifacts))
	}
}
