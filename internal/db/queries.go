package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const getAssessmentByID = `
SELECT id, organization_id, questionnaire_kind, status, contact_email, created_at, closed_at
FROM assessments
WHERE id = $1
`

func (q *Queries) GetAssessmentByID(ctx context.Context, id uuid.UUID) (Assessment, error) {
	row := q.db.QueryRowContext(ctx, getAssessmentByID, id)
	var a Assessment
	err := row.Scan(
		&a.ID,
		&a.OrganizationID,
		&a.QuestionnaireKind,
		&a.Status,
		&a.ContactEmail,
		&a.CreatedAt,
		&a.ClosedAt,
	)
	return a, err
}

const closeAssessment = `
UPDATE assessments
SET status = 'closed', closed_at = now()
WHERE id = $1
RETURNING id, organization_id, questionnaire_kind, status, contact_email, created_at, closed_at
`

func (q *Queries) CloseAssessment(ctx context.Context, id uuid.UUID) (Assessment, error) {
	row := q.db.QueryRowContext(ctx, closeAssessment, id)
	var a Assessment
	err := row.Scan(
		&a.ID,
		&a.OrganizationID,
		&a.QuestionnaireKind,
		&a.Status,
		&a.ContactEmail,
		&a.CreatedAt,
		&a.ClosedAt,
	)
	return a, err
}

const countQuestions = `
SELECT count(*) FROM questions WHERE questionnaire_kind = $1
`

func (q *Queries) CountQuestions(ctx context.Context, kind QuestionnaireKind) (int64, error) {
	row := q.db.QueryRowContext(ctx, countQuestions, kind)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const getResponsesByAssessment = `
SELECT r.id, r.anonymous_id, r.question_id, r.raw_value, r.numeric_value, r.created_at,
       q.text, q.category, q.qtype, q.scale_max
FROM responses r
JOIN questions q ON q.id = r.question_id
WHERE r.assessment_id = $1
ORDER BY r.created_at, r.id
`

func (q *Queries) GetResponsesByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]GetResponsesByAssessmentRow, error) {
	rows, err := q.db.QueryContext(ctx, getResponsesByAssessment, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GetResponsesByAssessmentRow
	for rows.Next() {
		var r GetResponsesByAssessmentRow
		if err := rows.Scan(
			&r.ID,
			&r.AnonymousID,
			&r.QuestionID,
			&r.RawValue,
			&r.NumericValue,
			&r.CreatedAt,
			&r.QuestionText,
			&r.Category,
			&r.Qtype,
			&r.ScaleMax,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type InsertResponseParams struct {
	AssessmentID uuid.UUID
	AnonymousID  string
	QuestionID   string
	RawValue     string
	NumericValue sql.NullFloat64
}

const insertResponse = `
INSERT INTO responses (id, assessment_id, anonymous_id, question_id, raw_value, numeric_value)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, assessment_id, anonymous_id, question_id, raw_value, numeric_value, created_at
`

func (q *Queries) InsertResponse(ctx context.Context, arg InsertResponseParams) (Response, error) {
	row := q.db.QueryRowContext(ctx, insertResponse,
		uuid.New(),
		arg.AssessmentID,
		arg.AnonymousID,
		arg.QuestionID,
		arg.RawValue,
		arg.NumericValue,
	)
	var r Response
	err := row.Scan(
		&r.ID,
		&r.AssessmentID,
		&r.AnonymousID,
		&r.QuestionID,
		&r.RawValue,
		&r.NumericValue,
		&r.CreatedAt,
	)
	return r, err
}

type InsertArtifactParams struct {
	AssessmentID uuid.UUID
	Kind         ArtifactKind
	Title        string
	Payload      pqtype.NullRawMessage
	DecisionLog  pqtype.NullRawMessage
	Status       ArtifactStatus
}

const insertArtifact = `
INSERT INTO generated_artifacts (id, assessment_id, kind, title, payload, decision_log, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, assessment_id, kind, title, payload, decision_log, status, created_at
`

func (q *Queries) InsertArtifact(ctx context.Context, arg InsertArtifactParams) (GeneratedArtifact, error) {
	row := q.db.QueryRowContext(ctx, insertArtifact,
		uuid.New(),
		arg.AssessmentID,
		arg.Kind,
		arg.Title,
		arg.Payload,
		arg.DecisionLog,
		arg.Status,
	)
	var a GeneratedArtifact
	err := row.Scan(
		&a.ID,
		&a.AssessmentID,
		&a.Kind,
		&a.Title,
		&a.Payload,
		&a.DecisionLog,
		&a.Status,
		&a.CreatedAt,
	)
	return a, err
}

const listArtifactsByAssessment = `
SELECT id, assessment_id, kind, title, payload, decision_log, status, created_at
FROM generated_artifacts
WHERE assessment_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListArtifactsByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]GeneratedArtifact, error) {
	rows, err := q.db.QueryContext(ctx, listArtifactsByAssessment, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GeneratedArtifact
	for rows.Next() {
		var a GeneratedArtifact
		if err := rows.Scan(
			&a.ID,
			&a.AssessmentID,
			&a.Kind,
			&a.Title,
			&a.Payload,
			&a.DecisionLog,
			&a.Status,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const listClosedAssessmentsWithoutReport = `
SELECT a.id, a.organization_id, a.questionnaire_kind, a.status, a.contact_email, a.created_at, a.closed_at
FROM assessments a
WHERE a.status = 'closed'
  AND NOT EXISTS (
    SELECT 1 FROM generated_artifacts g
    WHERE g.assessment_id = a.id AND g.kind = 'report'
  )
ORDER BY a.closed_at
`

// ListClosedAssessmentsWithoutReport backs the worker's recovery poller:
// closed assessments whose automatic report was lost (e.g. across a restart).
// A failed artifact row also counts as handled, so permanently failed
// generations are not retried forever.
func (q *Queries) ListClosedAssessmentsWithoutReport(ctx context.Context) ([]Assessment, error) {
	rows, err := q.db.QueryContext(ctx, listClosedAssessmentsWithoutReport)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Assessment
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(
			&a.ID,
			&a.OrganizationID,
			&a.QuestionnaireKind,
			&a.Status,
			&a.ContactEmail,
			&a.CreatedAt,
			&a.ClosedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
