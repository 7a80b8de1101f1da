package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Enum-ish string types. Values match the Postgres check constraints in
// schema.sql so rows map without conversion.

type QuestionnaireKind string

const (
	KindRisk    QuestionnaireKind = "risk"
	KindClimate QuestionnaireKind = "climate"
)

type AssessmentStatus string

const (
	AssessmentOpen   AssessmentStatus = "open"
	AssessmentClosed AssessmentStatus = "closed"
)

type ArtifactKind string

const (
	ArtifactReport     ArtifactKind = "report"
	ArtifactActionPlan ArtifactKind = "action_plan"
)

type ArtifactStatus string

const (
	ArtifactCompleted ArtifactStatus = "completed"
	ArtifactFailed    ArtifactStatus = "failed"
)

// Assessment scopes which responses are aggregated together. Only a closed
// assessment may produce a report.
type Assessment struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	QuestionnaireKind QuestionnaireKind
	Status            AssessmentStatus
	ContactEmail      sql.NullString
	CreatedAt         time.Time
	ClosedAt          sql.NullTime
}

// Question is immutable reference data owned by a questionnaire definition.
type Question struct {
	ID                string
	QuestionnaireKind QuestionnaireKind
	Text              string
	Category          string
	Qtype             string
	ScaleMax          int32
	Position          int32
}

// Response is one answer from one anonymous respondent. Insert-only; never
// updated. AnonymousID is a random per-respondent token carrying no identity.
type Response struct {
	ID           uuid.UUID
	AssessmentID uuid.UUID
	AnonymousID  string
	QuestionID   string
	RawValue     string
	NumericValue sql.NullFloat64
	CreatedAt    time.Time
}

// GeneratedArtifact is a persisted narrative artifact. Insert-only;
// regeneration creates a new row.
type GeneratedArtifact struct {
	ID           uuid.UUID
	AssessmentID uuid.UUID
	Kind         ArtifactKind
	Title        string
	Payload      pqtype.NullRawMessage
	DecisionLog  pqtype.NullRawMessage
	Status       ArtifactStatus
	CreatedAt    time.Time
}

// GetResponsesByAssessmentRow joins responses with their question metadata.
type GetResponsesByAssessmentRow struct {
	ID           uuid.UUID
	AnonymousID  string
	QuestionID   string
	RawValue     string
	NumericValue sql.NullFloat64
	CreatedAt    time.Time
	QuestionText string
	Category     string
	Qtype        string
	ScaleMax     int32
}
