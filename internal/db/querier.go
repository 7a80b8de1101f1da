package db

import (
	"context"

	"github.com/google/uuid"
)

// Querier is the full query surface. Handlers, the store, and the worker
// depend on this interface; tests embed it in a stub and implement only the
// methods they exercise.
type Querier interface {
	GetAssessmentByID(ctx context.Context, id uuid.UUID) (Assessment, error)
	CloseAssessment(ctx context.Context, id uuid.UUID) (Assessment, error)
	CountQuestions(ctx context.Context, kind QuestionnaireKind) (int64, error)
	GetResponsesByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]GetResponsesByAssessmentRow, error)
	InsertResponse(ctx context.Context, arg InsertResponseParams) (Response, error)
	InsertArtifact(ctx context.Context, arg InsertArtifactParams) (GeneratedArtifact, error)
	ListArtifactsByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]GeneratedArtifact, error)
	ListClosedAssessmentsWithoutReport(ctx context.Context) ([]Assessment, error)
}

var _ Querier = (*Queries)(nil)
