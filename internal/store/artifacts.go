package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/sqlc-dev/pqtype"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrAssessmentClosed is returned by IngestResponses when the target
// assessment is no longer accepting responses. Handlers map it to 409.
var ErrAssessmentClosed = errors.New("store: assessment is closed")

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// SaveArtifactParams is everything the orchestration path hands to the store
// once generation is complete. Payload and DecisionLog are marshalled here
// so the serialised artifact is exactly what the caller produced.
type SaveArtifactParams struct {
	AssessmentID uuid.UUID
	Kind         db.ArtifactKind
	Title        string
	Payload      any // Report or ActionPlan
	DecisionLog  any // []narrative.Attempt
}

// ResponseInput is one answer in an ingestion batch.
type ResponseInput struct {
	AnonymousID  string
	QuestionID   string
	RawValue     string
	NumericValue sql.NullFloat64
}

// ─── METHODS ─────────────────────────────────────────────────────────────────

// SaveArtifact persists one generated artifact. Writes are inserts only —
// regeneration always creates a new row, never mutates a prior one. The
// artifact is either fully persisted with status=completed or not persisted
// at all; there is no partial state to clean up.
func (s *Store) SaveArtifact(ctx context.Context, p SaveArtifactParams) (db.GeneratedArtifact, error) {
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return db.GeneratedArtifact{}, fmt.Errorf("SaveArtifact: marshal payload: %w", err)
	}
	logJSON, err := json.Marshal(p.DecisionLog)
	if err != nil {
		return db.GeneratedArtifact{}, fmt.Errorf("SaveArtifact: marshal decision log: %w", err)
	}

	artifact, err := s.q.InsertArtifact(ctx, db.InsertArtifactParams{
		AssessmentID: p.AssessmentID,
		Kind:         p.Kind,
		Title:        p.Title,
		Payload:      pqtype.NullRawMessage{RawMessage: payloadJSON, Valid: true},
		DecisionLog:  pqtype.NullRawMessage{RawMessage: logJSON, Valid: true},
		Status:       db.ArtifactCompleted,
	})
	if err != nil {
		return db.GeneratedArtifact{}, fmt.Errorf("SaveArtifact: insert artifact: %w", err)
	}
	return artifact, nil
}

// SaveFailedArtifact records a permanently failed generation so the worker's
// recovery poller stops picking the assessment up. Like all artifact writes
// it is insert-only.
func (s *Store) SaveFailedArtifact(ctx context.Context, assessmentID uuid.UUID, kind db.ArtifactKind, title, reason string) (db.GeneratedArtifact, error) {
	logJSON, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return db.GeneratedArtifact{}, fmt.Errorf("SaveFailedArtifact: marshal reason: %w", err)
	}

	artifact, err := s.q.InsertArtifact(ctx, db.InsertArtifactParams{
		AssessmentID: assessmentID,
		Kind:         kind,
		Title:        title,
		DecisionLog:  pqtype.NullRawMessage{RawMessage: logJSON, Valid: true},
		Status:       db.ArtifactFailed,
	})
	if err != nil {
		return db.GeneratedArtifact{}, fmt.Errorf("SaveFailedArtifact: insert artifact: %w", err)
	}
	return artifact, nil
}

// IngestResponses inserts a batch of responses atomically. The whole batch
// commits or none of it does, so a retried submission never half-applies.
//
// The assessment's status is re-checked inside the serializable transaction:
// a close that commits concurrently causes this batch to fail rather than
// slip responses into a closed assessment.
func (s *Store) IngestResponses(ctx context.Context, assessmentID uuid.UUID, inputs []ResponseInput) (int, error) {
	inserted := 0

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		assessment, err := q.GetAssessmentByID(ctx, assessmentID)
		if err != nil {
			return fmt.Errorf("IngestResponses: get assessment: %w", err)
		}
		if assessment.Status != db.AssessmentOpen {
			return ErrAssessmentClosed
		}

		for _, in := range inputs {
			if _, err := q.InsertResponse(ctx, db.InsertResponseParams{
				AssessmentID: assessmentID,
				AnonymousID:  in.AnonymousID,
				QuestionID:   in.QuestionID,
				RawValue:     in.RawValue,
				NumericValue: in.NumericValue,
			}); err != nil {
				return fmt.Errorf("IngestResponses: insert response for %q: %w", in.QuestionID, err)
			}
			inserted++
		}
		return nil
	})

	if err != nil {
		return 0, err
	}
	return inserted, nil
}
