package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/psicoclima/psicoclima-backend/internal/email"
	"github.com/psicoclima/psicoclima-backend/internal/narrative"
	"github.com/psicoclima/psicoclima-backend/internal/stats"
	"github.com/psicoclima/psicoclima-backend/internal/store"
)

// Job holds the dependencies for the aggregate-and-generate pipeline that
// runs when an assessment is closed.
type Job struct {
	q       db.Querier
	store   *store.Store
	service *narrative.Service
	mailer  email.Sender
	logger  *slog.Logger
}

// NewJob constructs a Job with all required dependencies.
func NewJob(
	q db.Querier,
	st *store.Store,
	service *narrative.Service,
	mailer email.Sender,
	logger *slog.Logger,
) *Job {
	return &Job{
		q:       q,
		store:   st,
		service: service,
		mailer:  mailer,
		logger:  logger,
	}
}

// Run executes the full pipeline for one closed assessment:
//
//  1. Load the assessment and its responses with question metadata.
//  2. Aggregate into per-category statistics.
//  3. Generate the report artifact (providers, then template fallback).
//  4. Persist the artifact with its decision log.
//  5. Send the notification email, when a contact is configured.
//
// Any error is returned to the Runner, which retries up to MaxRetries
// before recording a failed artifact. Insufficient data is terminal, not
// retryable: the response set of a closed assessment never grows.
func (j *Job) Run(ctx context.Context, assessmentID uuid.UUID) error {
	log := j.logger.With("assessment_id", assessmentID)
	log.Info("job: starting")

	assessment, err := j.q.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return fmt.Errorf("job: get assessment: %w", err)
	}

	rows, err := j.q.GetResponsesByAssessment(ctx, assessmentID)
	if err != nil {
		return fmt.Errorf("job: get responses: %w", err)
	}

	totalQuestions, err := j.q.CountQuestions(ctx, assessment.QuestionnaireKind)
	if err != nil {
		return fmt.Errorf("job: count questions: %w", err)
	}

	log.Debug("job: loaded responses", "count", len(rows), "questions", totalQuestions)

	statRows := make([]stats.ResponseRow, len(rows))
	for i, r := range rows {
		value := stats.ParseValue(r.RawValue)
		if r.NumericValue.Valid {
			value = stats.Value{Raw: r.RawValue, Number: r.NumericValue.Float64, IsNumber: true}
		}
		statRows[i] = stats.ResponseRow{
			AnonymousID:  r.AnonymousID,
			QuestionID:   r.QuestionID,
			QuestionText: r.QuestionText,
			Category:     r.Category,
			Type:         stats.QuestionType(r.Qtype),
			ScaleMax:     int(r.ScaleMax),
			Value:        value,
		}
	}

	summary := stats.Aggregate(statRows, int(totalQuestions))

	title := ReportTitle(assessment.QuestionnaireKind)

	report, attempts, err := j.service.GenerateReport(ctx, summary)
	if errors.Is(err, narrative.ErrInsufficientData) {
		// Terminal: record the failure so the poller stops retrying.
		log.Warn("job: insufficient data for report", "participants", summary.TotalParticipants)
		if _, err := j.store.SaveFailedArtifact(ctx, assessmentID, db.ArtifactReport, title, "INSUFFICIENT_DATA"); err != nil {
			return fmt.Errorf("job: record insufficient data: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("job: generate report: %w", err)
	}

	artifact, err := j.store.SaveArtifact(ctx, store.SaveArtifactParams{
		AssessmentID: assessmentID,
		Kind:         db.ArtifactReport,
		Title:        title,
		Payload:      report,
		DecisionLog:  attempts,
	})
	if err != nil {
		return fmt.Errorf("job: save artifact: %w", err)
	}

	log.Info("job: report persisted",
		"artifact_id", artifact.ID,
		"categories", len(report.RiskAnalysis),
		"attempts", len(attempts),
	)

	if !assessment.ContactEmail.Valid || assessment.ContactEmail.String == "" {
		return nil
	}

	if err := j.mailer.SendReportReady(ctx, email.ReportReadyParams{
		To:           assessment.ContactEmail.String,
		AssessmentID: assessmentID.String(),
	}); err != nil {
		// The artifact is persisted and reachable; a failed email must not
		// fail the job.
		log.Error("job: failed to send report email",
			"to", assessment.ContactEmail.String,
			"error", err,
		)
	}

	return nil
}

// ReportTitle returns the artifact title for the questionnaire kind.
func ReportTitle(kind db.QuestionnaireKind) string {
	if kind == db.KindClimate {
		return "Relatório de Clima Organizacional"
	}
	return "Relatório de Riscos Psicossociais"
}
