// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation.
package email

import "context"

// ReportReadyParams holds the data for the "your report is ready" email sent
// to the assessment contact after automatic generation completes.
type ReportReadyParams struct {
	To           string // recipient email address
	OrgName      string // used in the subject line; may be empty
	AssessmentID string // inserted into the dashboard URL
}

// Sender is the interface the worker uses to send email. Tests inject a stub
// that records calls without hitting the network.
type Sender interface {
	// SendReportReady notifies the contact that the report artifact is
	// available. Called by the worker after SaveArtifact succeeds; failures
	// are logged, never fatal to the job.
	SendReportReady(ctx context.Context, p ReportReadyParams) error
}

// noopSender is used when no email credentials are configured.
type noopSender struct{}

func (noopSender) SendReportReady(context.Context, ReportReadyParams) error { return nil }

// NewNoopSender returns a Sender that silently drops all mail. Wired in
// main.go when RESEND_API_KEY is absent so the worker never needs a nil
// check.
func NewNoopSender() Sender { return noopSender{} }
