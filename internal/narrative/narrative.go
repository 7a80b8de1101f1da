// Package narrative orchestrates generation of report and action-plan
// artifacts. Given aggregate statistics it tries an ordered list of external
// generative-text providers, validates and repairs their output, and falls
// back to a deterministic template generator when providers are absent, fail,
// or return unparsable content. The fallback path cannot fail, so callers
// only ever see success or ErrInsufficientData.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/psicoclima/psicoclima-backend/internal/ai"
	"github.com/psicoclima/psicoclima-backend/internal/labels"
	"github.com/psicoclima/psicoclima-backend/internal/stats"
)

// ErrInsufficientData is returned when the assessment has fewer participants
// than the configured minimum. No provider call is made in that case.
var ErrInsufficientData = errors.New("narrative: insufficient data for generation")

// Outcome classifies one provider attempt in the decision log.
type Outcome string

const (
	OutcomeAccepted            Outcome = "accepted"
	OutcomeProviderUnavailable Outcome = "provider_unavailable" // HTTP failure, non-2xx, empty content
	OutcomeParseFailure        Outcome = "parse_failure"        // no balanced JSON object, or invalid JSON
	OutcomeSchemaMismatch      Outcome = "schema_mismatch"      // parsed but missing required fields
)

// Attempt records one step of the orchestration for observability. The full
// log is persisted alongside the artifact — fallbacks are explicit, not
// silent catch-and-continue.
type Attempt struct {
	Provider string  `json:"provider"`
	Outcome  Outcome `json:"outcome"`
	Detail   string  `json:"detail,omitempty"`
}

// Service is the narrative generation orchestrator. Providers are tried
// strictly in slice order, exactly once each, never in parallel — first
// validated success wins, and duplicate billable calls are avoided.
type Service struct {
	providers       []ai.Generator
	catalog         labels.Catalog
	minParticipants int
	attemptTimeout  time.Duration
	logger          *slog.Logger
}

// NewService constructs the orchestrator. providers may be empty — every
// request then takes the template path. minParticipants <= 0 falls back to
// the default floor of 3.
func NewService(providers []ai.Generator, catalog labels.Catalog, minParticipants int, logger *slog.Logger) *Service {
	if minParticipants <= 0 {
		minParticipants = 3
	}
	return &Service{
		providers:       providers,
		catalog:         catalog,
		minParticipants: minParticipants,
		attemptTimeout:  75 * time.Second,
		logger:          logger,
	}
}

// GenerateReport produces the analytical report artifact for one
// assessment's aggregates, plus the attempt log describing how it was
// produced. The only possible error is ErrInsufficientData.
func (s *Service) GenerateReport(ctx context.Context, summary stats.Summary) (Report, []Attempt, error) {
	if summary.TotalParticipants < s.minParticipants {
		return Report{}, nil, ErrInsufficientData
	}

	userPrompt := s.buildReportPrompt(summary)
	var attempts []Attempt

	for _, provider := range s.providers {
		report, attempt := s.tryReport(ctx, provider, userPrompt)
		attempts = append(attempts, attempt)
		if attempt.Outcome == OutcomeAccepted {
			s.fillLabels(&report)
			return report, attempts, nil
		}
		s.logger.Warn("narrative: provider attempt failed",
			"provider", attempt.Provider,
			"outcome", attempt.Outcome,
			"detail", attempt.Detail,
		)
	}

	attempts = append(attempts, Attempt{Provider: "template", Outcome: OutcomeAccepted})
	return s.templateReport(summary), attempts, nil
}

// GenerateActionPlan produces the action-plan artifact, keyed off the
// caller-supplied high-risk category list. An empty list is resolved from
// the summary's own high-risk categories.
func (s *Service) GenerateActionPlan(ctx context.Context, summary stats.Summary, highRisk []string) (ActionPlan, []Attempt, error) {
	if summary.TotalParticipants < s.minParticipants {
		return ActionPlan{}, nil, ErrInsufficientData
	}
	if len(highRisk) == 0 {
		highRisk = stats.HighRiskCategories(summary)
	}

	userPrompt := s.buildActionPlanPrompt(summary, highRisk)
	var attempts []Attempt

	for _, provider := range s.providers {
		plan, attempt := s.tryActionPlan(ctx, provider, userPrompt)
		attempts = append(attempts, attempt)
		if attempt.Outcome == OutcomeAccepted {
			return plan, attempts, nil
		}
		s.logger.Warn("narrative: provider attempt failed",
			"provider", attempt.Provider,
			"outcome", attempt.Outcome,
			"detail", attempt.Detail,
		)
	}

	attempts = append(attempts, Attempt{Provider: "template", Outcome: OutcomeAccepted})
	return s.templateActionPlan(highRisk), attempts, nil
}

// tryReport runs one provider attempt under a bounded timeout so a hung
// provider never blocks the overall request.
func (s *Service) tryReport(ctx context.Context, provider ai.Generator, userPrompt string) (Report, Attempt) {
	raw, attempt := s.complete(ctx, provider, reportSystemPrompt, userPrompt)
	if attempt.Outcome != OutcomeAccepted {
		return Report{}, attempt
	}

	var report Report
	if !decodeInto(raw, &report) {
		return Report{}, Attempt{Provider: provider.Name(), Outcome: OutcomeParseFailure, Detail: "no parsable JSON object in completion"}
	}
	if !validateReport(report) {
		return Report{}, Attempt{Provider: provider.Name(), Outcome: OutcomeSchemaMismatch, Detail: "completion missing required report fields"}
	}
	return report, attempt
}

func (s *Service) tryActionPlan(ctx context.Context, provider ai.Generator, userPrompt string) (ActionPlan, Attempt) {
	raw, attempt := s.complete(ctx, provider, actionPlanSystemPrompt, userPrompt)
	if attempt.Outcome != OutcomeAccepted {
		return ActionPlan{}, attempt
	}

	var plan ActionPlan
	if !decodeInto(raw, &plan) {
		return ActionPlan{}, Attempt{Provider: provider.Name(), Outcome: OutcomeParseFailure, Detail: "no parsable JSON object in completion"}
	}
	if !validateActionPlan(plan) {
		return ActionPlan{}, Attempt{Provider: provider.Name(), Outcome: OutcomeSchemaMismatch, Detail: "completion missing required action fields"}
	}
	return plan, attempt
}

// complete performs the raw provider call. The attempt's Outcome is
// OutcomeAccepted only when non-empty content came back; parse/schema
// checks happen in the callers.
func (s *Service) complete(ctx context.Context, provider ai.Generator, systemPrompt, userPrompt string) (string, Attempt) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	raw, err := provider.Generate(attemptCtx, systemPrompt, userPrompt)
	if err != nil {
		return "", Attempt{Provider: provider.Name(), Outcome: OutcomeProviderUnavailable, Detail: err.Error()}
	}
	if raw == "" {
		return "", Attempt{Provider: provider.Name(), Outcome: OutcomeProviderUnavailable, Detail: "empty completion"}
	}
	return raw, Attempt{Provider: provider.Name(), Outcome: OutcomeAccepted}
}

// decodeInto extracts the first balanced JSON object from raw completion
// text and unmarshals it into dst.
func decodeInto(raw string, dst any) bool {
	jsonStr, ok := extractJSON(raw)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(jsonStr), dst) == nil
}

// fillLabels backfills display labels the provider may have omitted.
func (s *Service) fillLabels(r *Report) {
	for i := range r.RiskAnalysis {
		if r.RiskAnalysis[i].Label == "" {
			r.RiskAnalysis[i].Label = s.catalog.Get(r.RiskAnalysis[i].Category)
		}
	}
}
