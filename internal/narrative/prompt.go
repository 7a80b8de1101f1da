package narrative

import (
	"fmt"
	"strings"

	"github.com/psicoclima/psicoclima-backend/internal/stats"
)

// Prompts embed only aggregate statistics — category averages, risk levels,
// participant counts. Raw per-respondent rows never leave the process.

const reportSystemPrompt = `You are an occupational psychologist writing for HR leadership.
You will receive aggregate statistics from an anonymous workplace survey:
per-category average scores on a 1-5 scale, risk levels, participant counts, and optionally an NPS breakdown.

Write all narrative text in Brazilian Portuguese. Be direct and specific; avoid generic filler.

Respond ONLY with valid JSON matching this exact schema, no markdown fences, no preamble:
{
  "executive_summary": "...",
  "risk_analysis": [
    {"category": "<key as given>", "risk_level": "high|medium|low", "average_score": 0.0, "analysis": "..."}
  ],
  "overall_recommendations": ["..."],
  "action_priorities": ["..."],
  "conclusion": "..."
}`

const actionPlanSystemPrompt = `You are an occupational psychologist designing an intervention plan.
You will receive the high-risk categories from an anonymous workplace survey, with their aggregate scores.

Write all text in Brazilian Portuguese. Each action must be concrete, with a realistic timeline.

Respond ONLY with valid JSON matching this exact schema, no markdown fences, no preamble:
{
  "actions": [
    {
      "priority": "alta|média|baixa",
      "category": "<key as given>",
      "title": "...",
      "description": "...",
      "timeline": "...",
      "responsible": "...",
      "expected_impact": "..."
    }
  ]
}`

// buildReportPrompt serialises the aggregates into a compact prompt string.
func (s *Service) buildReportPrompt(summary stats.Summary) string {
	var sb strings.Builder
	sb.WriteString("Aggregate survey statistics:\n\n")
	fmt.Fprintf(&sb, "participants: %d\n", summary.TotalParticipants)
	fmt.Fprintf(&sb, "responses: %d\n", summary.TotalResponses)
	fmt.Fprintf(&sb, "completion_rate: %.1f%%\n\n", summary.CompletionRate)

	for _, cs := range summary.CategoryScores {
		fmt.Fprintf(&sb, "category: %s (%s)\n", cs.Category, s.catalog.Get(cs.Category))
		fmt.Fprintf(&sb, "average_score: %.2f/5, risk_level: %s, participants: %d\n",
			cs.Average, cs.RiskLevel, cs.ParticipantCount)
		sb.WriteString("---\n")
	}

	if summary.NPS != nil {
		fmt.Fprintf(&sb, "nps: average %.2f/10, promoters %d, passives %d, detractors %d, classification %s\n",
			summary.NPS.Average, summary.NPS.Promoters, summary.NPS.Passives,
			summary.NPS.Detractors, summary.NPS.Classification)
	}

	return sb.String()
}

// buildActionPlanPrompt lists only the requested high-risk categories with
// their aggregates, when present in the summary.
func (s *Service) buildActionPlanPrompt(summary stats.Summary, highRisk []string) string {
	scores := make(map[string]stats.CategoryScore, len(summary.CategoryScores))
	for _, cs := range summary.CategoryScores {
		scores[cs.Category] = cs
	}

	var sb strings.Builder
	sb.WriteString("High-risk categories needing an intervention plan:\n\n")
	for _, cat := range highRisk {
		fmt.Fprintf(&sb, "category: %s (%s)\n", cat, s.catalog.Get(cat))
		if cs, ok := scores[cat]; ok {
			fmt.Fprintf(&sb, "average_score: %.2f/5, risk_level: %s, participants: %d\n",
				cs.Average, cs.RiskLevel, cs.ParticipantCount)
		}
		sb.WriteString("---\n")
	}
	return sb.String()
}
