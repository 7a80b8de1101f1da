package narrative

// The two artifact schemas share one orchestration state machine but differ
// in shape. Providers are prompted to respond with exactly these JSON
// structures; the template fallback produces them directly.

// CategoryAnalysis is the per-category block inside a Report.
type CategoryAnalysis struct {
	Category  string  `json:"category"`
	Label     string  `json:"label,omitempty"`
	RiskLevel string  `json:"risk_level"`
	Average   float64 `json:"average_score"`
	Analysis  string  `json:"analysis"`
}

// Report is the analytical narrative artifact.
type Report struct {
	ExecutiveSummary       string             `json:"executive_summary"`
	RiskAnalysis           []CategoryAnalysis `json:"risk_analysis"`
	OverallRecommendations []string           `json:"overall_recommendations"`
	ActionPriorities       []string           `json:"action_priorities"`
	Conclusion             string             `json:"conclusion"`
}

// ActionItem is one entry in an ActionPlan.
type ActionItem struct {
	Priority       string `json:"priority"`
	Category       string `json:"category"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Timeline       string `json:"timeline"`
	Responsible    string `json:"responsible"`
	ExpectedImpact string `json:"expected_impact"`
}

// ActionPlan is the actionable follow-up artifact, keyed off a caller-supplied
// list of high-risk categories rather than the full statistic set.
type ActionPlan struct {
	Actions []ActionItem `json:"actions"`
}

// validateReport checks the minimum shape a provider completion must have to
// be accepted. Anything thinner falls through to the next provider.
func validateReport(r Report) bool {
	if r.ExecutiveSummary == "" || len(r.RiskAnalysis) == 0 {
		return false
	}
	for _, ca := range r.RiskAnalysis {
		if ca.Category == "" || ca.Analysis == "" {
			return false
		}
	}
	return true
}

// validateActionPlan requires at least one fully-titled action.
func validateActionPlan(p ActionPlan) bool {
	if len(p.Actions) == 0 {
		return false
	}
	for _, a := range p.Actions {
		if a.Title == "" || a.Description == "" {
			return false
		}
	}
	return true
}

// extractJSON returns the first balanced {...} substring of s. Providers
// often wrap their JSON in prose or markdown fences; scanning for the
// balanced object is more robust than trimming known prefixes. The scanner
// is string- and escape-aware so braces inside string values don't confuse
// the depth count.
func extractJSON(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
