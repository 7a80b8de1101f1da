package stats

// RiskLevel is the three-tier classification of a category average on the
// 1–5 scale. String values match the Postgres enum and the JSON API.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"   // avg < 2.5 — intervention needed
	RiskMedium RiskLevel = "medium" // 2.5 <= avg < 3.5
	RiskLow    RiskLevel = "low"    // avg >= 3.5
)

// Classify maps an average score to its risk tier. Boundaries are
// inclusive-lower / exclusive-upper: exactly 2.5 is medium, exactly 3.5 is
// low. The function is total and side-effect-free; category identity plays
// no part in the rule.
func Classify(avg float64) RiskLevel {
	switch {
	case avg < 2.5:
		return RiskHigh
	case avg < 3.5:
		return RiskMedium
	default:
		return RiskLow
	}
}
