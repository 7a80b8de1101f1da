package stats

// NPSClassification buckets the raw mean of a 0–10 question. Note this
// classifies the average itself, not the net promoter index.
type NPSClassification string

const (
	NPSExcellent NPSClassification = "excellent" // mean >= 9
	NPSGood      NPSClassification = "good"      // mean >= 7
	NPSNeutral   NPSClassification = "neutral"   // mean >= 5
	NPSCritical  NPSClassification = "critical"
)

// NPSBreakdown is the promoter/passive/detractor split for one nps question.
type NPSBreakdown struct {
	Average        float64           `json:"average_score"`
	Promoters      int               `json:"promoters"`
	Passives       int               `json:"passives"`
	Detractors     int               `json:"detractors"`
	Total          int               `json:"total"`
	PromoterPct    float64           `json:"promoter_pct"`
	PassivePct     float64           `json:"passive_pct"`
	DetractorPct   float64           `json:"detractor_pct"`
	Classification NPSClassification `json:"classification"`
}

// ComputeNPS buckets integer 0–10 values into promoters [9,10], passives
// [7,8], and detractors [0,6]. Values that are not integers in range are
// excluded entirely, so promoters+passives+detractors == Total always holds.
func ComputeNPS(values []Value) NPSBreakdown {
	var b NPSBreakdown
	sum := 0.0

	for _, v := range values {
		if !v.isScaleInt(10) {
			continue
		}
		sum += v.Number
		switch {
		case v.Number >= 9:
			b.Promoters++
		case v.Number >= 7:
			b.Passives++
		default:
			b.Detractors++
		}
	}

	b.Total = b.Promoters + b.Passives + b.Detractors
	if b.Total > 0 {
		b.Average = round2(sum / float64(b.Total))
		b.PromoterPct = round2(float64(b.Promoters) / float64(b.Total) * 100)
		b.PassivePct = round2(float64(b.Passives) / float64(b.Total) * 100)
		b.DetractorPct = round2(float64(b.Detractors) / float64(b.Total) * 100)
	}
	b.Classification = classifyNPSAverage(b.Average)
	return b
}

func classifyNPSAverage(avg float64) NPSClassification {
	switch {
	case avg >= 9:
		return NPSExcellent
	case avg >= 7:
		return NPSGood
	case avg >= 5:
		return NPSNeutral
	default:
		return NPSCritical
	}
}
