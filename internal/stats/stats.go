package stats

import "sort"

// textSampleCap bounds how many open-text answers are surfaced per question.
// The remainder is reported as a count so the UI can say "and N more".
const textSampleCap = 10

// ResponseRow is the minimal slice of db.GetResponsesByAssessmentRow the
// aggregator needs. Using a local type keeps stats/ import-free from the db
// package while remaining easy to construct in tests.
type ResponseRow struct {
	AnonymousID  string
	QuestionID   string
	QuestionText string
	Category     string // category (risk) or theme (climate) from the question
	Type         QuestionType
	ScaleMax     int
	Value        Value
}

// Bucket is one distinct raw value within a question's distribution.
type Bucket struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// QuestionStat holds the per-question aggregates within a category.
type QuestionStat struct {
	QuestionID    string   `json:"question_id"`
	Text          string   `json:"text"`
	ResponseCount int      `json:"response_count"`
	Average       float64  `json:"average_score"`
	Distribution  []Bucket `json:"distribution"`
}

// CategoryScore is the derived, non-persisted aggregate for one category.
// It is fully recomputable from the immutable response set.
type CategoryScore struct {
	Category         string         `json:"category"`
	Average          float64        `json:"average_score"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	ResponseCount    int            `json:"response_count"`
	ParticipantCount int            `json:"participant_count"`
	Questions        []QuestionStat `json:"questions"`
}

// TextGroup carries open-text answers through unaggregated, capped for
// display with an explicit remainder count.
type TextGroup struct {
	Category     string   `json:"category"`
	QuestionID   string   `json:"question_id"`
	QuestionText string   `json:"question_text"`
	Samples      []string `json:"samples"`
	Remaining    int      `json:"remaining"`
}

// Summary is the full aggregate view for one assessment.
type Summary struct {
	CategoryScores    []CategoryScore `json:"category_scores"`
	NPS               *NPSBreakdown   `json:"nps_breakdown,omitempty"`
	TextResponses     []TextGroup     `json:"text_responses"`
	TotalParticipants int             `json:"total_participants"`
	TotalResponses    int             `json:"total_responses"`
	CompletionRate    float64         `json:"completion_rate"`
}

// Aggregate computes the full Summary for one assessment's responses.
// totalQuestions is the questionnaire size, used for the completion rate.
//
// The computation is a pure function of its inputs: no state survives the
// call, so it is safe to re-run for the same assessment and to run
// concurrently for different assessments.
func Aggregate(rows []ResponseRow, totalQuestions int) Summary {
	participants := make(map[string]struct{})
	byCategory := make(map[string][]ResponseRow)
	var npsValues []Value
	// Groups are allocated individually; pointers into a growing slice would
	// go stale on reallocation.
	var textGroups []*TextGroup
	textByQuestion := make(map[string]*TextGroup)

	for _, row := range rows {
		participants[row.AnonymousID] = struct{}{}

		switch row.Type {
		case TypeText:
			g, ok := textByQuestion[row.QuestionID]
			if !ok {
				g = &TextGroup{
					Category:     row.Category,
					QuestionID:   row.QuestionID,
					QuestionText: row.QuestionText,
				}
				textGroups = append(textGroups, g)
				textByQuestion[row.QuestionID] = g
			}
			if row.Value.Raw == "" {
				continue
			}
			if len(g.Samples) < textSampleCap {
				g.Samples = append(g.Samples, row.Value.Raw)
			} else {
				g.Remaining++
			}
		case TypeNPS:
			npsValues = append(npsValues, row.Value)
			byCategory[row.Category] = append(byCategory[row.Category], row)
		default:
			byCategory[row.Category] = append(byCategory[row.Category], row)
		}
	}

	scores := make([]CategoryScore, 0, len(byCategory))
	for category, catRows := range byCategory {
		scores = append(scores, aggregateCategory(category, catRows))
	}
	sort.Slice(scores, func(a, b int) bool { return scores[a].Category < scores[b].Category })
	sort.Slice(textGroups, func(a, b int) bool { return textGroups[a].QuestionID < textGroups[b].QuestionID })

	texts := make([]TextGroup, len(textGroups))
	for i, g := range textGroups {
		texts[i] = *g
	}

	var nps *NPSBreakdown
	if len(npsValues) > 0 {
		b := ComputeNPS(npsValues)
		nps = &b
	}

	return Summary{
		CategoryScores:    scores,
		NPS:               nps,
		TextResponses:     texts,
		TotalParticipants: len(participants),
		TotalResponses:    len(rows),
		CompletionRate:    CompletionRate(len(rows), len(participants), totalQuestions),
	}
}

// aggregateCategory computes one CategoryScore from that category's rows.
func aggregateCategory(category string, rows []ResponseRow) CategoryScore {
	participants := make(map[string]struct{})
	byQuestion := make(map[string][]ResponseRow)
	sum := 0.0
	numericCount := 0

	for _, row := range rows {
		participants[row.AnonymousID] = struct{}{}
		byQuestion[row.QuestionID] = append(byQuestion[row.QuestionID], row)
		if row.Value.IsNumber {
			sum += row.Value.Number
			numericCount++
		}
	}

	questions := make([]QuestionStat, 0, len(byQuestion))
	for _, qRows := range byQuestion {
		questions = append(questions, aggregateQuestion(qRows))
	}
	sort.Slice(questions, func(a, b int) bool { return questions[a].QuestionID < questions[b].QuestionID })

	avg := 0.0
	if numericCount > 0 {
		avg = round2(sum / float64(numericCount))
	}

	return CategoryScore{
		Category:         category,
		Average:          avg,
		RiskLevel:        Classify(avg),
		ResponseCount:    len(rows),
		ParticipantCount: len(participants),
		Questions:        questions,
	}
}

// aggregateQuestion computes the per-question stat. rows is never empty.
func aggregateQuestion(rows []ResponseRow) QuestionStat {
	sum := 0.0
	numericCount := 0
	counts := make(map[string]int)

	for _, row := range rows {
		counts[row.Value.Raw]++
		if row.Value.IsNumber {
			sum += row.Value.Number
			numericCount++
		}
	}

	// Each bucket's percentage is rounded independently; the buckets sum to
	// ≈100 within rounding tolerance (see round2).
	buckets := make([]Bucket, 0, len(counts))
	for value, count := range counts {
		buckets = append(buckets, Bucket{
			Value:      value,
			Count:      count,
			Percentage: round2(float64(count) / float64(len(rows)) * 100),
		})
	}
	sort.Slice(buckets, func(a, b int) bool {
		if buckets[a].Count != buckets[b].Count {
			return buckets[a].Count > buckets[b].Count
		}
		return buckets[a].Value < buckets[b].Value
	})

	avg := 0.0
	if numericCount > 0 {
		avg = round2(sum / float64(numericCount))
	}

	return QuestionStat{
		QuestionID:    rows[0].QuestionID,
		Text:          rows[0].QuestionText,
		ResponseCount: len(rows),
		Average:       avg,
		Distribution:  buckets,
	}
}

// CompletionRate is totalResponses / (participants × totalQuestions) × 100.
// Defined as 0 when there are no questions or no participants, so callers
// never divide by zero.
func CompletionRate(totalResponses, participants, totalQuestions int) float64 {
	if totalQuestions == 0 || participants == 0 {
		return 0
	}
	return round2(float64(totalResponses) / float64(participants*totalQuestions) * 100)
}

// HighRiskCategories returns the category names classified high, preserving
// the summary's sorted order. Used to seed action-plan generation.
func HighRiskCategories(s Summary) []string {
	var out []string
	for _, cs := range s.CategoryScores {
		if cs.RiskLevel == RiskHigh {
			out = append(out, cs.Category)
		}
	}
	return out
}
