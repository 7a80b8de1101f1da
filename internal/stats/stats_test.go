package stats_test

import (
	"math"
	"testing"

	"github.com/psicoclima/psicoclima-backend/internal/stats"
)

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func scaleRow(anonID, questionID, category, raw string) stats.ResponseRow {
	return stats.ResponseRow{
		AnonymousID:  anonID,
		QuestionID:   questionID,
		QuestionText: "pergunta " + questionID,
		Category:     category,
		Type:         stats.TypeScale,
		ScaleMax:     5,
		Value:        stats.ParseValue(raw),
	}
}

func findCategory(t *testing.T, s stats.Summary, name string) stats.CategoryScore {
	t.Helper()
	for _, cs := range s.CategoryScores {
		if cs.Category == name {
			return cs
		}
	}
	t.Fatalf("category %q not found in summary", name)
	return stats.CategoryScore{}
}

// ─── Aggregate ───────────────────────────────────────────────────────────────

func TestAggregate_CategoryAveragesAndRiskLevels(t *testing.T) {
	rows := []stats.ResponseRow{
		scaleRow("u1", "q1", "demands", "4"),
		scaleRow("u2", "q1", "demands", "5"),
		scaleRow("u1", "q2", "control", "2"),
		scaleRow("u2", "q2", "control", "3"),
		scaleRow("u1", "q3", "support", "1"),
		scaleRow("u2", "q3", "support", "1"),
		scaleRow("u3", "q3", "support", "1"),
	}

	s := stats.Aggregate(rows, 3)

	if s.TotalParticipants != 3 {
		t.Errorf("TotalParticipants = %d, want 3", s.TotalParticipants)
	}
	if s.TotalResponses != 7 {
		t.Errorf("TotalResponses = %d, want 7", s.TotalResponses)
	}

	tests := []struct {
		category string
		wantAvg  float64
		wantRisk stats.RiskLevel
	}{
		{"demands", 4.5, stats.RiskLow},
		{"control", 2.5, stats.RiskMedium},
		{"support", 1.0, stats.RiskHigh},
	}
	for _, tt := range tests {
		cs := findCategory(t, s, tt.category)
		if cs.Average != tt.wantAvg {
			t.Errorf("%s: Average = %v, want %v", tt.category, cs.Average, tt.wantAvg)
		}
		if cs.RiskLevel != tt.wantRisk {
			t.Errorf("%s: RiskLevel = %q, want %q", tt.category, cs.RiskLevel, tt.wantRisk)
		}
	}
}

func TestAggregate_ParticipantsDedupedAcrossQuestions(t *testing.T) {
	// One respondent answering many questions is still one participant.
	rows := []stats.ResponseRow{
		scaleRow("u1", "q1", "demands", "3"),
		scaleRow("u1", "q2", "demands", "4"),
		scaleRow("u1", "q3", "control", "5"),
	}

	s := stats.Aggregate(rows, 3)
	if s.TotalParticipants != 1 {
		t.Errorf("TotalParticipants = %d, want 1", s.TotalParticipants)
	}

	cs := findCategory(t, s, "demands")
	if cs.ParticipantCount != 1 {
		t.Errorf("demands ParticipantCount = %d, want 1", cs.ParticipantCount)
	}
	if cs.ResponseCount != 2 {
		t.Errorf("demands ResponseCount = %d, want 2", cs.ResponseCount)
	}
}

func TestAggregate_NonNumericValuesExcludedFromAverage(t *testing.T) {
	// Garbage answers must not drag the average toward zero.
	rows := []stats.ResponseRow{
		scaleRow("u1", "q1", "demands", "4"),
		scaleRow("u2", "q1", "demands", "abc"),
		scaleRow("u3", "q1", "demands", "4"),
	}

	s := stats.Aggregate(rows, 1)
	cs := findCategory(t, s, "demands")
	if cs.Average != 4.0 {
		t.Errorf("Average = %v, want 4.0 (garbage excluded, not zeroed)", cs.Average)
	}
	// The garbage row still counts as a response and appears in the
	// distribution.
	if cs.ResponseCount != 3 {
		t.Errorf("ResponseCount = %d, want 3", cs.ResponseCount)
	}
}

func TestAggregate_CommaDecimalAccepted(t *testing.T) {
	rows := []stats.ResponseRow{
		scaleRow("u1", "q1", "demands", "3,5"),
		scaleRow("u2", "q1", "demands", "4.5"),
	}
	s := stats.Aggregate(rows, 1)
	cs := findCategory(t, s, "demands")
	if cs.Average != 4.0 {
		t.Errorf("Average = %v, want 4.0", cs.Average)
	}
}

func TestAggregate_DistributionPercentagesSumToRoughly100(t *testing.T) {
	// Three distinct answers over 3 responses: 33.33 × 3 = 99.99, not 100.
	// Each bucket rounds independently; the total must stay within 1 of 100.
	rows := []stats.ResponseRow{
		scaleRow("u1", "q1", "demands", "1"),
		scaleRow("u2", "q1", "demands", "2"),
		scaleRow("u3", "q1", "demands", "3"),
	}

	s := stats.Aggregate(rows, 1)
	cs := findCategory(t, s, "demands")
	if len(cs.Questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(cs.Questions))
	}

	total := 0.0
	for _, b := range cs.Questions[0].Distribution {
		total += b.Percentage
	}
	if math.Abs(total-100) > 1 {
		t.Errorf("distribution percentages sum to %v, want within 1 of 100", total)
	}
}

func TestAggregate_DistributionOrderedByCountThenValue(t *testing.T) {
	rows := []stats.ResponseRow{
		scaleRow("u1", "q1", "demands", "5"),
		scaleRow("u2", "q1", "demands", "5"),
		scaleRow("u3", "q1", "demands", "2"),
		scaleRow("u4", "q1", "demands", "1"),
	}

	s := stats.Aggregate(rows, 1)
	dist := findCategory(t, s, "demands").Questions[0].Distribution

	want := []string{"5", "1", "2"}
	if len(dist) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(dist), len(want))
	}
	for i, b := range dist {
		if b.Value != want[i] {
			t.Errorf("bucket[%d].Value = %q, want %q", i, b.Value, want[i])
		}
	}
}

func TestAggregate_TextResponsesCappedWithRemainder(t *testing.T) {
	var rows []stats.ResponseRow
	for i := 0; i < 13; i++ {
		rows = append(rows, stats.ResponseRow{
			AnonymousID:  "u" + string(rune('a'+i)),
			QuestionID:   "q9",
			QuestionText: "comentários",
			Category:     "wellbeing",
			Type:         stats.TypeText,
			Value:        stats.ParseValue("resposta livre"),
		})
	}

	s := stats.Aggregate(rows, 1)
	if len(s.TextResponses) != 1 {
		t.Fatalf("got %d text groups, want 1", len(s.TextResponses))
	}
	g := s.TextResponses[0]
	if len(g.Samples) != 10 {
		t.Errorf("Samples = %d, want 10", len(g.Samples))
	}
	if g.Remaining != 3 {
		t.Errorf("Remaining = %d, want 3", g.Remaining)
	}
	// Text never leaks into scored categories.
	if len(s.CategoryScores) != 0 {
		t.Errorf("got %d category scores, want 0 for text-only input", len(s.CategoryScores))
	}
}

func TestAggregate_InterleavedTextQuestionsKeepAllSamples(t *testing.T) {
	textRow := func(anonID, questionID, raw string) stats.ResponseRow {
		return stats.ResponseRow{
			AnonymousID:  anonID,
			QuestionID:   questionID,
			QuestionText: "pergunta " + questionID,
			Category:     "wellbeing",
			Type:         stats.TypeText,
			Value:        stats.ParseValue(raw),
		}
	}

	// Answers for the first question arrive both before and after other text
	// questions are first seen; none may be lost.
	rows := []stats.ResponseRow{
		textRow("u1", "q1", "q1 primeira"),
		textRow("u1", "q2", "q2 primeira"),
		textRow("u2", "q1", "q1 segunda"),
		textRow("u1", "q3", "q3 primeira"),
		textRow("u3", "q1", "q1 terceira"),
		textRow("u2", "q2", "q2 segunda"),
	}

	s := stats.Aggregate(rows, 3)
	if len(s.TextResponses) != 3 {
		t.Fatalf("got %d text groups, want 3", len(s.TextResponses))
	}

	wantSamples := map[string][]string{
		"q1": {"q1 primeira", "q1 segunda", "q1 terceira"},
		"q2": {"q2 primeira", "q2 segunda"},
		"q3": {"q3 primeira"},
	}
	for _, g := range s.TextResponses {
		want := wantSamples[g.QuestionID]
		if len(g.Samples) != len(want) {
			t.Errorf("%s: got %d samples %v, want %v", g.QuestionID, len(g.Samples), g.Samples, want)
			continue
		}
		for i := range want {
			if g.Samples[i] != want[i] {
				t.Errorf("%s: Samples[%d] = %q, want %q", g.QuestionID, i, g.Samples[i], want[i])
			}
		}
	}
}

func TestAggregate_RemainderCountedAcrossMultipleTextQuestions(t *testing.T) {
	// Overflow the sample cap on the first question after a second question
	// has been registered; the remainder must land on the right group.
	var rows []stats.ResponseRow
	rows = append(rows, stats.ResponseRow{
		AnonymousID: "u0", QuestionID: "q2", QuestionText: "outra",
		Category: "wellbeing", Type: stats.TypeText, Value: stats.ParseValue("única"),
	})
	for i := 0; i < 12; i++ {
		rows = append(rows, stats.ResponseRow{
			AnonymousID:  "u" + string(rune('a'+i)),
			QuestionID:   "q1",
			QuestionText: "comentários",
			Category:     "wellbeing",
			Type:         stats.TypeText,
			Value:        stats.ParseValue("resposta livre"),
		})
	}

	s := stats.Aggregate(rows, 2)
	if len(s.TextResponses) != 2 {
		t.Fatalf("got %d text groups, want 2", len(s.TextResponses))
	}
	q1 := s.TextResponses[0] // sorted by question id
	if q1.QuestionID != "q1" {
		t.Fatalf("first group = %q, want q1", q1.QuestionID)
	}
	if len(q1.Samples) != 10 || q1.Remaining != 2 {
		t.Errorf("q1: %d samples remaining %d, want 10 and 2", len(q1.Samples), q1.Remaining)
	}
	q2 := s.TextResponses[1]
	if len(q2.Samples) != 1 || q2.Remaining != 0 {
		t.Errorf("q2: %d samples remaining %d, want 1 and 0", len(q2.Samples), q2.Remaining)
	}
}

func TestAggregate_EmptyTextAnswersSkipped(t *testing.T) {
	rows := []stats.ResponseRow{
		{AnonymousID: "u1", QuestionID: "q9", Category: "wellbeing", Type: stats.TypeText, Value: stats.ParseValue("  ")},
		{AnonymousID: "u2", QuestionID: "q9", Category: "wellbeing", Type: stats.TypeText, Value: stats.ParseValue("algo")},
	}

	s := stats.Aggregate(rows, 1)
	g := s.TextResponses[0]
	if len(g.Samples) != 1 || g.Samples[0] != "algo" {
		t.Errorf("Samples = %v, want [algo]", g.Samples)
	}
}

func TestAggregate_NPSQuestionFeedsBreakdownAndCategory(t *testing.T) {
	rows := []stats.ResponseRow{
		{AnonymousID: "u1", QuestionID: "q10", Category: "satisfaction", Type: stats.TypeNPS, ScaleMax: 10, Value: stats.ParseValue("9")},
		{AnonymousID: "u2", QuestionID: "q10", Category: "satisfaction", Type: stats.TypeNPS, ScaleMax: 10, Value: stats.ParseValue("6")},
	}

	s := stats.Aggregate(rows, 1)
	if s.NPS == nil {
		t.Fatal("NPS breakdown missing")
	}
	if s.NPS.Promoters != 1 || s.NPS.Detractors != 1 {
		t.Errorf("got promoters=%d detractors=%d, want 1 and 1", s.NPS.Promoters, s.NPS.Detractors)
	}
	// The nps question also participates in its category score.
	findCategory(t, s, "satisfaction")
}

func TestAggregate_NoNPSQuestionsOmitsBreakdown(t *testing.T) {
	s := stats.Aggregate([]stats.ResponseRow{scaleRow("u1", "q1", "demands", "3")}, 1)
	if s.NPS != nil {
		t.Errorf("NPS = %+v, want nil", s.NPS)
	}
}

// ─── CompletionRate ──────────────────────────────────────────────────────────

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		name           string
		responses      int
		participants   int
		totalQuestions int
		want           float64
	}{
		{"full completion", 30, 3, 10, 100},
		{"half completion", 15, 3, 10, 50},
		{"zero questions", 10, 3, 0, 0},
		{"zero participants", 0, 0, 10, 0},
		{"rounded", 7, 3, 10, 23.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stats.CompletionRate(tt.responses, tt.participants, tt.totalQuestions)
			if got != tt.want {
				t.Errorf("CompletionRate(%d, %d, %d) = %v, want %v",
					tt.responses, tt.participants, tt.totalQuestions, got, tt.want)
			}
		})
	}
}

// ─── HighRiskCategories ──────────────────────────────────────────────────────

func TestHighRiskCategories(t *testing.T) {
	rows := []stats.ResponseRow{
		scaleRow("u1", "q1", "demands", "1"),
		scaleRow("u1", "q2", "control", "2"),
		scaleRow("u1", "q3", "support", "5"),
	}
	s := stats.Aggregate(rows, 3)

	got := stats.HighRiskCategories(s)
	want := []string{"control", "demands"} // summary order is alphabetical
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

// ─── ParseValue ──────────────────────────────────────────────────────────────

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw        string
		wantNumber bool
		want       float64
	}{
		{"4", true, 4},
		{" 4 ", true, 4},
		{"3,5", true, 3.5},
		{"3.5", true, 3.5},
		{"abc", false, 0},
		{"", false, 0},
		{"1e2", true, 100},
	}
	for _, tt := range tests {
		v := stats.ParseValue(tt.raw)
		if v.IsNumber != tt.wantNumber {
			t.Errorf("ParseValue(%q).IsNumber = %v, want %v", tt.raw, v.IsNumber, tt.wantNumber)
			continue
		}
		if v.IsNumber && v.Number != tt.want {
			t.Errorf("ParseValue(%q).Number = %v, want %v", tt.raw, v.Number, tt.want)
		}
	}
}
