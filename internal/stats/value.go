// Package stats implements the aggregation pipeline that turns raw survey
// responses into per-category statistics, risk levels, and NPS breakdowns.
// It is intentionally dependency-free: it imports nothing from internal/ and
// can be tested without a database.
package stats

import (
	"math"
	"strconv"
	"strings"
)

// QuestionType mirrors the qtype column on questions. String values match the
// Postgres check constraint so db rows map without conversion.
type QuestionType string

const (
	TypeScale  QuestionType = "scale"  // numeric 1–N scale
	TypeChoice QuestionType = "choice" // single choice from fixed options
	TypeText   QuestionType = "text"   // open text
	TypeNPS    QuestionType = "nps"    // 0–10 satisfaction scale
)

// Value is a response value resolved once at ingestion. Aggregation sites
// read Number/IsNumber instead of re-parsing the raw string ad hoc.
type Value struct {
	Raw      string
	Number   float64
	IsNumber bool
}

// ParseValue resolves a raw answer string into a tagged Value. Values that do
// not parse as a number stay text-only; they are excluded from averages, not
// treated as zero. A comma decimal separator is accepted ("3,5" → 3.5).
func ParseValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	normalized := strings.Replace(trimmed, ",", ".", 1)
	if n, err := strconv.ParseFloat(normalized, 64); err == nil {
		return Value{Raw: trimmed, Number: n, IsNumber: true}
	}
	return Value{Raw: trimmed}
}

// isScaleInt reports whether v holds an integer in [0, maxVal]. Used by the
// NPS calculator to filter out-of-range and fractional values.
func (v Value) isScaleInt(maxVal int) bool {
	if !v.IsNumber {
		return false
	}
	if v.Number != math.Trunc(v.Number) {
		return false
	}
	return v.Number >= 0 && v.Number <= float64(maxVal)
}

// round2 rounds to two decimal places. Distribution percentages are rounded
// independently per bucket, so a question's buckets sum to ≈100 within
// rounding tolerance rather than exactly 100. This matches product behaviour
// and is accepted, not a defect.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
