// Package anonymity implements the participation floor that gates
// response-level detail views. Aggregate statistics are never gated — they
// cannot expose a single respondent's answer — so the guard sits only in
// front of detail-rendering paths.
package anonymity

// Result is the outcome of a floor check. When Suppressed is true, callers
// must render the progress fields instead of the underlying detail.
type Result struct {
	Suppressed      bool    `json:"suppressed"`
	Remaining       int     `json:"remaining,omitempty"`
	PercentComplete float64 `json:"percent_complete,omitempty"`
}

// Guard holds the configured minimum distinct-participant count. This is a
// separate, larger threshold than the report-generation minimum — the two
// serve different purposes and are configured independently.
type Guard struct {
	Floor int
}

// New returns a Guard with the given floor. A floor of zero or less
// disables suppression entirely.
func New(floor int) Guard {
	return Guard{Floor: floor}
}

// Check compares the distinct-participant count for the scope being rendered
// against the floor. Below the floor it returns a suppressed result carrying
// how many more participants are needed and how far along the scope is.
func (g Guard) Check(participantCount int) Result {
	if g.Floor <= 0 || participantCount >= g.Floor {
		return Result{Suppressed: false}
	}

	pct := float64(participantCount) / float64(g.Floor) * 100
	if pct > 100 {
		pct = 100
	}
	return Result{
		Suppressed:      true,
		Remaining:       g.Floor - participantCount,
		PercentComplete: pct,
	}
}
