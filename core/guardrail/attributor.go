package guardrail

import "time"

// Candidate is an assistant item a session scoped signal may apply to.
type Candidate struct {
	ItemID    string
	CreatedAt time.Time
	// Sequence orders candidates by creation when timestamps collide.
	Sequence  uint64
	Result    *Result
}

// Attributor selects the item a session scoped guardrail signal targets.
type Attributor interface {
	Attribute(candidates []Candidate) (itemID string, ok bool)
}

// LatestAssistant attributes signals to the most recently created assistant
// item. Overlapping assistant turns may be misattributed.
type LatestAssistant struct{}

func (LatestAssistant) Attribute(candidates []Candidate) (string, bool) {
	var (
		latest Candidate
		found  bool
	)
	for _, candidate := range candidates {
		if !found || newer(candidate, latest) {
			latest = candidate
			found = true
		}
	}
	return latest.ItemID, found
}

func newer(a, b Candidate) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Sequence > b.Sequence
}
