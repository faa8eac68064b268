package guardrail

// Ledger is the store the tracker reads candidates from and writes results
// into. UpdateGuardrail must apply update atomically and report whether the
// item exists.
type Ledger interface {
	GuardrailCandidates() []Candidate
	UpdateGuardrail(itemID string, update func(current *Result) *Result) bool
}

type Tracker struct {
	ledger     Ledger
	attributor Attributor
}

type TrackerOption func(*Tracker)

// WithAttributor replaces the default [LatestAssistant] attribution.
func WithAttributor(attributor Attributor) TrackerOption {
	return func(t *Tracker) {
		if attributor != nil {
			t.attributor = attributor
		}
	}
}

func NewTracker(ledger Ledger, opts ...TrackerOption) *Tracker {
	t := &Tracker{ledger: ledger, attributor: LatestAssistant{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin starts review for an item that received its first assistant
// content. Items already under review are left alone.
func (t *Tracker) Begin(itemID string) bool {
	changed := false
	t.ledger.UpdateGuardrail(itemID, func(current *Result) *Result {
		if current != nil {
			return current
		}
		changed = true
		result := InProgress()
		return &result
	})
	return changed
}

// Trip marks the attributed item off brand. It returns the id of the item
// that was marked, if any.
func (t *Tracker) Trip(rationale string) (string, bool) {
	itemID, ok := t.attributor.Attribute(t.ledger.GuardrailCandidates())
	if !ok {
		return "", false
	}

	result := Tripped(rationale)
	return itemID, t.ledger.UpdateGuardrail(itemID, func(*Result) *Result { return &result })
}

// TurnDone resolves the attributed item to no issue if its review is still
// pending.
func (t *Tracker) TurnDone() (string, bool) {
	itemID, ok := t.attributor.Attribute(t.ledger.GuardrailCandidates())
	if !ok {
		return "", false
	}
	return itemID, t.ItemCompleted(itemID)
}

// ItemCompleted resolves a pending review for a specific item. Tripped and
// already resolved results are never touched.
func (t *Tracker) ItemCompleted(itemID string) bool {
	changed := false
	t.ledger.UpdateGuardrail(itemID, func(current *Result) *Result {
		if current == nil || !current.IsPending() {
			return current
		}
		changed = true
		result := Passed()
		return &result
	})
	return changed
}
