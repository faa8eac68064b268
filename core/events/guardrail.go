package events

// KindGuardrailTripped identifies output guardrail trips.
const KindGuardrailTripped Kind = "guardrail.tripped"

// GuardrailTripped marks a session-scoped guardrail trip.
type GuardrailTripped struct {
	Base
	Rationale string
}

// NewGuardrailTripped creates a guardrail trip event.
func NewGuardrailTripped(rationale string) GuardrailTripped {
	return GuardrailTripped{Base: NewBase(KindGuardrailTripped), Rationale: rationale}
}
