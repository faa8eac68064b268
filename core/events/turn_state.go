package events

// KindResponseDone identifies completion of an assistant turn.
const KindResponseDone Kind = "turn_state.response_done"

// ResponseDone marks that the generation engine finished the assistant turn.
type ResponseDone struct {
	Base
	ResponseID string
}

// NewResponseDone creates a response done event.
func NewResponseDone(responseID string) ResponseDone {
	return ResponseDone{Base: NewBase(KindResponseDone), ResponseID: responseID}
}
