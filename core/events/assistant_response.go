package events

// KindAssistantTranscriptDelta identifies streamed assistant text or audio
// transcript fragments.
const KindAssistantTranscriptDelta Kind = "assistant_response.transcript_delta"

// AssistantTranscriptDelta carries a streamed assistant fragment. Either
// ItemID or ResponseID may be empty, depending on what the wire message
// carried.
type AssistantTranscriptDelta struct {
	Base
	ItemID     string
	ResponseID string
	Delta      string
}

// NewAssistantTranscriptDelta creates an assistant fragment event.
func NewAssistantTranscriptDelta(itemID, responseID, delta string) AssistantTranscriptDelta {
	return AssistantTranscriptDelta{
		Base:       NewBase(KindAssistantTranscriptDelta),
		ItemID:     itemID,
		ResponseID: responseID,
		Delta:      delta,
	}
}
