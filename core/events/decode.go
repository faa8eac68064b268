package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is returned by [Decode] when a wire message lacks a field
// its event kind requires.
var ErrMissingField = errors.New("wire message missing required field")

// Wire message types understood by [Decode].
const (
	WireResponseTextDelta                  = "response.text.delta"
	WireResponseAudioTranscriptDelta       = "response.audio_transcript.delta"
	WireResponseOutputTextDelta            = "response.output_text.delta"
	WireResponseOutputAudioTranscriptDelta = "response.output_audio_transcript.delta"
	WireSpeechStarted                      = "input_audio_buffer.speech_started"
	WireInputTranscriptionDelta            = "conversation.item.input_audio_transcription.delta"
	WireInputTranscriptionDeltaAlt         = "conversation.input_audio_transcription.delta"
	WireInputTranscriptionCompleted        = "conversation.item.input_audio_transcription.completed"
	WireGuardrailTripped                   = "guardrail_tripped"
	WireResponseDone                       = "response.done"
	WireItemCreated                        = "conversation.item.created"
	WireItemAdded                          = "conversation.item.added"
	WireItemDone                           = "conversation.item.done"
	WireOutputItemDone                     = "response.output_item.done"
	WireHistoryAdded                       = "history_added"
	WireHistoryUpdated                     = "history_updated"
	WireError                              = "error"
)

type wireContentPart struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Transcript *string `json:"transcript"`
}

type wireItem struct {
	ID        string            `json:"id"`
	ItemID    string            `json:"itemId"`
	Type      string            `json:"type"`
	Role      string            `json:"role"`
	Status    string            `json:"status"`
	Content   []wireContentPart `json:"content"`
	CallID    string            `json:"call_id"`
	CallIDAlt string            `json:"callId"`
	Name      string            `json:"name"`
	Arguments json.RawMessage   `json:"arguments"`
	Output    *string           `json:"output"`
}

type wireMessage struct {
	Type          string     `json:"type"`
	ItemID        string     `json:"item_id"`
	ItemIDAlt     string     `json:"itemId"`
	ResponseID    string     `json:"response_id"`
	ResponseIDAlt string     `json:"responseId"`
	Delta         *string    `json:"delta"`
	Text          *string    `json:"text"`
	Transcript    *string    `json:"transcript"`
	Rationale     string     `json:"rationale"`
	Item          *wireItem  `json:"item"`
	History       []wireItem `json:"history"`
	Response      *struct {
		ID string `json:"id"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Decode maps a realtime wire message to a typed event. Messages without a
// mapping decode to [Unrecognized]; messages missing required fields return
// an error wrapping [ErrMissingField].
func Decode(raw []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wire message: %w", err)
	}

	itemID := firstNonEmpty(msg.ItemID, msg.ItemIDAlt)
	responseID := firstNonEmpty(msg.ResponseID, msg.ResponseIDAlt)

	switch msg.Type {
	case WireResponseTextDelta, WireResponseAudioTranscriptDelta,
		WireResponseOutputTextDelta, WireResponseOutputAudioTranscriptDelta:
		delta := firstPresent(msg.Delta, msg.Text)
		if delta == nil {
			return nil, missing(msg.Type, "delta")
		}
		if itemID == "" && responseID == "" {
			return nil, missing(msg.Type, "item_id")
		}
		return NewAssistantTranscriptDelta(itemID, responseID, *delta), nil

	case WireSpeechStarted:
		if itemID == "" {
			return nil, missing(msg.Type, "item_id")
		}
		return NewUserSpeechStarted(itemID), nil

	case WireInputTranscriptionDelta, WireInputTranscriptionDeltaAlt:
		delta := firstPresent(msg.Delta, msg.Text)
		if delta == nil {
			return nil, missing(msg.Type, "delta")
		}
		if itemID == "" {
			return nil, missing(msg.Type, "item_id")
		}
		return NewUserTranscriptDelta(itemID, *delta), nil

	case WireInputTranscriptionCompleted:
		if msg.Transcript == nil {
			return nil, missing(msg.Type, "transcript")
		}
		if itemID == "" {
			return nil, missing(msg.Type, "item_id")
		}
		return NewUserTranscriptCompleted(itemID, *msg.Transcript), nil

	case WireGuardrailTripped:
		return NewGuardrailTripped(msg.Rationale), nil

	case WireResponseDone:
		if msg.Response != nil && responseID == "" {
			responseID = msg.Response.ID
		}
		return NewResponseDone(responseID), nil

	case WireItemCreated, WireItemAdded, WireHistoryAdded:
		if msg.Item == nil {
			return nil, missing(msg.Type, "item")
		}
		return NewHistoryItemAdded(msg.Item.toHistoryItem()), nil

	case WireItemDone, WireOutputItemDone:
		if msg.Item == nil {
			return nil, missing(msg.Type, "item")
		}
		return NewHistoryUpdated(msg.Item.toHistoryItem()), nil

	case WireHistoryUpdated:
		items := make([]HistoryItem, 0, len(msg.History))
		for _, item := range msg.History {
			items = append(items, item.toHistoryItem())
		}
		return NewHistoryUpdated(items...), nil

	case WireError:
		if msg.Error == nil {
			return NewTransportError("", ""), nil
		}
		return NewTransportError(msg.Error.Code, msg.Error.Message), nil
	}

	return NewUnrecognized(msg.Type, raw), nil
}

func (w wireItem) toHistoryItem() HistoryItem {
	item := HistoryItem{
		ItemID:    firstNonEmpty(w.ID, w.ItemID),
		Type:      ItemType(w.Type),
		Role:      w.Role,
		Status:    w.Status,
		CallID:    firstNonEmpty(w.CallID, w.CallIDAlt),
		Name:      w.Name,
		Arguments: decodeArguments(w.Arguments),
	}
	if w.Output != nil {
		item.Output = *w.Output
	}
	for _, part := range w.Content {
		contentPart := ContentPart{Type: ContentType(part.Type), Text: part.Text}
		if part.Transcript != nil {
			contentPart.Transcript = *part.Transcript
		}
		item.Content = append(item.Content, contentPart)
	}
	return item
}

// decodeArguments keeps arguments as the JSON text the tool would receive.
// The wire usually carries a JSON-encoded string; structured objects are
// kept verbatim.
func decodeArguments(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func missing(messageType, field string) error {
	return fmt.Errorf("%w: %s has no %s", ErrMissingField, messageType, field)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func firstPresent(values ...*string) *string {
	for _, value := range values {
		if value != nil {
			return value
		}
	}
	return nil
}
