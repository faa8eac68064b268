package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "connection status changed", event: NewConnectionStatusChanged(ConnectionStatusConnected), expected: KindConnectionStatusChanged},
		{name: "connection failed", event: NewConnectionFailed(errors.New("boom")), expected: KindConnectionStatusChanged},
		{name: "user speech started", event: NewUserSpeechStarted("u1"), expected: KindUserSpeechStarted},
		{name: "user transcript delta", event: NewUserTranscriptDelta("u1", "Hel"), expected: KindUserTranscriptDelta},
		{name: "user transcript completed", event: NewUserTranscriptCompleted("u1", "Hello"), expected: KindUserTranscriptCompleted},
		{name: "assistant transcript delta", event: NewAssistantTranscriptDelta("a1", "r1", "Hi"), expected: KindAssistantTranscriptDelta},
		{name: "guardrail tripped", event: NewGuardrailTripped("off brand"), expected: KindGuardrailTripped},
		{name: "response done", event: NewResponseDone("r1"), expected: KindResponseDone},
		{name: "history item added", event: NewHistoryItemAdded(HistoryItem{ItemID: "a1"}), expected: KindHistoryItemAdded},
		{name: "history updated", event: NewHistoryUpdated(HistoryItem{ItemID: "a1"}), expected: KindHistoryUpdated},
		{name: "transport error", event: NewTransportError("code", "message"), expected: KindTransportError},
		{name: "unrecognized", event: NewUnrecognized("session.created", nil), expected: KindUnrecognized},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestConnectionFailedIsDisconnected(t *testing.T) {
	event := NewConnectionFailed(errors.New("boom"))

	if event.Status != ConnectionStatusDisconnected {
		t.Fatalf("expected failure to report disconnected, got %q", event.Status)
	}
	if event.Err == nil {
		t.Fatalf("expected failure to carry its error")
	}
}

func TestHistoryItemTextJoinsTextBearingPartsInOrder(t *testing.T) {
	item := HistoryItem{
		Content: []ContentPart{
			{Type: ContentTypeInputText, Text: " Hello "},
			{Type: ContentTypeAudio, Transcript: "there"},
			{Type: "image", Text: "ignored"},
			{Type: ContentTypeText, Text: ""},
			{Type: ContentTypeInputAudio, Transcript: "friend"},
		},
	}

	if got := item.Text(); got != "Hello there friend" {
		t.Fatalf("expected joined text %q, got %q", "Hello there friend", got)
	}
}

func TestHistoryItemToolCallOnlyForFunctionCalls(t *testing.T) {
	if _, ok := (HistoryItem{ItemID: "m1", Type: ItemTypeMessage}).ToolCall(); ok {
		t.Fatalf("expected message item to carry no tool call")
	}

	call, ok := HistoryItem{ItemID: "f1", Type: ItemTypeFunctionCall, Name: "startRecording", Arguments: "{}"}.ToolCall()
	if !ok {
		t.Fatalf("expected function call item to carry a tool call")
	}
	if call.ItemID != "f1" || call.Name != "startRecording" {
		t.Fatalf("unexpected tool call %+v", call)
	}
}
