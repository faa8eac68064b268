package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/transport"
)

type realtimeServer struct {
	*httptest.Server
	received chan map[string]any
	headers  chan http.Header
	query    chan string
}

func newRealtimeServer(t *testing.T, serverEvents ...string) *realtimeServer {
	t.Helper()

	server := &realtimeServer{
		received: make(chan map[string]any, 16),
		headers:  make(chan http.Header, 1),
		query:    make(chan string, 1),
	}
	upgrader := websocket.Upgrader{}
	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.headers <- r.Header.Clone()
		server.query <- r.URL.Query().Get("model")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()

		for _, event := range serverEvents {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
				return
			}
		}

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var decoded map[string]any
			if err := json.Unmarshal(msg, &decoded); err == nil {
				server.received <- decoded
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func (s *realtimeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func collectEvents(buffer int) (chan events.Event, func(events.Event)) {
	received := make(chan events.Event, buffer)
	return received, func(event events.Event) { received <- event }
}

func nextEvent(t *testing.T, received chan events.Event) events.Event {
	t.Helper()
	select {
	case event := <-received:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestConnectDeliversDecodedEventsInOrder(t *testing.T) {
	server := newRealtimeServer(t,
		`{"type":"response.text.delta","item_id":"a1","delta":"Hel"}`,
		`{"type":"not json"`,
		`{"type":"response.text.delta","item_id":"a1","delta":"lo"}`,
	)
	received, callback := collectEvents(8)
	decodeErrors := make(chan error, 1)

	client := NewClient(WithURL(server.wsURL()), WithModel("test-model"))
	err := client.Connect(context.Background(),
		transport.WithEphemeralKey("ek_1"),
		transport.WithEventCallback(callback),
		transport.WithDecodeErrorCallback(func(_ []byte, err error) { decodeErrors <- err }),
	)
	if err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer client.Close()

	if status, ok := nextEvent(t, received).(events.ConnectionStatusChanged); !ok || status.Status != events.ConnectionStatusConnected {
		t.Fatalf("expected connected status first, got %#v", status)
	}
	for _, expected := range []string{"Hel", "lo"} {
		delta, ok := nextEvent(t, received).(events.AssistantTranscriptDelta)
		if !ok || delta.Delta != expected {
			t.Fatalf("expected delta %q, got %#v", expected, delta)
		}
	}
	select {
	case <-decodeErrors:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a decode error for the malformed message")
	}

	if got := (<-server.headers).Get("Authorization"); got != "Bearer ek_1" {
		t.Fatalf("unexpected authorization header %q", got)
	}
	if got := <-server.query; got != "test-model" {
		t.Fatalf("unexpected model %q", got)
	}
}

func TestSendEventWritesJSON(t *testing.T) {
	server := newRealtimeServer(t)
	received, callback := collectEvents(8)

	client := NewClient(WithURL(server.wsURL()))
	if err := client.Connect(context.Background(), transport.WithEventCallback(callback)); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer client.Close()
	nextEvent(t, received)

	if err := client.SendEvent(events.NewSessionUpdate(events.SessionConfig{Voice: "sage"})); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := client.Interrupt(); err != nil {
		t.Fatalf("unexpected interrupt error: %v", err)
	}

	for _, expected := range []string{events.ClientSessionUpdate, events.ClientResponseCancel} {
		select {
		case message := <-server.received:
			if message["type"] != expected {
				t.Fatalf("expected %s, got %v", expected, message["type"])
			}
			if expected == events.ClientSessionUpdate {
				session := message["session"].(map[string]any)
				if detection, ok := session["turn_detection"]; !ok || detection != nil {
					t.Fatalf("expected explicit null turn detection, got %v", session)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", expected)
		}
	}
}

func TestCloseEmitsDisconnected(t *testing.T) {
	server := newRealtimeServer(t)
	received, callback := collectEvents(8)

	client := NewClient(WithURL(server.wsURL()))
	if err := client.Connect(context.Background(), transport.WithEventCallback(callback)); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	nextEvent(t, received)

	if err := client.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	status, ok := nextEvent(t, received).(events.ConnectionStatusChanged)
	if !ok || status.Status != events.ConnectionStatusDisconnected || status.Err != nil {
		t.Fatalf("expected clean disconnect, got %#v", status)
	}
	if err := client.SendEvent(events.NewResponseCreate()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	client := NewClient(WithURL("ws://127.0.0.1:1/realtime"))
	if err := client.Connect(context.Background()); err == nil {
		t.Fatalf("expected connect to fail")
	}
	if err := client.SendEvent(events.NewResponseCreate()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestMuteIsTracked(t *testing.T) {
	client := NewClient()
	_ = client.Mute(true)
	if !client.Muted() {
		t.Fatalf("expected client to be muted")
	}
}
