package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-realtime/core/agents"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/recording"
	"github.com/koscakluka/ema-realtime/core/tools"
	"github.com/koscakluka/ema-realtime/core/transcript"
	"github.com/koscakluka/ema-realtime/core/transport"
)

type transportStub struct {
	mu         sync.Mutex
	options    transport.ConnectOptions
	connects   int
	sent       []events.ClientEvent
	interrupts int
	muted      []bool
	closes     int
	connectErr error
	onClose    func()
}

func (s *transportStub) Connect(_ context.Context, opts ...transport.ConnectOption) error {
	s.mu.Lock()
	s.connects++
	s.options = transport.NewConnectOptions(opts...)
	callback := s.options.EventCallback
	err := s.connectErr
	s.mu.Unlock()

	if err != nil {
		return err
	}
	callback(events.NewConnectionStatusChanged(events.ConnectionStatusConnected))
	return nil
}

func (s *transportStub) SendEvent(event events.ClientEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, event)
	return nil
}

func (s *transportStub) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts++
	return nil
}

func (s *transportStub) Mute(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = append(s.muted, muted)
	return nil
}

func (s *transportStub) Close() error {
	s.mu.Lock()
	s.closes++
	onClose := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

func (s *transportStub) emit(event events.Event) {
	s.mu.Lock()
	callback := s.options.EventCallback
	s.mu.Unlock()
	callback(event)
}

func (s *transportStub) sentTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.sent))
	for _, event := range s.sent {
		types = append(types, event.ClientEventType())
	}
	return types
}

func (s *transportStub) sessionUpdates() []events.SessionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updates []events.SessionUpdate
	for _, event := range s.sent {
		if update, ok := event.(events.SessionUpdate); ok {
			updates = append(updates, update)
		}
	}
	return updates
}

type credentialsStub struct {
	key string
	err error
}

func (s credentialsStub) EphemeralKey(context.Context) (string, error) {
	return s.key, s.err
}

type recorderStub struct {
	mu        sync.Mutex
	started   int
	filenames []string
}

func (r *recorderStub) Start(context.Context, recording.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *recorderStub) Finalize(_ context.Context, _ recording.State, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filenames = append(r.filenames, filename)
	return nil
}

func eventually(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !condition() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", description)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func breadcrumbTitles(entries []transcript.Entry) []string {
	var titles []string
	for _, entry := range entries {
		if entry.Kind == transcript.EntryBreadcrumb {
			titles = append(titles, entry.Breadcrumb.Title)
		}
	}
	return titles
}

func countTitle(entries []transcript.Entry, title string) int {
	count := 0
	for _, got := range breadcrumbTitles(entries) {
		if got == title {
			count++
		}
	}
	return count
}

func twoAgentSet() agents.Set {
	return agents.Set{Key: "test", Agents: []agents.Agent{
		{Name: "coach", Voice: "sage", Instructions: "coach instructions"},
		{Name: "helper", Voice: "alloy", Instructions: "helper instructions"},
	}}
}

func newConnectedOrchestrator(t *testing.T, opts ...OrchestratorOption) (*Orchestrator, *transportStub) {
	t.Helper()
	stub := &transportStub{}
	o := NewOrchestrator(append([]OrchestratorOption{
		WithTransport(stub),
		WithCredentialProvider(credentialsStub{key: "ek_test"}),
	}, opts...)...)
	o.Orchestrate(context.Background())
	t.Cleanup(o.Close)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	eventually(t, "session to connect", func() bool {
		return o.State().ConnectionStatus == ConnectionStatusConnected
	})
	return o, stub
}

func TestConnectWithoutCredentialStaysDisconnected(t *testing.T) {
	stub := &transportStub{}
	o := NewOrchestrator(WithTransport(stub), WithCredentialProvider(credentialsStub{}))
	o.Orchestrate(context.Background())
	defer o.Close()

	err := o.Connect(context.Background())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if status := o.State().ConnectionStatus; status != ConnectionStatusDisconnected {
		t.Fatalf("expected DISCONNECTED, got %s", status)
	}
	if stub.connects != 0 {
		t.Fatalf("expected transport not to be dialled")
	}
	if len(o.Transcript()) != 0 {
		t.Fatalf("expected no transcript mutation")
	}
}

func TestConnectWithoutTransportFails(t *testing.T) {
	o := NewOrchestrator(WithCredentialProvider(credentialsStub{key: "ek_test"}))
	defer o.Close()

	if err := o.Connect(context.Background()); !errors.Is(err, ErrTransportNotConfigured) {
		t.Fatalf("expected ErrTransportNotConfigured, got %v", err)
	}
}

func TestConnectFailureIsReported(t *testing.T) {
	stub := &transportStub{connectErr: errors.New("dial failed")}
	reported := make(chan error, 1)
	o := NewOrchestrator(WithTransport(stub), WithCredentialProvider(credentialsStub{key: "ek_test"}))
	o.Orchestrate(context.Background(), WithErrorCallback(func(err error) {
		select {
		case reported <- err:
		default:
		}
	}))
	defer o.Close()

	if err := o.Connect(context.Background()); err == nil {
		t.Fatalf("expected connect error")
	}
	if status := o.State().ConnectionStatus; status != ConnectionStatusDisconnected {
		t.Fatalf("expected DISCONNECTED after failure, got %s", status)
	}

	select {
	case err := <-reported:
		if !errors.Is(err, stub.connectErr) {
			t.Fatalf("expected dial error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error callback")
	}
}

func TestConnectedSessionAnnouncesAgentAndGreets(t *testing.T) {
	o, stub := newConnectedOrchestrator(t)

	eventually(t, "greeting", func() bool { return len(stub.sentTypes()) == 3 })

	expected := []string{events.ClientSessionUpdate, events.ClientConversationItemCreate, events.ClientResponseCreate}
	for i, sentType := range stub.sentTypes() {
		if sentType != expected[i] {
			t.Fatalf("expected %v, got %v", expected, stub.sentTypes())
		}
	}

	state := o.State()
	if state.ActiveAgent != "studyCoachAgent" {
		t.Fatalf("expected default root agent, got %q", state.ActiveAgent)
	}

	update := stub.sessionUpdates()[0].Session
	if update.Voice != "sage" || update.Instructions == "" {
		t.Fatalf("expected agent configuration in session update, got %+v", update)
	}
	if update.TurnDetection == nil || update.TurnDetection.Type != "server_vad" || update.TurnDetection.Threshold != 0.9 {
		t.Fatalf("expected server VAD turn detection, got %+v", update.TurnDetection)
	}
	if len(update.Tools) < len(tools.Definitions()) {
		t.Fatalf("expected recording tools to be advertised, got %d tools", len(update.Tools))
	}

	stub.mu.Lock()
	muted := append([]bool(nil), stub.muted...)
	stub.mu.Unlock()
	if len(muted) != 1 || muted[0] {
		t.Fatalf("expected playback to be synced unmuted, got %v", muted)
	}

	entries := o.Transcript()
	if countTitle(entries, "Agent: studyCoachAgent") != 1 {
		t.Fatalf("expected agent breadcrumb, got %v", breadcrumbTitles(entries))
	}
	items := 0
	for _, entry := range entries {
		if entry.Kind != transcript.EntryMessage {
			continue
		}
		items++
		if !entry.Item.Hidden || entry.Item.Text != "hi" || entry.Item.Role != transcript.RoleUser {
			t.Fatalf("expected hidden greeting, got %+v", entry.Item)
		}
	}
	if items != 1 {
		t.Fatalf("expected exactly the greeting item, got %d", items)
	}
}

func TestConnectIsNoOpUnlessDisconnected(t *testing.T) {
	o, stub := newConnectedOrchestrator(t)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("expected second connect to be a no-op, got %v", err)
	}
	if stub.connects != 1 {
		t.Fatalf("expected a single dial, got %d", stub.connects)
	}
	if o.State().ConnectionStatus != ConnectionStatusConnected {
		t.Fatalf("expected session to stay connected")
	}
}

func TestPushToTalkDisablesTurnDetection(t *testing.T) {
	o, stub := newConnectedOrchestrator(t, WithPushToTalk(true), WithGreeting(""))

	eventually(t, "session update", func() bool { return len(stub.sessionUpdates()) == 1 })
	if detection := stub.sessionUpdates()[0].Session.TurnDetection; detection != nil {
		t.Fatalf("expected null turn detection for push-to-talk, got %+v", detection)
	}

	if err := o.StartPushToTalk(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := o.StopPushToTalk(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	expected := []string{
		events.ClientSessionUpdate,
		events.ClientInputAudioBufferClear,
		events.ClientInputAudioBufferCommit,
		events.ClientResponseCreate,
	}
	eventually(t, "push-to-talk events", func() bool { return len(stub.sentTypes()) == len(expected) })
	for i, sentType := range stub.sentTypes() {
		if sentType != expected[i] {
			t.Fatalf("expected %v, got %v", expected, stub.sentTypes())
		}
	}
	stub.mu.Lock()
	interrupts := stub.interrupts
	stub.mu.Unlock()
	if interrupts != 1 {
		t.Fatalf("expected push-to-talk start to interrupt, got %d", interrupts)
	}

	if err := o.SetPushToTalk(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "turn detection update", func() bool { return len(stub.sessionUpdates()) == 2 })
	if stub.sessionUpdates()[1].Session.TurnDetection == nil {
		t.Fatalf("expected server VAD after leaving push-to-talk")
	}
}

func TestCommandsRequireConnection(t *testing.T) {
	o := NewOrchestrator(WithTransport(&transportStub{}))
	o.Orchestrate(context.Background())
	defer o.Close()

	if err := o.SendUserText("hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := o.StartPushToTalk(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestHandoffSwitchesAgentOncePerCall(t *testing.T) {
	o, stub := newConnectedOrchestrator(t, WithAgentSet(twoAgentSet()), WithGreeting(""))

	call := events.HistoryItem{ItemID: "fc1", Type: events.ItemTypeFunctionCall, CallID: "call1", Name: "transfer_to_HELPER", Arguments: "{}"}
	stub.emit(events.NewHistoryItemAdded(call))
	stub.emit(events.NewHistoryUpdated(call))

	eventually(t, "handoff", func() bool { return o.State().ActiveAgent == "helper" })
	eventually(t, "session update for helper", func() bool { return len(stub.sessionUpdates()) == 2 })

	update := stub.sessionUpdates()[1].Session
	if update.Voice != "alloy" || update.Instructions != "helper instructions" {
		t.Fatalf("expected helper configuration, got %+v", update)
	}

	entries := o.Transcript()
	if countTitle(entries, "Tool call: transfer_to_HELPER") != 1 {
		t.Fatalf("expected a single tool breadcrumb, got %v", breadcrumbTitles(entries))
	}
	if countTitle(entries, "Agent: helper") != 1 {
		t.Fatalf("expected a single agent breadcrumb, got %v", breadcrumbTitles(entries))
	}
}

func TestHandoffToUnknownAgentKeepsActiveAgent(t *testing.T) {
	o, stub := newConnectedOrchestrator(t, WithAgentSet(twoAgentSet()), WithGreeting(""))

	stub.emit(events.NewHistoryItemAdded(events.HistoryItem{ItemID: "fc1", Type: events.ItemTypeFunctionCall, CallID: "call1", Name: "transfer_to_nobody"}))
	eventually(t, "tool breadcrumb", func() bool { return countTitle(o.Transcript(), "Tool call: transfer_to_nobody") == 1 })

	if agent := o.State().ActiveAgent; agent != "coach" {
		t.Fatalf("expected coach to stay active, got %q", agent)
	}
	if len(stub.sessionUpdates()) != 1 {
		t.Fatalf("expected no extra session update")
	}
}

func TestReconnectResumesWithLastActiveAgent(t *testing.T) {
	o, stub := newConnectedOrchestrator(t, WithAgentSet(twoAgentSet()), WithGreeting(""))

	stub.emit(events.NewHistoryItemAdded(events.HistoryItem{ItemID: "fc1", Type: events.ItemTypeFunctionCall, CallID: "call1", Name: "transfer_to_helper"}))
	eventually(t, "handoff", func() bool { return o.State().ActiveAgent == "helper" })

	o.Disconnect()
	state := o.State()
	if state.ConnectionStatus != ConnectionStatusDisconnected || state.ActiveAgent != "" {
		t.Fatalf("expected disconnected state without agent, got %+v", state)
	}

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected reconnect error: %v", err)
	}
	eventually(t, "reconnect", func() bool { return o.State().ConnectionStatus == ConnectionStatusConnected })
	if agent := o.State().ActiveAgent; agent != "helper" {
		t.Fatalf("expected reconnect to resume with helper, got %q", agent)
	}
}

func TestTransportDropClearsActiveAgent(t *testing.T) {
	stub := &transportStub{}
	reported := make(chan error, 1)
	o := NewOrchestrator(WithTransport(stub), WithCredentialProvider(credentialsStub{key: "ek_test"}))
	o.Orchestrate(context.Background(), WithErrorCallback(func(err error) {
		select {
		case reported <- err:
		default:
		}
	}))
	defer o.Close()

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	eventually(t, "connected", func() bool { return o.State().ConnectionStatus == ConnectionStatusConnected })

	stub.emit(events.NewConnectionFailed(errors.New("socket reset")))
	eventually(t, "disconnected", func() bool { return o.State().ConnectionStatus == ConnectionStatusDisconnected })
	if agent := o.State().ActiveAgent; agent != "" {
		t.Fatalf("expected active agent to be cleared, got %q", agent)
	}

	select {
	case <-reported:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for connection loss to be reported")
	}
}

func TestDisconnectFromCallbackDropsClosingConnectionEvents(t *testing.T) {
	stub := &transportStub{}
	stub.onClose = func() {
		// A read loop draining buffered frames while the socket closes.
		for i := 0; i < 2*sessionEventQueueCapacity; i++ {
			stub.emit(events.NewAssistantTranscriptDelta("a1", "", "x"))
		}
	}
	o := NewOrchestrator(WithTransport(stub), WithCredentialProvider(credentialsStub{key: "ek_test"}), WithGreeting(""))

	var once sync.Once
	disconnected := make(chan struct{})
	o.Orchestrate(context.Background(), WithTranscriptCallback(func(entries []transcript.Entry) {
		for _, entry := range entries {
			if entry.Item == nil || entry.Item.Text != "bye" {
				continue
			}
			once.Do(func() {
				o.Disconnect()
				close(disconnected)
			})
		}
	}))
	defer o.Close()

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	eventually(t, "connected", func() bool { return o.State().ConnectionStatus == ConnectionStatusConnected })
	stub.emit(events.NewUserTranscriptCompleted("u1", "bye"))

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatalf("disconnect from a callback did not return")
	}
	if status := o.State().ConnectionStatus; status != ConnectionStatusDisconnected {
		t.Fatalf("expected disconnected, got %s", status)
	}
}

func TestContentEventsReconciledWhileDisconnected(t *testing.T) {
	stub := &transportStub{}
	o := NewOrchestrator(WithTransport(stub))
	changed := make(chan []transcript.Entry, 8)
	o.Orchestrate(context.Background(), WithTranscriptCallback(func(entries []transcript.Entry) {
		changed <- entries
	}))
	defer o.Close()

	o.Handle(events.NewUserTranscriptCompleted("u1", "hello there"))

	select {
	case entries := <-changed:
		if len(entries) != 1 || entries[0].Item.Text != "hello there" {
			t.Fatalf("unexpected transcript %+v", entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transcript callback")
	}
	if len(stub.sentTypes()) != 0 {
		t.Fatalf("expected no client events while disconnected, got %v", stub.sentTypes())
	}
}

func TestRecordingToolsDriveRecordingState(t *testing.T) {
	recorder := &recorderStub{}
	o, stub := newConnectedOrchestrator(t, WithGreeting(""), WithRecorder(recorder), WithRecordingDelays(0, 0))

	stub.emit(events.NewHistoryItemAdded(events.HistoryItem{
		ItemID:    "fc1",
		Type:      events.ItemTypeFunctionCall,
		CallID:    "call1",
		Name:      tools.ToolStartRecording,
		Arguments: `{"recordingType":"audio","purpose":"Morning Goals"}`,
	}))
	eventually(t, "recording", func() bool { return o.Recording().Phase == recording.PhaseRecording })

	stub.emit(events.NewHistoryItemAdded(events.HistoryItem{ItemID: "fc2", Type: events.ItemTypeFunctionCall, CallID: "call2", Name: tools.ToolStopRecording}))
	eventually(t, "recording saved", func() bool {
		return countTitle(o.Transcript(), "Recording metadata saved") == 1
	})

	if phase := o.Recording().Phase; phase != recording.PhaseIdle {
		t.Fatalf("expected IDLE after saving, got %s", phase)
	}
	stub.mu.Lock()
	interrupts := stub.interrupts
	stub.mu.Unlock()
	if interrupts != 1 {
		t.Fatalf("expected assistant to be interrupted before capture, got %d", interrupts)
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.started != 1 || len(recorder.filenames) != 1 {
		t.Fatalf("expected one capture, got started=%d finalized=%v", recorder.started, recorder.filenames)
	}
}

func TestToolCallDispatchWaitsForFinalArguments(t *testing.T) {
	o, stub := newConnectedOrchestrator(t, WithGreeting(""))

	for _, raw := range []string{
		`{"type":"conversation.item.created","item":{"id":"fc1","type":"function_call","status":"in_progress","call_id":"call1","name":"saveStudentName","arguments":""}}`,
		`{"type":"response.output_item.done","item":{"id":"fc1","type":"function_call","status":"completed","call_id":"call1","name":"saveStudentName","arguments":"{\"name\":\"Ana\"}"}}`,
	} {
		event, err := events.Decode([]byte(raw))
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		stub.emit(event)
	}

	eventually(t, "student name", func() bool { return o.Recording().Subject == "Ana" })
	if count := countTitle(o.Transcript(), "Tool call: saveStudentName"); count != 1 {
		t.Fatalf("expected one tool call breadcrumb, got %d", count)
	}
	for _, entry := range o.Transcript() {
		if entry.Breadcrumb == nil || entry.Breadcrumb.Title != "Tool call: saveStudentName" {
			continue
		}
		data, _ := entry.Breadcrumb.Data.(map[string]any)
		if data["arguments"] != `{"name":"Ana"}` {
			t.Fatalf("expected final arguments in breadcrumb, got %+v", entry.Breadcrumb.Data)
		}
	}
}

func TestResetForgetsObservedToolCalls(t *testing.T) {
	o, stub := newConnectedOrchestrator(t, WithGreeting(""))

	call := events.HistoryItem{ItemID: "fc1", Type: events.ItemTypeFunctionCall, CallID: "call1", Name: tools.ToolSaveStudentName, Arguments: `{"name":"Ana"}`}
	stub.emit(events.NewHistoryItemAdded(call))
	eventually(t, "first breadcrumb", func() bool { return countTitle(o.Transcript(), "Tool call: saveStudentName") == 1 })

	if err := o.Reset(); err != nil {
		t.Fatalf("unexpected reset error: %v", err)
	}
	eventually(t, "reset", func() bool { return len(o.Transcript()) == 0 })

	stub.emit(events.NewHistoryItemAdded(call))
	eventually(t, "breadcrumb after reset", func() bool { return countTitle(o.Transcript(), "Tool call: saveStudentName") == 1 })
}

func TestSetAudioPlaybackMutesConnectedTransport(t *testing.T) {
	o, stub := newConnectedOrchestrator(t, WithGreeting(""))
	eventually(t, "playback sync", func() bool {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		return len(stub.muted) == 1
	})

	if err := o.SetAudioPlayback(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.State().AudioPlayback {
		t.Fatalf("expected playback to be disabled")
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.muted) != 2 || !stub.muted[1] {
		t.Fatalf("expected sync on connect and mute, got %v", stub.muted)
	}
}

func TestSessionStateCallbackReportsTransitions(t *testing.T) {
	stub := &transportStub{}
	states := make(chan SessionState, 16)
	o := NewOrchestrator(WithTransport(stub), WithCredentialProvider(credentialsStub{key: "ek_test"}), WithGreeting(""))
	o.Orchestrate(context.Background(), WithSessionStateCallback(func(state SessionState) {
		states <- state
	}))
	defer o.Close()

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-states:
			if state.ConnectionStatus == ConnectionStatusConnected {
				if state.ActiveAgent == "" {
					t.Fatalf("expected connected state to name the active agent")
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for connected state")
		}
	}
}
