package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-realtime/core/agents"
	"github.com/koscakluka/ema-realtime/core/credentials"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/handoff"
	"github.com/koscakluka/ema-realtime/core/tools"
	"github.com/koscakluka/ema-realtime/core/transport"
	"github.com/koscakluka/ema-realtime/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ConnectionStatus string

const (
	ConnectionStatusDisconnected ConnectionStatus = "DISCONNECTED"
	ConnectionStatusConnecting   ConnectionStatus = "CONNECTING"
	ConnectionStatusConnected    ConnectionStatus = "CONNECTED"
)

// SessionState is the externally visible state of the session.
type SessionState struct {
	ConnectionStatus ConnectionStatus
	// ActiveAgent is empty unless the session is connected.
	ActiveAgent   string
	PushToTalk    bool
	AudioPlayback bool
}

func (o *Orchestrator) State() SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Connect fetches an ephemeral key and opens the transport. It is a no-op
// unless the session is disconnected. The session only becomes connected
// once the transport reports it; a failed attempt leaves it disconnected and
// is never retried.
func (o *Orchestrator) Connect(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "connect session")
	defer span.End()

	if o.runtime.isClosed() {
		return ErrClosed
	}

	o.mu.Lock()
	if o.state.ConnectionStatus != ConnectionStatusDisconnected {
		status := o.state.ConnectionStatus
		o.mu.Unlock()
		logger.DebugContext(ctx, "connect ignored", "status", status)
		return nil
	}
	o.state.ConnectionStatus = ConnectionStatusConnecting
	o.mu.Unlock()
	o.markChanged(&o.sessionChanged)

	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "failed to connect session", "error", err)
		o.setDisconnected(ConnectionStatusConnecting)
		o.reportError(err)
	}()

	if o.transport == nil {
		return ErrTransportNotConfigured
	}

	key, err := o.ephemeralKey(ctx)
	if err != nil {
		return err
	}

	released := make(chan struct{})
	o.mu.Lock()
	o.released = released
	o.mu.Unlock()

	opts := []transport.ConnectOption{
		transport.WithEphemeralKey(key),
		transport.WithEventCallback(func(event events.Event) { o.handleFrom(released, event) }),
		transport.WithDecodeErrorCallback(func(raw []byte, err error) {
			logger.Warn("failed to decode server event", "error", err, "size", len(raw))
		}),
	}
	if o.model != "" {
		opts = append(opts, transport.WithModel(o.model))
	}
	if err := o.transport.Connect(ctx, opts...); err != nil {
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	return nil
}

func (o *Orchestrator) ephemeralKey(ctx context.Context) (string, error) {
	if o.credentials == nil {
		return "", ErrMissingCredential
	}

	key, err := o.credentials.EphemeralKey(ctx)
	if errors.Is(err, credentials.ErrNoSecret) {
		return "", fmt.Errorf("%w: %w", ErrMissingCredential, err)
	} else if err != nil {
		return "", fmt.Errorf("failed to fetch ephemeral key: %w", err)
	}
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}

// Disconnect closes the transport and marks the session disconnected
// immediately. Events the closing connection still delivers are dropped, so
// it is safe to call from a callback.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	changed := o.state.ConnectionStatus != ConnectionStatusDisconnected
	o.state.ConnectionStatus = ConnectionStatusDisconnected
	o.state.ActiveAgent = ""
	released := o.released
	o.released = nil
	o.mu.Unlock()

	if released != nil {
		close(released)
	}

	if o.transport != nil {
		if err := o.transport.Close(); err != nil {
			logger.Warn("failed to close transport", "error", err)
		}
	}
	if changed {
		o.markChanged(&o.sessionChanged)
	}
}

// setDisconnected moves the session to disconnected if it is currently in
// from.
func (o *Orchestrator) setDisconnected(from ConnectionStatus) bool {
	o.mu.Lock()
	if o.state.ConnectionStatus != from {
		o.mu.Unlock()
		return false
	}
	o.state.ConnectionStatus = ConnectionStatusDisconnected
	o.state.ActiveAgent = ""
	o.mu.Unlock()

	o.markChanged(&o.sessionChanged)
	return true
}

func (o *Orchestrator) handleConnectionStatus(ctx context.Context, event events.ConnectionStatusChanged) error {
	switch event.Status {
	case events.ConnectionStatusConnected:
		return o.connected(ctx)

	case events.ConnectionStatusDisconnected:
		// Connect failures are handled synchronously, so only a live session
		// can be dropped here. Stale reports from a closed connection are
		// ignored.
		if !o.setDisconnected(ConnectionStatusConnected) {
			return nil
		}
		if event.Err != nil {
			logger.WarnContext(ctx, "session connection lost", "error", event.Err)
			o.reportError(fmt.Errorf("connection lost: %w", event.Err))
		} else {
			logger.InfoContext(ctx, "session disconnected")
		}
	}
	return nil
}

func (o *Orchestrator) connected(ctx context.Context) error {
	o.mu.Lock()
	if o.state.ConnectionStatus != ConnectionStatusConnecting {
		status := o.state.ConnectionStatus
		o.mu.Unlock()
		logger.WarnContext(ctx, "ignoring connected report", "status", status)
		return nil
	}
	o.agentSet = o.agentSet.Reordered(o.preferredAgent)
	agent, ok := o.agentSet.Root()
	o.state.ConnectionStatus = ConnectionStatusConnected
	o.state.ActiveAgent = agent.Name
	o.mu.Unlock()
	o.markChanged(&o.sessionChanged)

	if !ok {
		return fmt.Errorf("connected without agents: %w", agents.ErrEmptySet)
	}
	logger.InfoContext(ctx, "session connected", "agent", agent.Name)

	var errs error
	if err := o.announceAgent(ctx, agent); err != nil {
		errs = errors.Join(errs, err)
	}
	if err := o.syncPlayback(); err != nil {
		errs = errors.Join(errs, err)
	}
	if err := o.greet(ctx); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

// announceAgent records that agent took over and pushes its configuration.
func (o *Orchestrator) announceAgent(ctx context.Context, agent agents.Agent) error {
	o.store.AddBreadcrumb("Agent: "+agent.Name, agent)
	o.markChanged(&o.transcriptChanged)
	return o.pushSessionUpdate(ctx)
}

// pushSessionUpdate sends the active agent's configuration. It is
// suppressed unless the session is connected.
func (o *Orchestrator) pushSessionUpdate(ctx context.Context) error {
	o.mu.Lock()
	state := o.state
	set := o.agentSet
	o.mu.Unlock()

	if state.ConnectionStatus != ConnectionStatusConnected {
		logger.DebugContext(ctx, "session update suppressed", "status", state.ConnectionStatus)
		return nil
	}

	agent, ok := set.Lookup(state.ActiveAgent)
	if !ok {
		return fmt.Errorf("active agent %q is not in set %q", state.ActiveAgent, set.Key)
	}

	config, err := sessionConfig(set, agent, state.PushToTalk)
	if err != nil {
		return err
	}
	return o.send(ctx, events.NewSessionUpdate(config))
}

func sessionConfig(set agents.Set, agent agents.Agent, pushToTalk bool) (events.SessionConfig, error) {
	var config events.SessionConfig
	if err := copier.Copy(&config, &agent); err != nil {
		return events.SessionConfig{}, fmt.Errorf("failed to map agent %s onto session config: %w", agent.Name, err)
	}

	config.Tools = append(tools.Definitions(), handoff.TransferTools(set, agent)...)
	if !pushToTalk {
		config.TurnDetection = utils.Ptr(events.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.9,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 500,
			CreateResponse:    true,
		})
	}
	return config, nil
}

func (o *Orchestrator) greet(ctx context.Context) error {
	if o.greeting == "" {
		return nil
	}
	return o.sendSimulatedUserMessage(ctx, o.greeting)
}

// sendSimulatedUserMessage sends text on the user's behalf and asks for a
// response. The message is kept hidden in the transcript.
func (o *Orchestrator) sendSimulatedUserMessage(ctx context.Context, text string) error {
	itemID := newMessageID()
	if _, ok := o.reconciler.AddSimulatedUserMessage(itemID, text); ok {
		o.markChanged(&o.transcriptChanged)
	}

	if err := o.send(ctx, events.NewUserTextMessage(itemID, text)); err != nil {
		return err
	}
	return o.send(ctx, events.NewResponseCreate())
}

func (o *Orchestrator) send(ctx context.Context, event events.ClientEvent) error {
	if o.transport == nil {
		return ErrTransportNotConfigured
	}

	logger.DebugContext(ctx, "client event", "type", event.ClientEventType())
	if err := o.transport.SendEvent(event); err != nil {
		return fmt.Errorf("failed to send %s: %w", event.ClientEventType(), err)
	}
	return nil
}

// SendUserText sends a typed user message and asks for a response. The
// message enters the transcript when the server echoes it back.
func (o *Orchestrator) SendUserText(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := o.requireConnected(); err != nil {
		return err
	}

	return o.do("send user text", func(ctx context.Context) error {
		if err := o.send(ctx, events.NewUserTextMessage(newMessageID(), text)); err != nil {
			return err
		}
		return o.send(ctx, events.NewResponseCreate())
	})
}

// StartPushToTalk interrupts the assistant and clears buffered input audio.
func (o *Orchestrator) StartPushToTalk() error {
	if err := o.requireConnected(); err != nil {
		return err
	}

	return o.do("start push to talk", func(ctx context.Context) error {
		if err := o.transport.Interrupt(); err != nil {
			logger.WarnContext(ctx, "failed to interrupt assistant", "error", err)
		}
		return o.send(ctx, events.NewInputAudioBufferClear())
	})
}

// StopPushToTalk commits the buffered input audio and asks for a response.
func (o *Orchestrator) StopPushToTalk() error {
	if err := o.requireConnected(); err != nil {
		return err
	}

	return o.do("stop push to talk", func(ctx context.Context) error {
		if err := o.send(ctx, events.NewInputAudioBufferCommit()); err != nil {
			return err
		}
		return o.send(ctx, events.NewResponseCreate())
	})
}

// SetPushToTalk switches between push-to-talk and server-side voice
// activity detection. The change is pushed to a connected session.
func (o *Orchestrator) SetPushToTalk(enabled bool) error {
	o.mu.Lock()
	changed := o.state.PushToTalk != enabled
	o.state.PushToTalk = enabled
	o.mu.Unlock()
	if !changed {
		return nil
	}

	o.markChanged(&o.sessionChanged)
	return o.do("update turn detection", func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "update turn detection")
		defer span.End()
		span.SetAttributes(attribute.Bool("session.push_to_talk", enabled))

		return o.pushSessionUpdate(ctx)
	})
}

// SetAudioPlayback enables or mutes assistant audio.
func (o *Orchestrator) SetAudioPlayback(enabled bool) error {
	o.mu.Lock()
	changed := o.state.AudioPlayback != enabled
	o.state.AudioPlayback = enabled
	o.mu.Unlock()

	if changed {
		o.markChanged(&o.sessionChanged)
	}
	return o.syncPlayback()
}

// syncPlayback mutes or unmutes a connected transport to match the current
// playback setting. Calls are serialised so the last setting wins.
func (o *Orchestrator) syncPlayback() error {
	o.playbackMu.Lock()
	defer o.playbackMu.Unlock()

	state := o.State()
	if state.ConnectionStatus != ConnectionStatusConnected || o.transport == nil {
		return nil
	}
	if err := o.transport.Mute(!state.AudioPlayback); err != nil {
		return fmt.Errorf("failed to sync playback state: %w", err)
	}
	return nil
}

func (o *Orchestrator) requireConnected() error {
	if o.runtime.isClosed() {
		return ErrClosed
	}
	if o.State().ConnectionStatus != ConnectionStatusConnected {
		return ErrNotConnected
	}
	return nil
}

// newMessageID returns an id short enough for the conversation item limit.
func newMessageID() string {
	return uuid.NewString()[:32]
}
