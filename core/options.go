package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-realtime/core/agents"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/guardrail"
	"github.com/koscakluka/ema-realtime/core/recording"
	"github.com/koscakluka/ema-realtime/core/tools"
	"github.com/koscakluka/ema-realtime/core/transcript"
	"github.com/koscakluka/ema-realtime/core/transport"
)

const defaultGreeting = "hi"

type OrchestratorOption func(*Orchestrator)

// Transport is the realtime connection the session runs over. Events must
// be delivered to the connect option's event callback in arrival order.
type Transport interface {
	Connect(ctx context.Context, opts ...transport.ConnectOption) error
	SendEvent(event events.ClientEvent) error
	Interrupt() error
	Mute(muted bool) error
	Close() error
}

func WithTransport(client Transport) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transport = client
	}
}

// CredentialProvider mints the short-lived secret a transport connects with.
type CredentialProvider interface {
	EphemeralKey(ctx context.Context) (string, error)
}

func WithCredentialProvider(provider CredentialProvider) OrchestratorOption {
	return func(o *Orchestrator) {
		o.credentials = provider
	}
}

// WithModel sets the model passed to the transport on connect. When unset
// the transport default is used.
func WithModel(model string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.model = model
	}
}

// WithAgentSet sets the agents the session can run as. The first agent is
// the root.
func WithAgentSet(set agents.Set) OrchestratorOption {
	return func(o *Orchestrator) {
		if len(set.Agents) > 0 {
			o.agentSet = set
		}
	}
}

// WithAgentRegistry selects the agent set stored under key. Unknown keys
// fall back to the registry default.
func WithAgentRegistry(registry *agents.Registry, key string) OrchestratorOption {
	return func(o *Orchestrator) {
		if registry == nil {
			return
		}
		set, ok := registry.Set(key)
		if !ok {
			logger.Warn("unknown agent set, using default", "key", key, "default", registry.DefaultKey())
			set = registry.Default()
		}
		if len(set.Agents) > 0 {
			o.agentSet = set
		}
	}
}

// WithPreferredAgent sets the agent the first connect starts with.
func WithPreferredAgent(name string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.preferredAgent = name
	}
}

// WithGreeting sets the message sent on the user's behalf whenever an agent
// takes over. An empty greeting disables it.
func WithGreeting(greeting string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.greeting = greeting
	}
}

func WithPushToTalk(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.state.PushToTalk = enabled
	}
}

func WithAudioPlayback(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.state.AudioPlayback = enabled
	}
}

// WithTranscriptStore replaces the store the transcript is kept in.
func WithTranscriptStore(store *transcript.Store) OrchestratorOption {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// WithGuardrailAttributor changes which item a session-scoped guardrail
// trip is attributed to.
func WithGuardrailAttributor(attributor guardrail.Attributor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.attributor = attributor
	}
}

// WithRecorder sets the collaborator that captures and persists recordings
// driven by the recording tools.
func WithRecorder(recorder tools.Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.toolOptions = append(o.toolOptions, tools.WithRecorder(recorder))
	}
}

// WithRecordingDelays overrides how long capture waits for speech to settle
// before starting and after arming.
func WithRecordingDelays(settle, postArm time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.toolOptions = append(o.toolOptions, tools.WithSettleDelay(settle), tools.WithPostArmDelay(postArm))
	}
}

type OrchestrateOptions struct {
	onTranscriptChanged     func(entries []transcript.Entry)
	onSessionStateChanged   func(state SessionState)
	onRecordingStateChanged func(state recording.State)
	onServerEvent           func(event events.Event)
	onError                 func(err error)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithTranscriptCallback registers a callback receiving a snapshot of the
// transcript whenever it changed. Changes made in quick succession may be
// reported by a single call.
func WithTranscriptCallback(callback func(entries []transcript.Entry)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscriptChanged = callback
	}
}

func WithSessionStateCallback(callback func(state SessionState)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onSessionStateChanged = callback
	}
}

func WithRecordingStateCallback(callback func(state recording.State)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onRecordingStateChanged = callback
	}
}

// WithServerEventCallback registers a callback for every inbound event
// before it is processed.
func WithServerEventCallback(callback func(event events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onServerEvent = callback
	}
}

// WithErrorCallback registers a callback for connection failures and errors
// reported by the transport.
func WithErrorCallback(callback func(err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onError = callback
	}
}
