package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-realtime/core/agents"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/guardrail"
	"github.com/koscakluka/ema-realtime/core/handoff"
	"github.com/koscakluka/ema-realtime/core/recording"
	"github.com/koscakluka/ema-realtime/core/tools"
	"github.com/koscakluka/ema-realtime/core/transcript"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrMissingCredential      = errors.New("missing ephemeral credential")
	ErrTransportNotConfigured = errors.New("transport not configured")
	ErrNotConnected           = errors.New("session not connected")
	ErrClosed                 = errors.New("orchestrator closed")
)

// Orchestrator runs one realtime session. Inbound events and local commands
// are processed in order on a single runtime goroutine; state and transcript
// snapshots can be read from any goroutine.
type Orchestrator struct {
	mu             sync.Mutex
	playbackMu     sync.Mutex
	state          SessionState
	agentSet       agents.Set
	preferredAgent string
	greeting       string
	model          string

	transport   Transport
	credentials CredentialProvider
	// released is closed when the current transport connection is torn
	// down; its event callback stops waiting on the queue after that.
	released chan struct{}

	store       *transcript.Store
	attributor  guardrail.Attributor
	reconciler  *transcript.Reconciler
	calls       *tools.CallRecord
	coordinator *tools.Coordinator
	resolver    *handoff.Resolver
	toolOptions []tools.CoordinatorOption

	transcriptChanged atomic.Bool
	sessionChanged    atomic.Bool
	recordingChanged  atomic.Bool
	errMu             sync.Mutex
	pendingErrors     []error

	discarded metric.Int64Counter

	closeOnce          sync.Once
	runtime            *sessionRuntime
	orchestrateOptions OrchestrateOptions
	baseContext        context.Context
	cancel             context.CancelFunc
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		state: SessionState{
			ConnectionStatus: ConnectionStatusDisconnected,
			AudioPlayback:    true,
		},
		agentSet:    agents.DefaultRegistry().Default(),
		greeting:    defaultGreeting,
		calls:       tools.NewCallRecord(),
		runtime:     newSessionRuntime(),
		baseContext: context.Background(),
		cancel:      func() {},
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		o.store = transcript.NewStore()
	}
	var trackerOptions []guardrail.TrackerOption
	if o.attributor != nil {
		trackerOptions = append(trackerOptions, guardrail.WithAttributor(o.attributor))
	}
	o.reconciler = transcript.NewReconciler(o.store, guardrail.NewTracker(o.store, trackerOptions...))
	o.resolver = handoff.NewResolver(o.calls)
	o.coordinator = tools.NewCoordinator(append([]tools.CoordinatorOption{
		tools.WithCallRecord(o.calls),
		tools.WithInterrupter(sessionInterrupter{orchestrator: o}),
		tools.WithAnnotator(breadcrumbAnnotator{orchestrator: o}),
		tools.WithStateCallback(func(recording.State) { o.markChanged(&o.recordingChanged) }),
	}, o.toolOptions...)...)

	discarded, err := meter.Int64Counter("session.events.discarded", metric.WithDescription("Inbound events that carried nothing the transcript could use"))
	if err != nil {
		logger.Warn("failed to create discarded events counter", "error", err)
	}
	o.discarded = discarded

	return o
}

// Orchestrate starts processing queued events and commands. Callbacks
// registered through opts are only ever called from the runtime goroutine.
//
// ctx is used as the base context for event processing and for the tool
// side-effect sequences; cancelling it closes the orchestrator.
//
// Contract: call Orchestrate at most once per orchestrator instance.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.runtime.isClosed() {
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	}

	o.orchestrateOptions = OrchestrateOptions{}
	for _, opt := range opts {
		opt(&o.orchestrateOptions)
	}

	ctx, cancel := context.WithCancel(ctx)
	o.baseContext, o.cancel = ctx, cancel
	if started := o.runtime.start(ctx, o.processQueueItem, o.flushNotifications); started {
		go func() {
			<-ctx.Done()
			o.Close()
		}()
	} else {
		cancel()
		return
	}

	o.markChanged(&o.sessionChanged)
}

// Handle queues an inbound event. It blocks while the queue is full and is
// a no-op once the orchestrator is closed.
func (o *Orchestrator) Handle(event events.Event) {
	if event == nil {
		return
	}
	if !o.runtime.enqueue(eventQueueItem{event: event}) {
		logger.Debug("orchestrator closed, event not processed", "event", event.Kind())
	}
}

// handleFrom queues an event from the connection identified by released.
// Events still arriving after that connection was torn down are dropped.
func (o *Orchestrator) handleFrom(released <-chan struct{}, event events.Event) {
	if event == nil {
		return
	}
	if !o.runtime.enqueueUntil(eventQueueItem{event: event}, released) {
		logger.Debug("connection released, event not processed", "event", event.Kind())
	}
}

// Close disconnects the transport, stops the runtime and waits for tool
// side-effect sequences to finish. It must not be called from a callback.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.runtime.end()
		o.cancel()
		o.Disconnect()
		o.runtime.waitUntilEnded()
		o.coordinator.Wait()
	})
}

// Reset clears the transcript, the observed tool calls and the recording
// workflow. The connection is left untouched.
func (o *Orchestrator) Reset() error {
	return o.do("reset session", func(ctx context.Context) error {
		o.store.Reset()
		o.reconciler.Reset()
		o.coordinator.Reset()
		o.markChanged(&o.transcriptChanged)
		return nil
	})
}

// Transcript returns a snapshot of the transcript in render order.
func (o *Orchestrator) Transcript() []transcript.Entry {
	return o.store.Snapshot()
}

func (o *Orchestrator) Recording() recording.State {
	return o.coordinator.State()
}

func (o *Orchestrator) processQueueItem(ctx context.Context, item eventQueueItem) error {
	if item.command != nil {
		return item.command.run(ctx)
	}
	return o.handleEvent(ctx, item.event)
}

// do queues a command for the runtime goroutine. Commands are not awaited;
// failures are logged by the runtime.
func (o *Orchestrator) do(name string, run func(context.Context) error) error {
	if !o.runtime.enqueue(eventQueueItem{command: &command{name: name, run: run}}) {
		return ErrClosed
	}
	return nil
}

func (o *Orchestrator) markChanged(flag *atomic.Bool) {
	flag.Store(true)
	o.runtime.signal()
}

func (o *Orchestrator) reportError(err error) {
	o.errMu.Lock()
	o.pendingErrors = append(o.pendingErrors, err)
	o.errMu.Unlock()
	o.runtime.signal()
}

func (o *Orchestrator) flushNotifications(ctx context.Context) {
	opts := o.orchestrateOptions

	if o.sessionChanged.Swap(false) && opts.onSessionStateChanged != nil {
		o.notify(ctx, "session state callback", func() { opts.onSessionStateChanged(o.State()) })
	}
	if o.transcriptChanged.Swap(false) && opts.onTranscriptChanged != nil {
		o.notify(ctx, "transcript callback", func() { opts.onTranscriptChanged(o.store.Snapshot()) })
	}
	if o.recordingChanged.Swap(false) && opts.onRecordingStateChanged != nil {
		o.notify(ctx, "recording state callback", func() { opts.onRecordingStateChanged(o.coordinator.State()) })
	}

	o.errMu.Lock()
	pending := o.pendingErrors
	o.pendingErrors = nil
	o.errMu.Unlock()
	if opts.onError != nil {
		for _, err := range pending {
			o.notify(ctx, "error callback", func() { opts.onError(err) })
		}
	}
}

func (o *Orchestrator) notify(ctx context.Context, name string, callback func()) {
	run := panicSafeNamedWorker(name, func(context.Context) error {
		callback()
		return nil
	})
	if err := run(ctx); err != nil {
		logger.ErrorContext(ctx, "callback failed", "callback", name, "error", err)
	}
}

type sessionInterrupter struct {
	orchestrator *Orchestrator
}

func (i sessionInterrupter) Interrupt() error {
	if i.orchestrator.transport == nil {
		return ErrTransportNotConfigured
	}
	return i.orchestrator.transport.Interrupt()
}

// breadcrumbAnnotator adds tool breadcrumbs to the store. It is called from
// tool side-effect goroutines as well as the runtime goroutine.
type breadcrumbAnnotator struct {
	orchestrator *Orchestrator
}

func (a breadcrumbAnnotator) AddBreadcrumb(title string, data any) transcript.Breadcrumb {
	breadcrumb := a.orchestrator.store.AddBreadcrumb(title, data)
	a.orchestrator.markChanged(&a.orchestrator.transcriptChanged)
	return breadcrumb
}
