package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-realtime/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const sessionEventQueueCapacity = 256

// eventQueueItem carries either an inbound event or a local command. Both
// run on the runtime goroutine so they observe a single ordered history.
type eventQueueItem struct {
	event    events.Event
	command  *command
	queuedAt time.Time
}

type command struct {
	name string
	run  func(context.Context) error
}

func (item eventQueueItem) name() string {
	if item.command != nil {
		return item.command.name
	}
	if item.event != nil {
		return string(item.event.Kind())
	}
	return "unknown"
}

type sessionRuntime struct {
	baseContext context.Context
	handle      func(context.Context, eventQueueItem) error
	flush       func(context.Context)

	queue   chan eventQueueItem
	signals chan struct{}
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once
	started   atomic.Bool

	processed metric.Int64Counter
	failed    metric.Int64Counter
}

func newSessionRuntime() *sessionRuntime {
	runtime := &sessionRuntime{
		baseContext: context.Background(),
		queue:       make(chan eventQueueItem, sessionEventQueueCapacity),
		signals:     make(chan struct{}, 1),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	var err error
	if runtime.processed, err = meter.Int64Counter("session.events.processed", metric.WithDescription("Queued events and commands processed")); err != nil {
		logger.Warn("failed to create processed events counter", "error", err)
	}
	if runtime.failed, err = meter.Int64Counter("session.events.failed", metric.WithDescription("Queued events and commands whose handler failed")); err != nil {
		logger.Warn("failed to create failed events counter", "error", err)
	}
	return runtime
}

// start runs handle for every queued item and flush after each item and
// whenever signal is called. Both only ever run on the runtime goroutine.
func (runtime *sessionRuntime) start(ctx context.Context, handle func(context.Context, eventQueueItem) error, flush func(context.Context)) (started bool) {
	if runtime == nil || runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		runtime.baseContext = ctx
		runtime.handle = handle
		runtime.flush = flush
		if runtime.flush == nil {
			runtime.flush = func(context.Context) {}
		}
		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case queuedEvent := <-runtime.queue:
					if runtime.isClosed() {
						return
					}
					runtime.processQueuedEvent(queuedEvent)
					runtime.flush(runtime.baseContext)
				case <-runtime.signals:
					runtime.flush(runtime.baseContext)
				}
			}
		}()
	})

	return started
}

func (runtime *sessionRuntime) end() {
	if runtime == nil {
		return
	}

	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *sessionRuntime) waitUntilEnded() {
	if runtime == nil {
		return
	}

	if runtime.started.Load() {
		<-runtime.done
	}
}

// enqueue blocks until the item is queued or the runtime is closed. Items
// are never dropped while the runtime is open.
func (runtime *sessionRuntime) enqueue(item eventQueueItem) bool {
	return runtime.enqueueUntil(item, nil)
}

// enqueueUntil is enqueue that also gives up once abandon is closed.
func (runtime *sessionRuntime) enqueueUntil(item eventQueueItem, abandon <-chan struct{}) bool {
	if runtime == nil || runtime.isClosed() {
		return false
	}

	item.queuedAt = time.Now()
	select {
	case <-runtime.closeCh:
		return false
	case <-abandon:
		return false
	case runtime.queue <- item:
		return true
	}
}

// signal asks the runtime goroutine to flush. Signals coalesce and never
// block, so it is safe to call from the runtime goroutine itself.
func (runtime *sessionRuntime) signal() {
	if runtime == nil {
		return
	}

	select {
	case runtime.signals <- struct{}{}:
	default:
	}
}

func (runtime *sessionRuntime) isClosed() bool {
	if runtime == nil {
		return false
	}

	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}

func (runtime *sessionRuntime) queuedEventCount() int {
	if runtime == nil {
		return 0
	}

	return len(runtime.queue)
}

func (runtime *sessionRuntime) processQueuedEvent(queuedEvent eventQueueItem) {
	name := queuedEvent.name()
	ctx, span := tracer.Start(runtime.baseContext, "process session event")
	defer span.End()

	queuedTime := time.Since(queuedEvent.queuedAt).Seconds()
	span.AddEvent("taken out of queue", trace.WithAttributes(attribute.Float64("session_event.queued_time", queuedTime)))
	span.SetAttributes(
		attribute.String("session_event.name", name),
		attribute.Float64("session_event.queued_time", queuedTime),
		attribute.Int("session_event.queued_events", runtime.queuedEventCount()),
	)

	attributes := metric.WithAttributes(attribute.String("session_event.name", name))
	if runtime.processed != nil {
		runtime.processed.Add(ctx, 1, attributes)
	}

	run := panicSafeNamedWorker(name, func(ctx context.Context) error {
		return runtime.handle(ctx, queuedEvent)
	})
	if err := run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "failed to process session event", "event", name, "error", err)
		if runtime.failed != nil {
			runtime.failed.Add(ctx, 1, attributes)
		}
	}
}
