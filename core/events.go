package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// handleEvent runs one inbound event through lifecycle handling,
// reconciliation and tool dispatch, in that order.
func (o *Orchestrator) handleEvent(ctx context.Context, event events.Event) error {
	if o.orchestrateOptions.onServerEvent != nil {
		o.notify(ctx, "server event callback", func() { o.orchestrateOptions.onServerEvent(event) })
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("session_event.kind", string(event.Kind())))

	switch e := event.(type) {
	case events.ConnectionStatusChanged:
		return o.handleConnectionStatus(ctx, e)
	case events.TransportError:
		logger.WarnContext(ctx, "transport reported an error", "code", e.Code, "message", e.Message)
		o.reportError(fmt.Errorf("transport error %s: %s", e.Code, e.Message))
		return nil
	case events.Unrecognized:
		logger.DebugContext(ctx, "server event", "type", e.Type)
		return nil
	}

	changed, err := o.reconciler.Apply(event)
	if len(changed) > 0 {
		o.markChanged(&o.transcriptChanged)
	}
	if errors.Is(err, transcript.ErrDiscarded) {
		logger.DebugContext(ctx, "event discarded", "event", event.Kind(), "reason", err)
		if o.discarded != nil {
			o.discarded.Add(ctx, 1, metric.WithAttributes(attribute.String("session_event.kind", string(event.Kind()))))
		}
	} else if err != nil {
		err = fmt.Errorf("failed to reconcile %s: %w", event.Kind(), err)
	}

	o.dispatchToolCalls(ctx, event)

	if errors.Is(err, transcript.ErrDiscarded) {
		return nil
	}
	return err
}
