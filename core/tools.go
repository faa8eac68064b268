package orchestration

import (
	"context"

	"github.com/koscakluka/ema-realtime/core/agents"
	"github.com/koscakluka/ema-realtime/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func (o *Orchestrator) dispatchToolCalls(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.HistoryItemAdded:
		o.observeToolCall(ctx, e.Item)
	case events.HistoryUpdated:
		for _, item := range e.Items {
			o.observeToolCall(ctx, item)
		}
	}
}

// observeToolCall hands a function call item to the tool coordinator and
// the handoff resolver. Both ignore calls they have already seen.
func (o *Orchestrator) observeToolCall(ctx context.Context, item events.HistoryItem) {
	call, ok := item.ToolCall()
	if !ok {
		return
	}
	o.coordinator.Observe(ctx, call)

	o.mu.Lock()
	set := o.agentSet
	active := o.state.ActiveAgent
	o.mu.Unlock()

	decision, switched := o.resolver.Resolve(firstNonEmpty(call.CallID, call.ItemID), call.Name, set, active)
	if !switched {
		return
	}
	o.switchAgent(ctx, decision.Agent)
}

func (o *Orchestrator) switchAgent(ctx context.Context, agent agents.Agent) {
	ctx, span := tracer.Start(ctx, "switch agent")
	defer span.End()
	span.SetAttributes(attribute.String("agent.name", agent.Name))

	o.mu.Lock()
	o.preferredAgent = agent.Name
	connected := o.state.ConnectionStatus == ConnectionStatusConnected
	if connected {
		o.state.ActiveAgent = agent.Name
	}
	o.mu.Unlock()
	o.markChanged(&o.sessionChanged)
	logger.InfoContext(ctx, "agent handoff", "agent", agent.Name, "connected", connected)

	if err := o.announceAgent(ctx, agent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "failed to push session update after handoff", "agent", agent.Name, "error", err)
	}
	if !connected {
		return
	}
	if err := o.greet(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "failed to greet after handoff", "agent", agent.Name, "error", err)
	}
}
