// Package handoff detects agent transfer requests in tool calls.
//
// Transfers follow the "transfer_to_<agent>" tool naming convention. The
// convention is only known to [ParseTransfer] and [TransferToolName]; the
// rest of the package works with resolved agents.
package handoff

import (
	"regexp"
	"strings"

	"github.com/koscakluka/ema-realtime/core/agents"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/tools"
)

var transferPattern = regexp.MustCompile(`^transfer_to_(.+)$`)

// ParseTransfer extracts the requested agent from a transfer tool name.
func ParseTransfer(toolName string) (string, bool) {
	match := transferPattern.FindStringSubmatch(toolName)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func TransferToolName(agentName string) string { return "transfer_to_" + agentName }

// Decision is the outcome of resolving one tool call.
type Decision struct {
	// Candidate is the agent name the call asked for. Empty for calls that
	// are not transfers.
	Candidate string
	Agent     agents.Agent
	// Switched is set when Agent differs from the agent that was active.
	Switched bool
}

// Resolver maps transfer tool calls onto agents of a set. Each call is
// resolved at most once.
type Resolver struct {
	record *tools.CallRecord
}

func NewResolver(record *tools.CallRecord) *Resolver {
	if record == nil {
		record = tools.NewCallRecord()
	}
	return &Resolver{record: record}
}

// Resolve checks a tool call against set. A switch is only reported when the
// requested agent exists and is not already active.
func (r *Resolver) Resolve(callID, toolName string, set agents.Set, active string) (Decision, bool) {
	candidate, ok := ParseTransfer(toolName)
	if !ok {
		return Decision{}, false
	}
	if callID != "" && !r.record.Mark("handoff/"+callID) {
		return Decision{Candidate: candidate}, false
	}

	agent, ok := set.Lookup(candidate)
	if !ok {
		logger.Info("transfer to unknown agent", "candidate", candidate, "agents", set.Names())
		return Decision{Candidate: candidate}, false
	}

	decision := Decision{Candidate: candidate, Agent: agent, Switched: agent.Name != active}
	return decision, decision.Switched
}

// TransferTools builds the transfer tools advertised while from is active.
// Agents listed in from's handoffs are offered; when none are listed every
// other agent in the set is.
func TransferTools(set agents.Set, from agents.Agent) []events.ToolDefinition {
	targets := set.HandoffTargets(from)
	if len(from.Handoffs) == 0 {
		for _, agent := range set.Agents {
			if !strings.EqualFold(agent.Name, from.Name) {
				targets = append(targets, agent)
			}
		}
	}

	definitions := make([]events.ToolDefinition, 0, len(targets))
	for _, target := range targets {
		description := target.HandoffDescription
		if description == "" {
			description = "Hand the conversation over to " + target.Name
		}
		definitions = append(definitions, tools.NewDefinition(TransferToolName(target.Name), description, TransferArguments{}))
	}
	return definitions
}

type TransferArguments struct {
	Rationale string `json:"rationale,omitempty" jsonschema_description:"Why the conversation is being handed over"`
}
