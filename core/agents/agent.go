package agents

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptySet = errors.New("agent set has no agents")

// Agent is one persona the session can run as.
type Agent struct {
	Name               string   `yaml:"name" json:"name"`
	Voice              string   `yaml:"voice" json:"voice,omitempty"`
	Instructions       string   `yaml:"instructions" json:"instructions,omitempty"`
	HandoffDescription string   `yaml:"handoff_description" json:"handoffDescription,omitempty"`
	Handoffs           []string `yaml:"handoffs" json:"handoffs,omitempty"`
}

// Set is an ordered group of agents. The first agent is the root the
// session starts with.
type Set struct {
	Key    string  `yaml:"-"`
	Agents []Agent `yaml:"agents"`
}

func (s Set) Root() (Agent, bool) {
	if len(s.Agents) == 0 {
		return Agent{}, false
	}
	return s.Agents[0], true
}

// Lookup finds an agent by name, ignoring case.
func (s Set) Lookup(name string) (Agent, bool) {
	for _, agent := range s.Agents {
		if strings.EqualFold(agent.Name, name) {
			return agent, true
		}
	}
	return Agent{}, false
}

// Reordered returns a copy of the set with the named agent moved to the
// front. Unknown names return the set unchanged.
func (s Set) Reordered(name string) Set {
	index := -1
	for i, agent := range s.Agents {
		if strings.EqualFold(agent.Name, name) {
			index = i
			break
		}
	}

	reordered := Set{Key: s.Key, Agents: make([]Agent, 0, len(s.Agents))}
	if index < 0 {
		reordered.Agents = append(reordered.Agents, s.Agents...)
		return reordered
	}
	reordered.Agents = append(reordered.Agents, s.Agents[index])
	reordered.Agents = append(reordered.Agents, s.Agents[:index]...)
	reordered.Agents = append(reordered.Agents, s.Agents[index+1:]...)
	return reordered
}

// HandoffTargets lists the agents from may hand off to, in set order.
func (s Set) HandoffTargets(from Agent) []Agent {
	var targets []Agent
	for _, name := range from.Handoffs {
		if target, ok := s.Lookup(name); ok && !strings.EqualFold(target.Name, from.Name) {
			targets = append(targets, target)
		}
	}
	return targets
}

func (s Set) Names() []string {
	names := make([]string, 0, len(s.Agents))
	for _, agent := range s.Agents {
		names = append(names, agent.Name)
	}
	return names
}

// Validate checks that the set is usable: at least one agent, unique names
// and handoffs that point into the set.
func (s Set) Validate() error {
	if len(s.Agents) == 0 {
		return fmt.Errorf("%s: %w", s.Key, ErrEmptySet)
	}

	seen := map[string]bool{}
	for i, agent := range s.Agents {
		if strings.TrimSpace(agent.Name) == "" {
			return fmt.Errorf("%s: agents[%d].name is required", s.Key, i)
		}
		key := strings.ToLower(agent.Name)
		if seen[key] {
			return fmt.Errorf("%s: duplicate agent name %q", s.Key, agent.Name)
		}
		seen[key] = true
	}

	var errs error
	for _, agent := range s.Agents {
		for _, handoff := range agent.Handoffs {
			if !seen[strings.ToLower(handoff)] {
				errs = errors.Join(errs, fmt.Errorf("%s: agent %q hands off to unknown agent %q", s.Key, agent.Name, handoff))
			}
		}
	}
	return errs
}
