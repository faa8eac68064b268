package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-realtime/core/agents"
)

func NewAgentsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the configured agent sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(deps.Config.AgentsFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, key := range registry.Keys() {
				marker := " "
				if key == registry.DefaultKey() {
					marker = "*"
				}
				set, _ := registry.Set(key)
				fmt.Fprintf(out, "%s %s\n", marker, key)
				for _, agent := range set.Agents {
					fmt.Fprintf(out, "    %s (voice %s)\n", agent.Name, agent.Voice)
				}
			}
			return nil
		},
	}
}

func loadRegistry(path string) (*agents.Registry, error) {
	if path == "" {
		return agents.DefaultRegistry(), nil
	}

	registry, err := agents.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading agents: %w", err)
	}
	return registry, nil
}
