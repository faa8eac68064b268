package cli

import (
	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-realtime/internal/config"
	"github.com/koscakluka/ema-realtime/internal/version"
)

type Dependencies struct {
	Config *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "realtime-session",
		Short: "Run a realtime voice agent session from the terminal",
		Long:  "Connects to a realtime session, prints the reconciled transcript and lets you talk to the agents by typing.",
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewConnectCmd(deps))
	rootCmd.AddCommand(NewAgentsCmd(deps))

	return rootCmd
}
