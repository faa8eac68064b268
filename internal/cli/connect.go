package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	orchestration "github.com/koscakluka/ema-realtime/core"
	"github.com/koscakluka/ema-realtime/core/credentials"
	"github.com/koscakluka/ema-realtime/core/transport/openai"
	"github.com/koscakluka/ema-realtime/internal/config"
	"github.com/koscakluka/ema-realtime/internal/output"
)

const helpText = "Type a message and press enter. Commands: /mute, /unmute, /ptt on|off, /talk, /send, /reset, /quit"

type connectOptions struct {
	AgentSet   string
	PushToTalk bool
}

func NewConnectCmd(deps *Dependencies) *cobra.Command {
	opts := connectOptions{}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a realtime session",
		Long:  "Open a realtime session and chat with the agents by typing.\nPress Ctrl+C or type /quit to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("push-to-talk") {
				opts.PushToTalk = deps.Config.PushToTalk
			}
			if opts.AgentSet == "" {
				opts.AgentSet = deps.Config.AgentSet
			}
			return runSession(cmd.Context(), deps.Config, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.AgentSet, "agents", "a", "", "Agent set to run (defaults to the registry default)")
	cmd.Flags().BoolVar(&opts.PushToTalk, "push-to-talk", false, "Disable server voice activity detection")

	return cmd
}

func runSession(ctx context.Context, cfg *config.Config, opts connectOptions, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	registry, err := loadRegistry(cfg.AgentsFile)
	if err != nil {
		return err
	}

	var transportOptions []openai.ClientOption
	var credentialOptions []credentials.ClientOption
	if cfg.RealtimeURL != "" {
		transportOptions = append(transportOptions, openai.WithURL(cfg.RealtimeURL))
	}
	if cfg.SessionURL != "" {
		credentialOptions = append(credentialOptions, credentials.WithSessionURL(cfg.SessionURL))
	}
	if cfg.Model != "" {
		transportOptions = append(transportOptions, openai.WithModel(cfg.Model))
		credentialOptions = append(credentialOptions, credentials.WithModel(cfg.Model))
	}

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithTransport(openai.NewClient(transportOptions...)),
		orchestration.WithCredentialProvider(credentials.NewClient(credentialOptions...)),
		orchestration.WithAgentRegistry(registry, opts.AgentSet),
		orchestration.WithPushToTalk(opts.PushToTalk),
		orchestration.WithGreeting(cfg.Greeting),
	)

	formatter := output.NewFormatter(out)
	orchestrator.Orchestrate(ctx,
		orchestration.WithTranscriptCallback(formatter.Transcript),
		orchestration.WithSessionStateCallback(formatter.SessionState),
		orchestration.WithRecordingStateCallback(formatter.RecordingState),
		orchestration.WithErrorCallback(func(err error) { formatter.Error(err.Error()) }),
	)
	defer orchestrator.Close()

	if err := orchestrator.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	prompt := output.NewFormatter(out)
	prompt.Info(helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(orchestrator, strings.TrimSpace(line))
			if err != nil {
				prompt.Error(err.Error())
			}
			if quit {
				return nil
			}
		}
	}
}

// handleLine applies one line of input. It reports whether the session
// should end.
func handleLine(orchestrator *orchestration.Orchestrator, line string) (bool, error) {
	switch line {
	case "":
		return false, nil
	case "/quit":
		return true, nil
	case "/mute":
		return false, orchestrator.SetAudioPlayback(false)
	case "/unmute":
		return false, orchestrator.SetAudioPlayback(true)
	case "/ptt on":
		return false, orchestrator.SetPushToTalk(true)
	case "/ptt off":
		return false, orchestrator.SetPushToTalk(false)
	case "/talk":
		return false, orchestrator.StartPushToTalk()
	case "/send":
		return false, orchestrator.StopPushToTalk()
	case "/reset":
		return false, orchestrator.Reset()
	}

	if strings.HasPrefix(line, "/") {
		return false, fmt.Errorf("unknown command %s", line)
	}
	return false, orchestrator.SendUserText(line)
}
