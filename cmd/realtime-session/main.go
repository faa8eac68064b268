package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-realtime/internal/cli"
	"github.com/koscakluka/ema-realtime/internal/config"
	"github.com/koscakluka/ema-realtime/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{Config: cfg}
	return cli.NewRootCmd(deps).Execute()
}
