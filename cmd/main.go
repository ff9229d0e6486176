package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/playdeploy/internal/shared"
	"github.com/desertthunder/playdeploy/internal/tasks"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "playdeploy",
		Usage:    "Publish Android apps to Google Play with a service account",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		var stepErr *tasks.StepError
		if errors.As(err, &stepErr) && stepErr.Rollback != nil {
			logger.Warn("edit was left open and will expire on its own", "rollback", stepErr.Rollback)
		}
		logger.Error("playdeploy failed", "error", err)
		os.Exit(1)
	}
}
