package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playdeploy/internal/formatter"
	"github.com/desertthunder/playdeploy/internal/models"
	"github.com/desertthunder/playdeploy/internal/repositories"
	"github.com/desertthunder/playdeploy/internal/shared"
	"github.com/desertthunder/playdeploy/internal/ui"
	"github.com/urfave/cli/v3"
)

// historyCommand reads the local audit log of publish runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"hist"},
		Usage:   "Inspect past publish runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded publish runs, newest first",
				Flags: filterFlags(
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:    "interactive",
						Aliases: []string{"i"},
						Usage:   "Browse runs in an interactive list",
					},
				),
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one publish run",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.HistoryShow,
			},
			{
				Name:  "export",
				Usage: "Export publish runs to a file",
				Flags: filterFlags(
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: " + strings.Join(formatter.Formats, ", "),
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path; - writes to stdout",
					},
				),
				Action: r.HistoryExport,
			},
		},
	}
}

// filterFlags returns the flags shared by the history subcommands that query runs, followed by extra.
func filterFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:    "package",
			Aliases: []string{"p"},
			Usage:   "Only show runs for this package",
		},
		&cli.StringFlag{
			Name:  "state",
			Usage: "Only show runs that ended in this state (committed, deleted, rollback_failed, ...)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of runs to return",
			Value: 50,
		},
	}
	return append(flags, extra...)
}

// HistoryList prints recorded runs as text, JSON or an interactive list.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.queryRuns(cmd)
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("interactive"):
		if _, err := tea.NewProgram(ui.NewHistoryModel(runs), tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("error running history view: %w", err)
		}
		return nil
	case cmd.Bool("json"):
		return formatter.WriteExport(r.output, runs, "json")
	default:
		return formatter.WriteExport(r.output, runs, "txt")
	}
}

// HistoryShow prints the details of one run.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}

	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	repo, closeDB, err := r.historyRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	run, err := repo.Get(id)
	if err != nil {
		return err
	}

	return r.writePlain("%s", ui.RenderRun(run))
}

// HistoryExport writes recorded runs to a file or stdout.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.queryRuns(cmd)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	output := cmd.String("output")
	if output == "-" {
		return formatter.WriteExport(r.output, runs, format)
	}

	path, err := formatter.WriteExportFile(runs, format, output)
	if err != nil {
		return err
	}

	r.logger.Info("exported publish history", "runs", len(runs), "format", format, "path", path)
	return r.writePlain("✓ Exported %d runs to %s\n", len(runs), path)
}

func (r *Runner) queryRuns(cmd *cli.Command) ([]*models.PublishRun, error) {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return nil, err
	}

	repo, closeDB, err := r.historyRepository()
	if err != nil {
		return nil, err
	}
	defer closeDB()

	criteria := map[string]any{}
	if pkg := cmd.String("package"); pkg != "" {
		criteria["package_name"] = pkg
	}
	if state := cmd.String("state"); state != "" {
		criteria["state"] = state
	}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = limit
	}

	return repo.List(criteria)
}

func (r *Runner) historyRepository() (*repositories.PublishRunRepository, func(), error) {
	if !r.config.Database.Enabled {
		return nil, nil, fmt.Errorf("%w: publish history is disabled in the config", shared.ErrServiceUnavailable)
	}
	return r.openRepository()
}
