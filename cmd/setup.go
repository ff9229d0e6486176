package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/playdeploy/internal/shared"
	"github.com/urfave/cli/v3"
)

// configFlag returns the --config flag shared by every command.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand creates the config file and the publish history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file and initialize the publish history database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// Setup writes a config file from the template when none exists, then initializes the database and runs
// migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
	}

	if err := r.loadConfig(configPath); err != nil {
		return err
	}

	if !r.config.Database.Enabled {
		r.logger.Warn("publish history is disabled, skipping database setup")
		return r.writePlain("✓ Config ready at %s\n", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	_, closeDB, err := r.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Config ready at %s\n", configPath)
	r.writePlain("✓ Publish history database ready at %s\n", r.config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.key_path and credentials.service_account_email in %s\n", configPath)
	r.writePlain("2. Run 'playdeploy publish --package com.example.app --app app.aab --track internal'\n")
	return nil
}
