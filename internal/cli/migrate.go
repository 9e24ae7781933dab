package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adc-ontology-enricher/internal/database"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the enriched-record database schema",
	}
	cmd.AddCommand(
		newMigrateStepCmd(root, "up", "Apply every pending migration"),
		newMigrateStepCmd(root, "down", "Roll back the most recent migration"),
		newMigrateVersionCmd(root),
	)
	return cmd
}

// openMigrationRunner builds a runner against database.url.
func openMigrationRunner(root *rootOptions) (*database.MigrationRunner, func(), error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("no record database configured (set database.url)")
	}

	logger, closer, err := newLogger(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	runner, err := database.NewMigrationRunner(cfg.Database.URL, logger)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
		closer.Close()
	}
	return runner, cleanup, nil
}

func newMigrateStepCmd(root *rootOptions, direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   direction,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := openMigrationRunner(root)
			if err != nil {
				return err
			}
			defer cleanup()

			if direction == "down" {
				err = runner.Down(cmd.Context())
			} else {
				err = runner.Up(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printMigrationVersion(cmd, runner)
		},
	}
}

func newMigrateVersionCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := openMigrationRunner(root)
			if err != nil {
				return err
			}
			defer cleanup()
			return printMigrationVersion(cmd, runner)
		},
	}
}

func printMigrationVersion(cmd *cobra.Command, runner *database.MigrationRunner) error {
	version, dirty, err := runner.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}
