package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"atlas/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver, dsn, err := migrationTarget()
			if err != nil {
				return err
			}
			if err := storage.RunMigrations(driver, dsn); err != nil {
				return err
			}
			return printVersion(cmd, driver, dsn)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			driver, dsn, err := migrationTarget()
			if err != nil {
				return err
			}
			if err := storage.RollbackMigrations(driver, dsn, steps); err != nil {
				return err
			}
			return printVersion(cmd, driver, dsn)
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to revert")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver, dsn, err := migrationTarget()
			if err != nil {
				return err
			}
			return printVersion(cmd, driver, dsn)
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func printVersion(cmd *cobra.Command, driver, dsn string) error {
	version, dirty, err := storage.MigrationVersion(driver, dsn)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (%s)\n", driver, version, state)
	return nil
}
