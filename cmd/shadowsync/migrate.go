package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
	"github.com/nerrad567/shadowsync/internal/infrastructure/database"
	"github.com/nerrad567/shadowsync/migrations"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or roll back the device database schema",
		Long:  "Pending migrations are applied automatically by every other command.",
	}
	cmd.AddCommand(newMigrateStatusCommand(opts))
	cmd.AddCommand(newMigrateDownCommand(opts))
	return cmd
}

func newMigrateStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRawDatabase(cmd, opts, func(db *database.DB) error {
				applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED")
				for _, r := range applied {
					fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(tw, "%s\tpending (%s)\t-\n", m.Version, m.Name)
				}
				return tw.Flush()
			})
		},
	}
}

func newMigrateDownCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRawDatabase(cmd, opts, func(db *database.DB) error {
				if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
				return nil
			})
		},
	}
}

// withRawDatabase opens the database without applying migrations.
func withRawDatabase(cmd *cobra.Command, opts *rootOptions, fn func(db *database.DB) error) error {
	cfg, err := config.Load(opts.configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Short CLI session

	return fn(db)
}
