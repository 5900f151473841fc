package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
	"github.com/nerrad567/shadowsync/internal/infrastructure/database"
	"github.com/nerrad567/shadowsync/internal/provisioning"
)

// pemPreviewLength is how much of a PEM value provision list shows.
const pemPreviewLength = 24

// withDatabase loads the config at opts, opens the migrated device database
// and calls fn with it.
func withDatabase(ctx context.Context, opts *rootOptions, fn func(db *database.DB) error) error {
	cfg, err := config.Load(opts.configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-mostly CLI session

	if err := checkDatabase(ctx, db); err != nil {
		return err
	}
	return fn(db)
}

func newProvisionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Manage the stored device identity",
		Long: `Stored values take precedence over the device section of config.yaml.

Keys: ` + strings.Join(provisioning.Keys(), ", "),
	}

	cmd.AddCommand(newProvisionSetCommand(opts))
	cmd.AddCommand(newProvisionGetCommand(opts))
	cmd.AddCommand(newProvisionListCommand(opts))
	cmd.AddCommand(newProvisionResetCommand(opts))

	return cmd
}

func newProvisionSetCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a configuration value",
		Example: `  shadowsync provision set thing_name kitchen-button
  shadowsync provision set cert_pem --file device.crt`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			var value string
			switch {
			case file != "" && len(args) == 2:
				return errors.New("give either a value or --file, not both")
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading %s: %w", file, err)
				}
				value = string(data)
			case len(args) == 2:
				value = args[1]
			default:
				return errors.New("missing value: give one or use --file")
			}

			return withDatabase(cmd.Context(), opts, func(db *database.DB) error {
				if err := provisioning.NewStore(db.DB).Set(cmd.Context(), key, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", key)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the value from a file")

	return cmd
}

func newProvisionGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), opts, func(db *database.DB) error {
				value, err := provisioning.NewStore(db.DB).Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
}

func newProvisionListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), opts, func(db *database.DB) error {
				entries, err := provisioning.NewStore(db.DB).List(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no stored configuration")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tVALUE\tUPDATED")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, previewValue(e.Value), e.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func newProvisionResetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored configuration value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), opts, func(db *database.DB) error {
				if err := provisioning.NewStore(db.DB).Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "device configuration cleared")
				return nil
			})
		},
	}
}

// previewValue shortens PEM blocks and other multi-line values to one line.
func previewValue(v string) string {
	if !strings.Contains(v, "\n") && len(v) <= pemPreviewLength*2 {
		return v
	}
	line, _, _ := strings.Cut(strings.TrimSpace(v), "\n")
	if len(line) > pemPreviewLength {
		line = line[:pemPreviewLength]
	}
	return fmt.Sprintf("%s... (%d bytes)", line, len(v))
}
