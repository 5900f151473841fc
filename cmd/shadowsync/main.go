// shadowsync keeps a device's button counters and LED in step with its
// cloud device shadow.
//
// The device reports its push-button counters (pb, pb_lambda) and LED state
// to the shadow over MQTT, and drives the LED from desired-state deltas.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor SHADOWSYNC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	ConfigPath string
}

// configPath returns the --config flag, else SHADOWSYNC_CONFIG, else the
// default path.
func (o *rootOptions) configPath() string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	if path := os.Getenv("SHADOWSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "shadowsync",
		Short: "Synchronise device state with its cloud shadow",
		Long: `shadowsync reports push-button counters and the LED state of this device to
its cloud device shadow and applies desired LED changes sent back as deltas.

Running without a subcommand starts synchronisation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.configPath())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml (default $SHADOWSYNC_CONFIG or "+defaultConfigPath+")")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newProvisionCommand(opts))
	cmd.AddCommand(newJournalCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start shadow synchronisation (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.configPath())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shadowsync %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
