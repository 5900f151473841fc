package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
	"github.com/nerrad567/shadowsync/internal/infrastructure/database"
	"github.com/nerrad567/shadowsync/internal/infrastructure/influxdb"
	"github.com/nerrad567/shadowsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/shadowsync/internal/provisioning"
)

// checkTimeout bounds the whole check, broker connect included.
const checkTimeout = 30 * time.Second

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify identity, database, broker and telemetry connectivity",
		Long: `check resolves the device identity and connects to every configured backend
once, without starting synchronisation. Use it after provisioning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			cfg, err := config.Load(opts.configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return healthCheck(ctx, cmd.OutOrStdout(), cfg)
		},
	}
}

// healthCheck verifies the device can start: the database answers, the
// identity resolves, the broker accepts a session and, when enabled,
// InfluxDB responds. It stops at the first failure.
func healthCheck(ctx context.Context, out io.Writer, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only check

	if err := checkDatabase(ctx, db); err != nil {
		return err
	}
	fmt.Fprintf(out, "database  ok  %s\n", db.Path())

	identity, err := provisioning.Load(ctx, provisioning.NewStore(db.DB), cfg)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	fmt.Fprintf(out, "identity  ok  thing=%s client_id=%s\n", identity.ThingName, identity.ClientID)

	if err := checkBroker(ctx, cfg, identity); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	fmt.Fprintf(out, "mqtt      ok  %s\n", identity.Address())

	if cfg.InfluxDB.Enabled {
		if err := checkInfluxDB(ctx, cfg, identity.ThingName); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
		fmt.Fprintf(out, "influxdb  ok  %s\n", cfg.InfluxDB.URL)
	}

	return nil
}

func checkBroker(ctx context.Context, cfg *config.Config, identity *provisioning.Identity) error {
	client := mqtt.New(cfg.MQTT, identity.Endpoint())
	defer client.Close() //nolint:errcheck // Disconnect only

	if err := client.Connect(ctx); err != nil {
		return err
	}
	return client.HealthCheck(ctx)
}

func checkInfluxDB(ctx context.Context, cfg *config.Config, thing string) error {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB, thing)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck // Nothing written

	return client.HealthCheck(ctx)
}

// checkDatabase is the database part of healthCheck. The provision and
// journal commands run it before touching the store.
func checkDatabase(ctx context.Context, db *database.DB) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
