package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/shadowsync/internal/cloud"
	"github.com/nerrad567/shadowsync/internal/hardware"
	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
	"github.com/nerrad567/shadowsync/internal/infrastructure/database"
	"github.com/nerrad567/shadowsync/internal/infrastructure/influxdb"
	"github.com/nerrad567/shadowsync/internal/infrastructure/logging"
	"github.com/nerrad567/shadowsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/shadowsync/internal/journal"
	"github.com/nerrad567/shadowsync/internal/lifecycle"
	"github.com/nerrad567/shadowsync/internal/link"
	"github.com/nerrad567/shadowsync/internal/process"
	"github.com/nerrad567/shadowsync/internal/provisioning"
	"github.com/nerrad567/shadowsync/internal/shadow"
	"github.com/nerrad567/shadowsync/internal/syncloop"
	"github.com/nerrad567/shadowsync/migrations"
)

// errFactoryReset is the cancellation cause after the reset input is held.
var errFactoryReset = errors.New("factory reset requested")

// run loads configuration, resolves the device identity and synchronises
// until ctx is cancelled, the sync task fails permanently, or a factory
// reset is requested.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting shadowsync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	store := provisioning.NewStore(db.DB)
	identity, err := provisioning.Load(ctx, store, cfg)
	if err != nil {
		return fmt.Errorf("loading device identity: %w", err)
	}
	log = log.With("thing", identity.ThingName)
	log.Info("device identity loaded",
		"client_id", identity.ClientID,
		"broker", identity.Address(),
		"tls", identity.TLSConfig() != nil,
	)

	board, err := hardware.Open(cfg.Hardware)
	if err != nil {
		return fmt.Errorf("opening hardware: %w", err)
	}
	defer board.Close() //nolint:errcheck // Best effort on shutdown
	log.Info("hardware ready", "driver", cfg.Hardware.Driver)

	runCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	tracker := shadow.NewTracker(shadow.DefaultFields()...)
	applier := shadow.NewApplier(shadow.FieldLED, tracker, hardware.NewCoil(board, cfg.Hardware.LED))

	watcher := newInputWatcher(cfg.Hardware, board, tracker, log, func() {
		log.Warn("factory reset: clearing device configuration")
		if resetErr := store.Reset(context.Background()); resetErr != nil {
			log.Error("factory reset failed", "error", resetErr)
			return
		}
		stop(errFactoryReset)
	})

	machine := lifecycle.New()
	machine.OnTransition(syncloop.StatusIndicator(hardware.NewCoil(board, cfg.Hardware.Status), log.Component("status")))
	machine.OnTransition(syncloop.LogTransitions(log.Component("lifecycle")))

	mqttClient := mqtt.New(cfg.MQTT, identity.Endpoint())
	mqttClient.SetLogger(log.Component("mqtt"))
	defer mqttClient.Close() //nolint:errcheck // Best effort on shutdown

	channel := cloud.NewChannel(mqttClient, cloud.Config{
		Topics:        mqtt.ShadowTopics{Prefix: cfg.Shadow.TopicPrefix, Thing: identity.ThingName},
		QoS:           byte(cfg.MQTT.QoS), //nolint:gosec // Validated to 0..1
		AckTimeout:    cfg.Shadow.AckTimeout,
		InboundBuffer: cfg.Sync.InboundBuffer,
	})
	channel.SetLogger(log.Component("channel"))

	probeAddress := cfg.Link.ProbeAddress
	if probeAddress == "" {
		probeAddress = identity.Address()
	}
	monitor := link.NewMonitor(link.Config{
		Address:  probeAddress,
		Interval: cfg.Link.ProbeInterval,
		Timeout:  cfg.Link.ProbeTimeout,
	})
	monitor.SetLogger(log.Component("link"))
	mqttClient.SetOnConnectionLost(func(error) { monitor.MarkDown() })

	pubJournal := journal.NewSQLiteJournal(db.DB)

	var telemetry syncloop.Telemetry
	if cfg.InfluxDB.Enabled {
		influx, influxErr := influxdb.Connect(ctx, cfg.InfluxDB, identity.ThingName)
		if influxErr != nil {
			log.Warn("telemetry disabled: InfluxDB unavailable", "error", influxErr)
		} else {
			influx.SetOnError(func(writeErr error) {
				log.Warn("telemetry write failed", "error", writeErr)
			})
			defer influx.Close() //nolint:errcheck // Flushes pending points
			telemetry = influx
			log.Info("telemetry enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	supervisorCfg := process.ConfigFrom("shadow-sync", cfg.Supervisor)
	supervisorCfg.IsRetryable = isRetryable
	supervisor := process.NewManager(supervisorCfg)
	supervisor.SetLogger(log.Component("supervisor"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watcher.Run(runCtx) //nolint:errcheck // Returns ctx.Err()
	}()
	go func() {
		defer wg.Done()
		monitor.Run(runCtx) //nolint:errcheck // Returns ctx.Err()
	}()

	var current atomic.Pointer[syncloop.Loop]
	err = supervisor.Run(runCtx, func(ctx context.Context) error {
		loop := syncloop.New(syncloop.Config{
			TickInterval:  cfg.Sync.TickInterval,
			InboundBudget: cfg.Sync.InboundBudget,
		}, tracker, applier, machine, channel)
		loop.SetLogger(log.Component("sync"))
		loop.SetJournal(pubJournal)
		if telemetry != nil {
			loop.SetTelemetry(telemetry)
		}
		current.Store(loop)

		unsubscribe := monitor.Subscribe(loop.LinkChanged)
		defer unsubscribe()

		return loop.Run(ctx)
	})

	stop(nil)
	wg.Wait()

	if loop := current.Load(); loop != nil {
		stats := loop.Stats()
		log.Info("synchronisation stopped",
			"ticks", stats.Ticks,
			"published", stats.Published,
			"accepted", stats.Accepted,
			"rejected", stats.Rejected,
			"timeouts", stats.Timeouts,
			"deltas_applied", stats.DeltasApplied,
			"deltas_malformed", stats.DeltasMalformed,
			"awaiting_ack", channel.Pending(),
			"subscriptions", mqttClient.SubscriptionCount(),
			"ever_connected", machine.HasConnected(),
		)
	}

	if errors.Is(context.Cause(runCtx), errFactoryReset) {
		log.Warn("factory reset complete, stopping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("shadow synchronisation: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// isRetryable reports whether a failed sync run may be restarted. Only
// channel establishment failures are; missing configuration never is.
func isRetryable(err error) bool {
	if errors.Is(err, provisioning.ErrConfigurationMissing) {
		return false
	}
	return errors.Is(err, syncloop.ErrChannelEstablish)
}

// openDatabase opens the device database and applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newInputWatcher binds the buttons to their counters and the reset input
// to onReset.
func newInputWatcher(hw config.HardwareConfig, board hardware.InputReader, tracker *shadow.Tracker, log *logging.Logger, onReset func()) *hardware.Watcher {
	w := hardware.NewWatcher(board, hw.PollInterval)
	w.SetLogger(log.Component("inputs"))

	count := func(field shadow.Field) func() {
		return func() {
			n, err := tracker.Increment(field)
			if err != nil {
				log.Error("counting press failed", "field", field, "error", err)
				return
			}
			log.Debug("button pressed", "field", field, "count", n)
		}
	}
	w.OnPress(hw.ButtonA, count(shadow.FieldButtonA))
	w.OnPress(hw.ButtonB, count(shadow.FieldButtonB))
	w.OnHold(hw.Reset, hw.ResetHold, onReset)

	return w
}
