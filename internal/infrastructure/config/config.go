package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for shadowsync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Shadow     ShadowConfig     `yaml:"shadow"`
	Sync       SyncConfig       `yaml:"sync"`
	Link       LinkConfig       `yaml:"link"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

// DeviceConfig contains identity seeds for the device.
//
// Values stored in the provisioning database take precedence over these;
// they exist so that a device can be brought up from a config file alone.
type DeviceConfig struct {
	ThingName      string `yaml:"thing_name"`
	Region         string `yaml:"region"`
	ClientID       string `yaml:"client_id"`
	ClientIDPrefix string `yaml:"client_id_prefix"`
	CertFile       string `yaml:"cert_file"`
	KeyFile        string `yaml:"key_file"`
	RootCAFile     string `yaml:"root_ca_file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// KeepAlive is the MQTT keepalive interval in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// ConnectTimeout bounds a single connect attempt (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
//
// When Host is empty the broker host is derived from the device region.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ShadowConfig contains device shadow topic settings.
type ShadowConfig struct {
	// TopicPrefix is prepended to the thing name, e.g. "$aws/things".
	TopicPrefix string `yaml:"topic_prefix"`

	// AckTimeout is how long to wait for update/accepted or update/rejected.
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// SyncConfig contains synchronisation loop timing.
type SyncConfig struct {
	// TickInterval is the fixed sleep between loop iterations.
	TickInterval time.Duration `yaml:"tick_interval"`

	// InboundBudget bounds how long each tick waits for inbound notifications.
	InboundBudget time.Duration `yaml:"inbound_budget"`

	// InboundBuffer is the capacity of the inbound notification queue.
	InboundBuffer int `yaml:"inbound_buffer"`
}

// LinkConfig contains network link monitoring settings.
type LinkConfig struct {
	// ProbeAddress is the host:port probed for reachability.
	// Defaults to the MQTT broker address.
	ProbeAddress  string        `yaml:"probe_address"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// HardwareConfig contains physical I/O settings.
type HardwareConfig struct {
	// Driver selects the I/O backend: "sim" or "modbus".
	Driver string       `yaml:"driver"`
	Modbus ModbusConfig `yaml:"modbus"`

	// Discrete input addresses. Reset may share an address with a button;
	// a short press then counts and a long hold resets.
	ButtonA uint16 `yaml:"button_a"`
	ButtonB uint16 `yaml:"button_b"`
	Reset   uint16 `yaml:"reset"`

	// Coil addresses.
	LED    uint16 `yaml:"led"`
	Status uint16 `yaml:"status"`

	// PollInterval is how often inputs are sampled.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ResetHold is how long the reset input must be held for a factory reset.
	ResetHold time.Duration `yaml:"reset_hold"`
}

// ModbusConfig contains Modbus TCP I/O board settings.
type ModbusConfig struct {
	Address string        `yaml:"address"`
	SlaveID byte          `yaml:"slave_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SupervisorConfig controls restarts of the synchronisation task.
type SupervisorConfig struct {
	RestartOnFailure   bool          `yaml:"restart_on_failure"`
	RestartDelay       time.Duration `yaml:"restart_delay"`
	MaxRestartDelay    time.Duration `yaml:"max_restart_delay"`
	MaxRestartAttempts int           `yaml:"max_restart_attempts"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHADOWSYNC_SECTION_KEY
// For example: SHADOWSYNC_THING_NAME, SHADOWSYNC_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Region:         "us-east-1",
			ClientIDPrefix: "shadowsync",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port: 8883,
				TLS:  true,
			},
			QoS:            0,
			KeepAlive:      60,
			ConnectTimeout: 10,
		},
		Shadow: ShadowConfig{
			TopicPrefix: "$aws/things",
			AckTimeout:  10 * time.Second,
		},
		Sync: SyncConfig{
			TickInterval:  100 * time.Millisecond,
			InboundBudget: 10 * time.Millisecond,
			InboundBuffer: 16,
		},
		Link: LinkConfig{
			ProbeInterval: 5 * time.Second,
			ProbeTimeout:  2 * time.Second,
		},
		Hardware: HardwareConfig{
			Driver:       "sim",
			ButtonA:      0,
			ButtonB:      1,
			Reset:        1,
			LED:          0,
			Status:       1,
			PollInterval: 20 * time.Millisecond,
			ResetHold:    5 * time.Second,
			Modbus: ModbusConfig{
				SlaveID: 1,
				Timeout: time.Second,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/shadowsync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Supervisor: SupervisorConfig{
			RestartOnFailure:   false,
			RestartDelay:       5 * time.Second,
			MaxRestartDelay:    5 * time.Minute,
			MaxRestartAttempts: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHADOWSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("SHADOWSYNC_THING_NAME"); v != "" {
		cfg.Device.ThingName = v
	}
	if v := os.Getenv("SHADOWSYNC_REGION"); v != "" {
		cfg.Device.Region = v
	}
	if v := os.Getenv("SHADOWSYNC_CLIENT_ID"); v != "" {
		cfg.Device.ClientID = v
	}

	// Database
	if v := os.Getenv("SHADOWSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SHADOWSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHADOWSYNC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SHADOWSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHADOWSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SHADOWSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Identity values (thing name, certificates) are not checked here: they may
// live in the provisioning store and are resolved at startup.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 1 {
		errs = append(errs, "mqtt.qos must be 0 or 1")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.Host == "" && c.Device.Region == "" {
		errs = append(errs, "mqtt.broker.host or device.region is required")
	}

	if c.Shadow.TopicPrefix == "" {
		errs = append(errs, "shadow.topic_prefix is required")
	}
	if c.Shadow.AckTimeout <= 0 {
		errs = append(errs, "shadow.ack_timeout must be positive")
	}

	if c.Sync.TickInterval <= 0 {
		errs = append(errs, "sync.tick_interval must be positive")
	}
	if c.Sync.InboundBudget < 0 {
		errs = append(errs, "sync.inbound_budget must not be negative")
	}
	if c.Sync.InboundBuffer < 1 {
		errs = append(errs, "sync.inbound_buffer must be at least 1")
	}

	if c.Link.ProbeInterval <= 0 {
		errs = append(errs, "link.probe_interval must be positive")
	}

	switch c.Hardware.Driver {
	case "sim":
	case "modbus":
		if c.Hardware.Modbus.Address == "" {
			errs = append(errs, "hardware.modbus.address is required for the modbus driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("hardware.driver %q must be sim or modbus", c.Hardware.Driver))
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
