package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when the config leaves it unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish and subscribe acknowledgements.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the config leaves it unset.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// Endpoint identifies the broker and the session.
type Endpoint struct {
	Host     string
	Port     int
	ClientID string

	// TLS enables ssl:// when non-nil.
	TLS *tls.Config
}

// URL returns the broker URL for ep.
func (ep Endpoint) URL() string {
	scheme := "tcp"
	if ep.TLS != nil {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, ep.Host, ep.Port)
}

// buildClientOptions creates paho MQTT options.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// depending on ep.TLS)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Clean session mode
//   - No automatic reconnect or connect retry
func buildClientOptions(cfg config.MQTTConfig, ep Endpoint) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(ep.URL())
	opts.SetClientID(ep.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - subscriptions do not survive a drop and are restored
	// explicitly with Resubscribe.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(connectTimeout(cfg))

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if ep.TLS != nil {
		opts.SetTLSConfig(ep.TLS)
	}

	return opts
}

func connectTimeout(cfg config.MQTTConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return time.Duration(cfg.ConnectTimeout) * time.Second
	}
	return defaultConnectTimeout
}
