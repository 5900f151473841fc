package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the device shadow channel.
//
// Unlike a general-purpose bus client it never reconnects on its own: the
// connection lifecycle belongs to the caller, which decides when to Connect,
// Disconnect and Resubscribe. Connection loss is reported through the
// callback registered with SetOnConnectionLost.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are tracked so Resubscribe can restore them after a
//     session drop.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// subscriptions tracks active subscriptions for explicit re-subscription.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	onConnectionLost func(err error)
	callbackMu       sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
type MessageHandler func(topic string, payload []byte) error

// New creates a client for ep without connecting.
func New(cfg config.MQTTConfig, ep Endpoint) *Client {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg, ep)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	c.options = opts
	c.client = pahomqtt.NewClient(opts)

	return c
}

// newWithPaho builds a client around an existing paho client.
func newWithPaho(cfg config.MQTTConfig, pc pahomqtt.Client) *Client {
	return &Client{
		cfg:           cfg,
		client:        pc,
		subscriptions: make(map[string]subscription),
	}
}

// Connect opens a session with the broker. It returns ErrConnectionFailed
// if the broker refuses, the connect timeout elapses, or ctx is done first.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	timeout := connectTimeout(c.cfg)
	token := c.client.Connect()
	if err := waitToken(ctx, token, timeout); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return nil
}

// handleConnectionLost is called by paho when the session drops.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onConnectionLost
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Resubscribe re-issues every tracked subscription. Brokers do not keep
// subscriptions across a clean session, so this must follow a reconnect.
func (c *Client) Resubscribe() error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if err := waitToken(context.Background(), token, defaultOperationTimeout); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, sub.topic, err)
		}
	}
	return nil
}

// Disconnect closes the session, waiting briefly for in-flight work.
// Tracked subscriptions are kept for a later Resubscribe. Calling it on a
// client that is not connected is not an error.
func (c *Client) Disconnect() {
	if c.client == nil {
		return
	}

	if c.client.IsConnected() {
		c.client.Disconnect(defaultDisconnectQuiesce)
	}

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

// Close disconnects and forgets all subscriptions.
func (c *Client) Close() error {
	c.Disconnect()

	c.subMu.Lock()
	c.subscriptions = make(map[string]subscription)
	c.subMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnectionLost sets a callback invoked when the broker session drops
// unexpectedly. It is not called for Disconnect.
func (c *Client) SetOnConnectionLost(callback func(err error)) {
	c.callbackMu.Lock()
	c.onConnectionLost = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

// waitToken waits for token to complete, bounded by timeout and ctx.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
