package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host: "127.0.0.1",
			Port: 1883,
		},
		QoS:            1,
		KeepAlive:      30,
		ConnectTimeout: 1,
	}
}

func connectedClient(t *testing.T) (*Client, *fakePaho) {
	t.Helper()
	fp := newFakePaho()
	c := newWithPaho(testConfig(), fp)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c, fp
}

func noopHandler(string, []byte) error { return nil }

// =============================================================================
// Options Tests
// =============================================================================

func TestEndpointURL(t *testing.T) {
	plain := Endpoint{Host: "localhost", Port: 1883}
	if got := plain.URL(); got != "tcp://localhost:1883" {
		t.Errorf("URL() = %q, want tcp://localhost:1883", got)
	}

	secure := Endpoint{Host: "data.iot.eu-west-1.amazonaws.com", Port: 8883, TLS: &tls.Config{}}
	if got := secure.URL(); got != "ssl://data.iot.eu-west-1.amazonaws.com:8883" {
		t.Errorf("URL() = %q", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "device"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg, Endpoint{Host: "localhost", Port: 1883, ClientID: "shadowsync-0011"})

	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false")
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want false")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if opts.ClientID != "shadowsync-0011" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "device" {
		t.Errorf("Username = %q", opts.Username)
	}
	if opts.KeepAlive != 30 {
		t.Errorf("KeepAlive = %d, want 30", opts.KeepAlive)
	}
	if opts.ConnectTimeout != time.Second {
		t.Errorf("ConnectTimeout = %v, want 1s", opts.ConnectTimeout)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
}

func TestConnectTimeoutDefault(t *testing.T) {
	if got := connectTimeout(config.MQTTConfig{}); got != defaultConnectTimeout {
		t.Errorf("connectTimeout() = %v, want %v", got, defaultConnectTimeout)
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestNew_DoesNotConnect(t *testing.T) {
	c := New(testConfig(), Endpoint{Host: "127.0.0.1", Port: 1, ClientID: "t"})
	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
}

func TestConnect(t *testing.T) {
	c, fp := connectedClient(t)
	if !c.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	// A second Connect while connected is a no-op.
	if err := c.Connect(context.Background()); err != nil {
		t.Errorf("Connect() again error = %v", err)
	}
	if fp.connects != 1 {
		t.Errorf("connects = %d, want 1", fp.connects)
	}
}

func TestConnect_Refused(t *testing.T) {
	fp := newFakePaho()
	fp.connectErr = errBrokerRefused
	c := newWithPaho(testConfig(), fp)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if !errors.Is(err, errBrokerRefused) {
		t.Errorf("Connect() error = %v, want wrapped broker error", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed connect")
	}
}

func TestConnect_Timeout(t *testing.T) {
	fp := newFakePaho()
	fp.connectHang = true
	c := newWithPaho(testConfig(), fp)

	start := time.Now()
	err := c.Connect(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Connect() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("Connect() returned after %v, want about 1s", elapsed)
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	fp := newFakePaho()
	fp.connectHang = true
	c := newWithPaho(testConfig(), fp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want context.Canceled", err)
	}
}

// tracked reports whether topic is in the resubscribe set.
func tracked(c *Client, topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

func TestDisconnect_KeepsSubscriptions(t *testing.T) {
	c, fp := connectedClient(t)
	if err := c.Subscribe("a/b", 0, noopHandler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	c.Disconnect()

	if c.IsConnected() {
		t.Error("IsConnected() = true after Disconnect")
	}
	if fp.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", fp.disconnects)
	}
	if !tracked(c, "a/b") {
		t.Error("subscription dropped by Disconnect")
	}

	// Disconnecting twice is harmless.
	c.Disconnect()
	if fp.disconnects != 1 {
		t.Errorf("disconnects = %d after second Disconnect, want 1", fp.disconnects)
	}
}

func TestClose_ForgetsSubscriptions(t *testing.T) {
	c, _ := connectedClient(t)
	_ = c.Subscribe("a/b", 0, noopHandler)

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestConnectionLost(t *testing.T) {
	c, fp := connectedClient(t)

	var lost error
	c.SetOnConnectionLost(func(err error) { lost = err })

	fp.drop()
	c.handleConnectionLost(errors.New("EOF"))

	if c.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
	if lost == nil || lost.Error() != "EOF" {
		t.Errorf("callback error = %v, want EOF", lost)
	}
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	c, _ := connectedClient(t)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}

	c.Disconnect()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	c, fp := connectedClient(t)

	err := c.Publish(context.Background(), "$aws/things/x/shadow/update", []byte(`{"state":{}}`), 1, false)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(fp.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(fp.published))
	}
	if fp.published[0].qos != 1 || fp.published[0].retained {
		t.Errorf("published = %+v", fp.published[0])
	}
}

func TestPublishDefault_UsesConfiguredQoS(t *testing.T) {
	c, fp := connectedClient(t)

	if err := c.PublishDefault(context.Background(), "t", []byte("x")); err != nil {
		t.Fatalf("PublishDefault() error = %v", err)
	}
	if fp.published[0].qos != 1 {
		t.Errorf("qos = %d, want 1", fp.published[0].qos)
	}
}

func TestPublish_Validation(t *testing.T) {
	c, _ := connectedClient(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"invalid qos", "t", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "t", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(ctx, tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublish_Disconnected(t *testing.T) {
	c, fp := connectedClient(t)
	c.Disconnect()

	err := c.Publish(context.Background(), "t", []byte("x"), 0, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if len(fp.published) != 0 {
		t.Error("message sent while disconnected")
	}
}

func TestPublish_TransportError(t *testing.T) {
	c, fp := connectedClient(t)
	fp.publishErr = errors.New("broken pipe")

	err := c.Publish(context.Background(), "t", []byte("x"), 0, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribe(t *testing.T) {
	c, fp := connectedClient(t)

	var got string
	err := c.Subscribe("d/delta", 0, func(_ string, payload []byte) error {
		got = string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !tracked(c, "d/delta") {
		t.Error("subscription not tracked")
	}

	fp.deliver("d/delta", []byte(`{"led":1}`))
	if got != `{"led":1}` {
		t.Errorf("handler payload = %q", got)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c, _ := connectedClient(t)

	if err := c.Subscribe("", 0, noopHandler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("t", 3, noopHandler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
}

func TestSubscribe_Disconnected(t *testing.T) {
	fp := newFakePaho()
	c := newWithPaho(testConfig(), fp)

	if err := c.Subscribe("t", 0, noopHandler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_BrokerErrorNotTracked(t *testing.T) {
	c, fp := connectedClient(t)
	fp.subErr = errors.New("subscription refused")

	if err := c.Subscribe("t", 0, noopHandler); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v", err)
	}
	if tracked(c, "t") {
		t.Error("failed subscription still tracked")
	}
}

func TestResubscribe(t *testing.T) {
	c, fp := connectedClient(t)
	for _, topic := range []string{"a", "b", "c"} {
		if err := c.Subscribe(topic, 0, noopHandler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	fp.drop()
	c.handleConnectionLost(errors.New("EOF"))
	if err := c.Resubscribe(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Resubscribe() while disconnected error = %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Resubscribe(); err != nil {
		t.Fatalf("Resubscribe() error = %v", err)
	}

	for _, topic := range []string{"a", "b", "c"} {
		if !fp.deliver(topic, nil) {
			t.Errorf("topic %s not resubscribed", topic)
		}
	}
	if len(fp.subscribed) != 6 {
		t.Errorf("subscribe calls = %d, want 6", len(fp.subscribed))
	}
}

func TestResubscribe_Failure(t *testing.T) {
	c, fp := connectedClient(t)
	_ = c.Subscribe("a", 0, noopHandler)

	fp.subErr = errors.New("not authorized")
	err := c.Resubscribe()
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("Resubscribe() error = %v", err)
	}
	if !strings.Contains(err.Error(), "a") {
		t.Errorf("error %q does not name the topic", err)
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.warns = append(l.warns, msg) }

func TestHandlerPanicRecovered(t *testing.T) {
	c, fp := connectedClient(t)
	logger := &recordingLogger{}
	c.SetLogger(logger)

	_ = c.Subscribe("p", 0, func(string, []byte) error { panic("boom") })
	fp.deliver("p", nil)

	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errors))
	}
}

func TestHandlerReturnsError(t *testing.T) {
	c, fp := connectedClient(t)
	logger := &recordingLogger{}
	c.SetLogger(logger)

	_ = c.Subscribe("e", 0, func(string, []byte) error { return errors.New("bad payload") })
	fp.deliver("e", nil)

	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1", len(logger.warns))
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestShadowTopics(t *testing.T) {
	topics := ShadowTopics{Prefix: "$aws/things", Thing: "porch-light"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"update", topics.Update(), "$aws/things/porch-light/shadow/update"},
		{"accepted", topics.UpdateAccepted(), "$aws/things/porch-light/shadow/update/accepted"},
		{"rejected", topics.UpdateRejected(), "$aws/things/porch-light/shadow/update/rejected"},
		{"delta", topics.UpdateDelta(), "$aws/things/porch-light/shadow/update/delta"},
		{"default prefix", ShadowTopics{Thing: "t"}.Update(), "$aws/things/t/shadow/update"},
		{"custom prefix", ShadowTopics{Prefix: "lab", Thing: "t"}.UpdateDelta(), "lab/t/shadow/update/delta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
