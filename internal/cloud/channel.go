package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/shadowsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/shadowsync/internal/shadow"
)

const (
	defaultAckTimeout    = 10 * time.Second
	defaultInboundBuffer = 16
)

// Transport is the subset of the MQTT client the channel uses.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Resubscribe() error
	IsConnected() bool
}

// Logger defines the logging interface for the channel.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// InboundKind tells delta notifications from update responses.
type InboundKind int

const (
	InboundDelta InboundKind = iota
	InboundAccepted
	InboundRejected
)

func (k InboundKind) String() string {
	switch k {
	case InboundDelta:
		return "delta"
	case InboundAccepted:
		return "accepted"
	case InboundRejected:
		return "rejected"
	default:
		return fmt.Sprintf("InboundKind(%d)", int(k))
	}
}

// Inbound is one queued message.
type Inbound struct {
	Kind     InboundKind
	Payload  []byte
	Received time.Time
}

// Config holds channel settings.
type Config struct {
	Topics mqtt.ShadowTopics

	// QoS for the update publish and the three subscriptions.
	QoS byte

	// AckTimeout is how long an update may go unanswered.
	AckTimeout time.Duration

	// InboundBuffer is the capacity of the inbound queue.
	InboundBuffer int
}

// Channel is the device shadow channel.
type Channel struct {
	transport Transport
	cfg       Config
	acks      *AckTracker
	inbound   chan Inbound
	logger    Logger

	// Overridable for tests.
	now      func() time.Time
	newToken func() string
}

// NewChannel creates a channel over transport. It does not connect.
func NewChannel(transport Transport, cfg Config) *Channel {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = defaultInboundBuffer
	}
	return &Channel{
		transport: transport,
		cfg:       cfg,
		acks:      NewAckTracker(cfg.AckTimeout),
		inbound:   make(chan Inbound, cfg.InboundBuffer),
		logger:    noopLogger{},
		now:       time.Now,
		newToken:  uuid.NewString,
	}
}

// SetLogger sets the logger for the channel.
func (c *Channel) SetLogger(logger Logger) {
	c.logger = logger
}

// Establish connects and subscribes to delta notifications and update
// responses. On a subscription failure the session is closed again.
func (c *Channel) Establish(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrEstablish, err)
	}

	subs := []struct {
		topic string
		kind  InboundKind
	}{
		{c.cfg.Topics.UpdateDelta(), InboundDelta},
		{c.cfg.Topics.UpdateAccepted(), InboundAccepted},
		{c.cfg.Topics.UpdateRejected(), InboundRejected},
	}
	for _, s := range subs {
		if err := c.transport.Subscribe(s.topic, c.cfg.QoS, c.enqueue(s.kind)); err != nil {
			c.transport.Disconnect()
			return fmt.Errorf("%w: subscribing to %s: %w", ErrEstablish, s.topic, err)
		}
	}

	c.logger.Info("shadow channel established", "thing", c.cfg.Topics.Thing)
	return nil
}

// Reestablish opens a new session after a drop. Subscriptions are not
// restored; call Resubscribe afterwards.
func (c *Channel) Reestablish(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrEstablish, err)
	}
	return nil
}

// Resubscribe restores the delta and response subscriptions.
func (c *Channel) Resubscribe() error {
	if err := c.transport.Resubscribe(); err != nil {
		return fmt.Errorf("%w: %w", ErrEstablish, err)
	}
	c.logger.Info("shadow channel resubscribed", "thing", c.cfg.Topics.Thing)
	return nil
}

// Teardown closes the session and discards queued delta notifications; the
// next session delivers the current desired state. Queued update responses
// are kept, and updates still awaiting one are left to time out.
func (c *Channel) Teardown() {
	c.transport.Disconnect()
	dropped := c.dropDeltas()
	c.logger.Info("shadow channel torn down", "thing", c.cfg.Topics.Thing, "stale_deltas", dropped)
}

// dropDeltas empties the inbound queue, putting update responses back in
// their original order. It returns the number of deltas discarded.
func (c *Channel) dropDeltas() int {
	var (
		kept    []Inbound
		dropped int
	)
	for done := false; !done; {
		select {
		case in := <-c.inbound:
			if in.Kind == InboundDelta {
				dropped++
				continue
			}
			kept = append(kept, in)
		default:
			done = true
		}
	}
	for _, in := range kept {
		select {
		case c.inbound <- in:
		default:
			c.logger.Warn("inbound queue full, update response dropped", "kind", in.Kind)
		}
	}
	return dropped
}

// Connected reports whether the transport has a session.
func (c *Channel) Connected() bool {
	return c.transport.IsConnected()
}

// Publish sends p to the update topic with a fresh clientToken and starts
// tracking it. The returned error means the broker never took the message.
func (c *Channel) Publish(ctx context.Context, p *shadow.Payload) (string, error) {
	token := c.newToken()
	p.ClientToken = token

	body, err := p.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encoding update: %w", err)
	}

	sentAt := c.now()
	if err := c.transport.Publish(ctx, c.cfg.Topics.Update(), body, c.cfg.QoS, false); err != nil {
		return "", err
	}

	c.acks.Track(token, p.Reported.Fields(), sentAt)
	c.logger.Debug("shadow update published", "token", token, "bytes", len(body))
	return token, nil
}

// Inbound returns the queue of received messages.
func (c *Channel) Inbound() <-chan Inbound {
	return c.inbound
}

// Resolve matches an update response to its published update. It returns
// false for deltas, malformed responses and tokens the channel did not issue.
func (c *Channel) Resolve(in Inbound) (Ack, bool, error) {
	var status AckStatus
	switch in.Kind {
	case InboundAccepted:
		status = AckAccepted
	case InboundRejected:
		status = AckRejected
	default:
		return Ack{}, false, nil
	}

	r, err := ParseResponse(status, in.Payload)
	if err != nil {
		return Ack{}, false, err
	}
	if r.ClientToken == "" {
		return Ack{}, false, nil
	}
	ack, ok := c.acks.Resolve(r, in.Received)
	return ack, ok, nil
}

// Sweep returns updates whose acknowledgement timeout has elapsed.
func (c *Channel) Sweep() []Ack {
	return c.acks.Sweep(c.now())
}

// Pending returns the number of updates awaiting a response.
func (c *Channel) Pending() int {
	return c.acks.Len()
}

// enqueue returns a handler that queues messages of kind without blocking
// the paho router.
func (c *Channel) enqueue(kind InboundKind) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		msg := Inbound{
			Kind:     kind,
			Payload:  append([]byte(nil), payload...),
			Received: c.now(),
		}
		select {
		case c.inbound <- msg:
			return nil
		default:
			return fmt.Errorf("%w: dropped %s message on %s", ErrInboundFull, kind, topic)
		}
	}
}
