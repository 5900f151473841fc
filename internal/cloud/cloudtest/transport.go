// Package cloudtest provides an in-memory MQTT transport for exercising the
// shadow channel without a broker.
package cloudtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/shadowsync/internal/infrastructure/mqtt"
)

// Message is a published message.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// Transport is an in-memory stand-in for the MQTT client. It models a clean
// session: after Drop or Disconnect, subscriptions stay tracked but receive
// nothing until Resubscribe.
type Transport struct {
	mu sync.Mutex

	connected bool
	tracked   map[string]mqtt.MessageHandler
	active    map[string]mqtt.MessageHandler
	published []Message

	connectErr     error
	subscribeErr   error
	resubscribeErr error
	publishErr     error

	connects     int
	disconnects  int
	resubscribes int
}

// NewTransport returns a disconnected transport.
func NewTransport() *Transport {
	return &Transport{
		tracked: make(map[string]mqtt.MessageHandler),
		active:  make(map[string]mqtt.MessageHandler),
	}
}

// FailConnect makes subsequent Connect calls return err (nil clears it).
func (t *Transport) FailConnect(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectErr = err
}

// FailSubscribe makes subsequent Subscribe calls return err.
func (t *Transport) FailSubscribe(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribeErr = err
}

// FailResubscribe makes subsequent Resubscribe calls return err.
func (t *Transport) FailResubscribe(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resubscribeErr = err
}

// FailPublish makes subsequent Publish calls return err.
func (t *Transport) FailPublish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishErr = err
}

func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	if t.connectErr != nil {
		return fmt.Errorf("%w: %w", mqtt.ErrConnectionFailed, t.connectErr)
	}
	t.connected = true
	return nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		t.disconnects++
	}
	t.connected = false
	t.active = make(map[string]mqtt.MessageHandler)
}

// Drop simulates an unexpected session loss.
func (t *Transport) Drop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.active = make(map[string]mqtt.MessageHandler)
}

func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) Publish(_ context.Context, topic string, payload []byte, qos byte, _ bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return mqtt.ErrNotConnected
	}
	if t.publishErr != nil {
		return fmt.Errorf("%w: %w", mqtt.ErrPublishFailed, t.publishErr)
	}
	t.published = append(t.published, Message{
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
		QoS:     qos,
	})
	return nil
}

func (t *Transport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return mqtt.ErrNotConnected
	}
	if t.subscribeErr != nil {
		return fmt.Errorf("%w: %w", mqtt.ErrSubscribeFailed, t.subscribeErr)
	}
	t.tracked[topic] = handler
	t.active[topic] = handler
	return nil
}

func (t *Transport) Resubscribe() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resubscribes++
	if !t.connected {
		return mqtt.ErrNotConnected
	}
	if t.resubscribeErr != nil {
		return fmt.Errorf("%w: %w", mqtt.ErrSubscribeFailed, t.resubscribeErr)
	}
	for topic, h := range t.tracked {
		t.active[topic] = h
	}
	return nil
}

// Deliver hands payload to the active subscription for topic, as the broker
// would. It returns false when nothing is subscribed.
func (t *Transport) Deliver(topic string, payload []byte) (bool, error) {
	t.mu.Lock()
	h, ok := t.active[topic]
	t.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, h(topic, payload)
}

// Published returns a copy of every published message.
func (t *Transport) Published() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.published...)
}

// Subscribed reports whether topic currently receives messages.
func (t *Transport) Subscribed(topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[topic]
	return ok
}

// Connects returns the number of Connect calls.
func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Disconnects returns the number of times an open session was closed.
func (t *Transport) Disconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects
}

// Resubscribes returns the number of Resubscribe calls.
func (t *Transport) Resubscribes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resubscribes
}
