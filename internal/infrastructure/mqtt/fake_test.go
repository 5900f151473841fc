package mqtt

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a paho token that completes immediately, or never when
// pending is set.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func newPendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho is an in-memory pahomqtt.Client.
type fakePaho struct {
	mu sync.Mutex

	connected   bool
	connectErr  error
	connectHang bool
	publishErr  error
	subErr      error

	connects    int
	disconnects int
	published   []published
	subscribed  []string
	handlers    map[string]pahomqtt.MessageHandler
}

var errBrokerRefused = errors.New("not authorized")

func newFakePaho() *fakePaho {
	return &fakePaho{handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectHang {
		return newPendingToken()
	}
	if f.connectErr != nil {
		return newToken(f.connectErr)
	}
	f.connected = true
	return newToken(nil)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return newToken(f.publishErr)
	}
	b, _ := payload.([]byte)
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: b})
	return newToken(nil)
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return newToken(f.subErr)
	}
	f.subscribed = append(f.subscribed, topic)
	f.handlers[topic] = cb
	return newToken(nil)
}

func (f *fakePaho) SubscribeMultiple(filters map[string]byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		if tok := f.Subscribe(topic, qos, cb); tok.Error() != nil {
			return tok
		}
	}
	return newToken(nil)
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return newToken(nil)
}

func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// deliver invokes the handler registered for topic, as paho would.
func (f *fakePaho) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	cb, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	cb(f, fakeMessage{topic: topic, payload: payload})
	return true
}

// drop simulates an unexpected session loss.
func (f *fakePaho) drop() {
	f.mu.Lock()
	f.connected = false
	f.handlers = make(map[string]pahomqtt.MessageHandler)
	f.mu.Unlock()
}
