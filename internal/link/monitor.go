package link

import (
	"context"
	"net"
	"sync"
	"time"
)

// Handler receives link state changes.
type Handler func(up bool)

// Dialer opens probe connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Logger defines the logging interface for the monitor.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Config holds monitor settings.
type Config struct {
	Address  string
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor tracks link reachability.
type Monitor struct {
	cfg    Config
	dialer Dialer
	logger Logger

	mu       sync.Mutex
	up       bool
	known    bool
	nextID   int
	handlers []subscriber
}

type subscriber struct {
	id int
	h  Handler
}

// NewMonitor creates a monitor. The link is considered down until the first
// successful probe.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Monitor{
		cfg:    cfg,
		dialer: &net.Dialer{},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// SetDialer replaces the dialer used for probes.
func (m *Monitor) SetDialer(d Dialer) {
	m.dialer = d
}

// Subscribe registers h and returns a function that removes it. If the link
// is already known to be up, h is called immediately with true so a late
// subscriber does not miss the current state.
func (m *Monitor) Subscribe(h Handler) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers = append(m.handlers, subscriber{id: id, h: h})
	replay := m.known && m.up
	m.mu.Unlock()

	if replay {
		h(true)
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.handlers {
			if s.id == id {
				m.handlers = append(m.handlers[:i], m.handlers[i+1:]...)
				return
			}
		}
	}
}

// Up reports the last known link state.
func (m *Monitor) Up() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}

// MarkDown declares the link down, for example after the MQTT session was
// lost. The next successful probe reports it up again.
func (m *Monitor) MarkDown() {
	m.set(false)
}

// Probe performs one reachability check and updates the state.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	conn, err := m.dialer.DialContext(ctx, "tcp", m.cfg.Address)
	if err != nil {
		if m.Up() {
			m.logger.Warn("link probe failed", "address", m.cfg.Address, "error", err)
		}
		m.set(false)
		return false
	}
	_ = conn.Close()
	m.set(true)
	return true
}

// Run probes until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Probe(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

func (m *Monitor) set(up bool) {
	m.mu.Lock()
	changed := !m.known || m.up != up
	m.up = up
	m.known = true
	handlers := append([]subscriber(nil), m.handlers...)
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("link state changed", "up", up, "address", m.cfg.Address)
	for _, s := range handlers {
		s.h(up)
	}
}
