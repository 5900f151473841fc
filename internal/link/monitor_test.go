package link

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) handle(up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, up)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	return ln
}

func TestMonitor_ProbeReachable(t *testing.T) {
	ln := listen(t)
	m := NewMonitor(Config{Address: ln.Addr().String(), Timeout: time.Second})
	rec := &recorder{}
	m.Subscribe(rec.handle)

	assert.True(t, m.Probe(context.Background()))
	assert.True(t, m.Probe(context.Background()))

	assert.Equal(t, []bool{true}, rec.get(), "only changes are reported")
	assert.True(t, m.Up())
}

func TestMonitor_ProbeUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := NewMonitor(Config{Address: addr, Timeout: 200 * time.Millisecond})
	rec := &recorder{}
	m.Subscribe(rec.handle)

	assert.False(t, m.Probe(context.Background()))
	assert.Equal(t, []bool{false}, rec.get())
}

type scriptedDialer struct {
	mu   sync.Mutex
	fail bool
}

func (d *scriptedDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func (d *scriptedDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return nil, errors.New("network is unreachable")
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func TestMonitor_DownUpSequence(t *testing.T) {
	d := &scriptedDialer{}
	m := NewMonitor(Config{Address: "broker:8883"})
	m.SetDialer(d)
	rec := &recorder{}
	m.Subscribe(rec.handle)

	m.Probe(context.Background())
	d.setFail(true)
	m.Probe(context.Background())
	m.Probe(context.Background())
	d.setFail(false)
	m.Probe(context.Background())

	assert.Equal(t, []bool{true, false, true}, rec.get())
}

func TestMonitor_MarkDownThenProbe(t *testing.T) {
	m := NewMonitor(Config{Address: "broker:8883"})
	m.SetDialer(&scriptedDialer{})
	rec := &recorder{}
	m.Subscribe(rec.handle)

	m.Probe(context.Background())
	m.MarkDown()
	m.Probe(context.Background())

	assert.Equal(t, []bool{true, false, true}, rec.get())
}

func TestMonitor_SubscribeReplaysUp(t *testing.T) {
	m := NewMonitor(Config{Address: "broker:8883"})
	m.SetDialer(&scriptedDialer{})
	m.Probe(context.Background())

	rec := &recorder{}
	m.Subscribe(rec.handle)
	assert.Equal(t, []bool{true}, rec.get())

	// No replay while down.
	m.MarkDown()
	late := &recorder{}
	m.Subscribe(late.handle)
	assert.Empty(t, late.get())
}

func TestMonitor_Unsubscribe(t *testing.T) {
	d := &scriptedDialer{}
	m := NewMonitor(Config{Address: "broker:8883"})
	m.SetDialer(d)

	first, second := &recorder{}, &recorder{}
	unsubscribe := m.Subscribe(first.handle)
	m.Subscribe(second.handle)

	m.Probe(context.Background())
	unsubscribe()
	m.MarkDown()

	assert.Equal(t, []bool{true}, first.get())
	assert.Equal(t, []bool{true, false}, second.get())
}

func TestMonitor_RunProbesImmediately(t *testing.T) {
	m := NewMonitor(Config{Address: "broker:8883", Interval: time.Hour})
	m.SetDialer(&scriptedDialer{})
	rec := &recorder{}
	m.Subscribe(rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
