package hardware

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface for the watcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type holdHandler struct {
	after time.Duration
	fn    func()
	fired bool
}

type inputState struct {
	level   bool
	since   time.Time
	onPress []func()
	onHold  []*holdHandler
}

// Watcher samples discrete inputs and reports presses and holds.
//
// A press fires on the rising edge. A hold fires once per activation, as
// soon as the input has been high for the requested duration. Callbacks run
// on the polling goroutine and must not block.
type Watcher struct {
	reader   InputReader
	interval time.Duration
	logger   Logger

	mu     sync.Mutex
	inputs map[uint16]*inputState
}

// NewWatcher creates a watcher that samples reader every interval.
func NewWatcher(reader InputReader, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &Watcher{
		reader:   reader,
		interval: interval,
		logger:   noopLogger{},
		inputs:   make(map[uint16]*inputState),
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	w.logger = logger
}

func (w *Watcher) input(addr uint16) *inputState {
	in, ok := w.inputs[addr]
	if !ok {
		in = &inputState{}
		w.inputs[addr] = in
	}
	return in
}

// OnPress registers fn for rising edges of the input at addr.
func (w *Watcher) OnPress(addr uint16, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	in := w.input(addr)
	in.onPress = append(in.onPress, fn)
}

// OnHold registers fn to run once the input at addr has been held for d.
func (w *Watcher) OnHold(addr uint16, d time.Duration, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	in := w.input(addr)
	in.onHold = append(in.onHold, &holdHandler{after: d, fn: fn})
}

// span returns the lowest watched address and the number of inputs to read.
func (w *Watcher) span() (uint16, uint16, bool) {
	if len(w.inputs) == 0 {
		return 0, 0, false
	}
	addrs := make([]int, 0, len(w.inputs))
	for a := range w.inputs {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)
	lo, hi := addrs[0], addrs[len(addrs)-1]
	return uint16(lo), uint16(hi - lo + 1), true
}

// Poll takes one sample at now and fires any callbacks that are due.
func (w *Watcher) Poll(now time.Time) error {
	w.mu.Lock()
	lo, qty, ok := w.span()
	w.mu.Unlock()
	if !ok {
		return nil
	}

	bits, err := w.reader.ReadInputs(lo, qty)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadInputs, err)
	}
	if len(bits) < int(qty) {
		return fmt.Errorf("%w: got %d inputs, want %d", ErrReadInputs, len(bits), qty)
	}

	var due []func()

	w.mu.Lock()
	for addr, in := range w.inputs {
		level := bits[addr-lo]
		if level != in.level {
			in.level = level
			in.since = now
			if level {
				due = append(due, in.onPress...)
			} else {
				for _, h := range in.onHold {
					h.fired = false
				}
			}
			continue
		}
		if !level {
			continue
		}
		held := now.Sub(in.since)
		for _, h := range in.onHold {
			if !h.fired && held >= h.after {
				h.fired = true
				due = append(due, h.fn)
			}
		}
	}
	w.mu.Unlock()

	for _, fn := range due {
		fn()
	}
	return nil
}

// Run polls until ctx is done. Read errors are logged and polling continues.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := w.Poll(now); err != nil {
				if !failing {
					w.logger.Warn("input poll failed", "error", err)
				}
				failing = true
				continue
			}
			if failing {
				w.logger.Debug("input poll recovered")
			}
			failing = false
		}
	}
}
