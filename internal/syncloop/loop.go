package syncloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/shadowsync/internal/cloud"
	"github.com/nerrad567/shadowsync/internal/lifecycle"
	"github.com/nerrad567/shadowsync/internal/shadow"
)

const (
	defaultTickInterval  = 100 * time.Millisecond
	defaultInboundBudget = 10 * time.Millisecond
	defaultLinkBuffer    = 8
)

// Channel is the shadow channel as seen by the loop.
type Channel interface {
	Establish(ctx context.Context) error
	Reestablish(ctx context.Context) error
	Resubscribe() error
	Teardown()
	Publish(ctx context.Context, p *shadow.Payload) (string, error)
	Inbound() <-chan cloud.Inbound
	Resolve(in cloud.Inbound) (cloud.Ack, bool, error)
	Sweep() []cloud.Ack
}

// Journal records published updates and their outcomes.
type Journal interface {
	Record(ctx context.Context, token string, reported shadow.PendingUpdate, sentAt time.Time) error
	Resolve(ctx context.Context, ack cloud.Ack) error
}

// Telemetry receives reported values and publish outcomes.
type Telemetry interface {
	WriteReported(reported shadow.PendingUpdate, at time.Time)
	WritePublishOutcome(ack cloud.Ack)
}

// Logger defines the logging interface for the loop.
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

// Config holds loop timing.
type Config struct {
	TickInterval  time.Duration
	InboundBudget time.Duration
}

// Stats counts what the loop has done.
type Stats struct {
	Ticks           uint64 `json:"ticks"`
	Published       uint64 `json:"published"`
	PublishFailures uint64 `json:"publish_failures"`
	Accepted        uint64 `json:"accepted"`
	Rejected        uint64 `json:"rejected"`
	Timeouts        uint64 `json:"timeouts"`
	DeltasApplied   uint64 `json:"deltas_applied"`
	DeltasMalformed uint64 `json:"deltas_malformed"`
}

// Loop is the synchronisation loop. Tick and Run must be called from a
// single goroutine; LinkChanged may be called from anywhere.
type Loop struct {
	cfg     Config
	tracker *shadow.Tracker
	applier *shadow.Applier
	machine *lifecycle.Machine
	channel Channel

	links chan bool

	logger    Logger
	journal   Journal
	telemetry Telemetry
	now       func() time.Time

	statsMu sync.Mutex
	stats   Stats
}

// New creates a loop. The tracker, applier, machine and channel outlive
// the loop and may be handed to a new loop after a failed run.
func New(cfg Config, tracker *shadow.Tracker, applier *shadow.Applier, machine *lifecycle.Machine, channel Channel) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.InboundBudget <= 0 {
		cfg.InboundBudget = defaultInboundBudget
	}
	return &Loop{
		cfg:     cfg,
		tracker: tracker,
		applier: applier,
		machine: machine,
		channel: channel,
		links:   make(chan bool, defaultLinkBuffer),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the loop.
func (l *Loop) SetLogger(logger Logger) { l.logger = logger }

// SetJournal enables the publish journal.
func (l *Loop) SetJournal(j Journal) { l.journal = j }

// SetTelemetry enables telemetry.
func (l *Loop) SetTelemetry(t Telemetry) { l.telemetry = t }

// LinkChanged queues a link state change for the next tick. It never
// blocks; when the queue is full the oldest event is discarded.
func (l *Loop) LinkChanged(up bool) {
	for {
		select {
		case l.links <- up:
			return
		default:
		}
		select {
		case <-l.links:
		default:
		}
	}
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Loop) count(fn func(s *Stats)) {
	l.statsMu.Lock()
	fn(&l.stats)
	l.statsMu.Unlock()
}

// Run ticks until ctx is done or a tick fails. On return the channel is torn
// down and the machine is Disconnected.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()
		case <-timer.C:
		}

		if err := l.Tick(ctx); err != nil {
			l.shutdown()
			return err
		}

		timer.Reset(l.cfg.TickInterval)
	}
}

// shutdown leaves the channel closed and the machine Disconnected.
func (l *Loop) shutdown() {
	if l.machine.State() == lifecycle.StateDisconnected {
		return
	}
	t, err := l.machine.Transition(lifecycle.EventLinkDown)
	if err != nil {
		return
	}
	if t.Action == lifecycle.ActionTeardown || t.From == lifecycle.StateReconnecting {
		l.channel.Teardown()
	}
}

// Tick runs one iteration of the loop without sleeping.
func (l *Loop) Tick(ctx context.Context) error {
	l.count(func(s *Stats) { s.Ticks++ })

	if err := l.drainLinks(ctx); err != nil {
		return err
	}

	if l.machine.State() == lifecycle.StateReconnecting {
		if err := l.reconnect(ctx); err != nil {
			return err
		}
	}

	if !l.machine.Connected() {
		return nil
	}

	l.pumpInbound(ctx)

	for _, ack := range l.channel.Sweep() {
		l.report(ctx, ack)
	}

	l.publish(ctx)
	return nil
}

// drainLinks applies every queued link event.
func (l *Loop) drainLinks(ctx context.Context) error {
	for {
		select {
		case up := <-l.links:
			ev := lifecycle.EventLinkDown
			if up {
				ev = lifecycle.EventLinkUp
			}
			t, err := l.machine.Transition(ev)
			if err != nil {
				l.logger.Warn("ignoring link event", "event", ev, "error", err)
				continue
			}
			if err := l.perform(ctx, t); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// perform carries out the action attached to a transition.
func (l *Loop) perform(ctx context.Context, t lifecycle.Transition) error {
	switch t.Action {
	case lifecycle.ActionEstablish:
		if err := l.channel.Establish(ctx); err != nil {
			l.logger.Error("establishing shadow channel failed", "error", err)
			_, _ = l.machine.Transition(lifecycle.EventEstablishFailed)
			return fmt.Errorf("%w: %w", ErrChannelEstablish, err)
		}
	case lifecycle.ActionTeardown:
		l.channel.Teardown()
	case lifecycle.ActionResubscribe:
		if err := l.channel.Resubscribe(); err != nil {
			l.logger.Error("resubscribing shadow channel failed", "error", err)
			l.shutdown()
			return fmt.Errorf("%w: %w", ErrChannelEstablish, err)
		}
	}
	return nil
}

// reconnect re-establishes the channel from Reconnecting.
func (l *Loop) reconnect(ctx context.Context) error {
	if err := l.channel.Reestablish(ctx); err != nil {
		l.logger.Error("re-establishing shadow channel failed", "error", err)
		_, _ = l.machine.Transition(lifecycle.EventReconnectFailed)
		l.channel.Teardown()
		return fmt.Errorf("%w: %w", ErrChannelEstablish, err)
	}

	t, err := l.machine.Transition(lifecycle.EventReconnectSucceeded)
	if err != nil {
		return err
	}
	return l.perform(ctx, t)
}

// pumpInbound handles inbound messages until the budget is spent.
func (l *Loop) pumpInbound(ctx context.Context) {
	budget := time.NewTimer(l.cfg.InboundBudget)
	defer budget.Stop()

	for {
		select {
		case in := <-l.channel.Inbound():
			l.handleInbound(ctx, in)
		case <-budget.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loop) handleInbound(ctx context.Context, in cloud.Inbound) {
	if in.Kind == cloud.InboundDelta {
		l.applyDelta(in.Payload)
		return
	}

	ack, ok, err := l.channel.Resolve(in)
	if err != nil {
		l.logger.Warn("ignoring update response", "kind", in.Kind, "error", err)
		return
	}
	if !ok {
		l.logger.Debug("update response for unknown token", "kind", in.Kind)
		return
	}
	l.report(ctx, ack)
}

// applyDelta applies a delta notification. Fields the applier does not own
// are ignored. A notification that is not an object, or whose owned field
// has a malformed value, is ignored as a whole.
func (l *Loop) applyDelta(payload []byte) {
	requests, err := shadow.ParseDelta(payload, l.applier.Field())
	if err != nil {
		l.count(func(s *Stats) { s.DeltasMalformed++ })
		l.logger.Warn("ignoring malformed delta", "error", err)
		return
	}

	for _, req := range requests {
		res, err := l.applier.Apply(req)
		switch res {
		case shadow.ResultIgnored:
			l.logger.Debug("ignoring delta for unmanaged field", "field", req.Field)
		case shadow.ResultFailed:
			l.logger.Warn("applying delta failed", "field", req.Field, "value", req.Value, "error", err)
		case shadow.ResultApplied:
			l.count(func(s *Stats) { s.DeltasApplied++ })
			l.logger.Info("delta applied", "field", req.Field, "value", req.Value)
		case shadow.ResultUnchanged:
			l.logger.Debug("delta already in effect", "field", req.Field, "value", req.Value)
		}
	}
}

// publish sends the changed fields, if any.
func (l *Loop) publish(ctx context.Context) {
	pending := l.tracker.Changed()
	payload, ok := shadow.Encode(pending)
	if !ok {
		return
	}

	sentAt := l.now()
	token, err := l.channel.Publish(ctx, payload)
	if err != nil {
		l.count(func(s *Stats) { s.PublishFailures++ })
		l.logger.Warn("publishing shadow update failed", "fields", pending.Fields(), "error", err)
		return
	}

	l.tracker.MarkAllReported(pending)
	l.count(func(s *Stats) { s.Published++ })
	l.logger.Debug("shadow update sent", "token", token, "fields", pending.Fields())

	if l.journal != nil {
		if err := l.journal.Record(ctx, token, pending, sentAt); err != nil {
			l.logger.Warn("journal record failed", "token", token, "error", err)
		}
	}
	if l.telemetry != nil {
		l.telemetry.WriteReported(pending, sentAt)
	}
}

// report logs and records a final publish outcome.
func (l *Loop) report(ctx context.Context, ack cloud.Ack) {
	switch ack.Status {
	case cloud.AckAccepted:
		l.count(func(s *Stats) { s.Accepted++ })
		l.logger.Debug("shadow update accepted",
			"token", ack.Token, "version", ack.Version, "latency", ack.Latency)
	case cloud.AckRejected:
		l.count(func(s *Stats) { s.Rejected++ })
		l.logger.Warn("shadow update rejected",
			"token", ack.Token, "code", ack.Code, "message", ack.Message, "fields", ack.Fields)
	case cloud.AckTimeout:
		l.count(func(s *Stats) { s.Timeouts++ })
		l.logger.Warn("shadow update not acknowledged",
			"token", ack.Token, "fields", ack.Fields, "waited", ack.Latency)
	}

	if l.journal != nil {
		if err := l.journal.Resolve(ctx, ack); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Warn("journal resolve failed", "token", ack.Token, "error", err)
		}
	}
	if l.telemetry != nil {
		l.telemetry.WritePublishOutcome(ack)
	}
}
