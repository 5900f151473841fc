package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
)

// Status represents the current state of a supervised task.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusWaiting  Status = "waiting"
	StatusFailed   Status = "failed"
	StatusFinished Status = "finished"
)

// ErrRestartsExhausted wraps the last task error once MaxRestartAttempts
// restarts have failed.
var ErrRestartsExhausted = errors.New("process: restart attempts exhausted")

// ErrAlreadyRunning is returned by Run while another Run is in progress.
var ErrAlreadyRunning = errors.New("process: already running")

// Task is a unit of supervised work. It runs until ctx is cancelled or it
// fails; a nil return means the task finished and is not restarted.
type Task func(ctx context.Context) error

// Config holds supervision settings for one task.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// RestartOnFailure enables restarts after a retryable failure.
	RestartOnFailure bool

	// RestartDelay is the delay before the first restart. It doubles on each
	// consecutive failure up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// StableThreshold is how long a run must last before its failure is
	// treated as fresh: the attempt counter and backoff reset.
	StableThreshold time.Duration

	// IsRetryable decides whether a failure may be restarted. Nil means
	// every error is retryable.
	IsRetryable func(err error) bool

	// OnStart is called at the start of every run, with 0 for the first.
	OnStart func(attempt int)

	// OnStop is called when a run ends, with its error.
	OnStop func(err error)

	// OnRestart is called before waiting to restart.
	OnRestart func(attempt int, delay time.Duration)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:               name,
		RestartOnFailure:   true,
		RestartDelay:       5 * time.Second,
		MaxRestartDelay:    5 * time.Minute,
		MaxRestartAttempts: 10,
		StableThreshold:    2 * time.Minute,
	}
}

// ConfigFrom builds a Config from the supervisor section of the
// configuration file.
func ConfigFrom(name string, cfg config.SupervisorConfig) Config {
	c := DefaultConfig(name)
	c.RestartOnFailure = cfg.RestartOnFailure
	if cfg.RestartDelay > 0 {
		c.RestartDelay = cfg.RestartDelay
	}
	if cfg.MaxRestartDelay > 0 {
		c.MaxRestartDelay = cfg.MaxRestartDelay
	}
	if cfg.MaxRestartAttempts >= 0 {
		c.MaxRestartAttempts = cfg.MaxRestartAttempts
	}
	return c
}

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager runs a task and restarts it on retryable failure.
type Manager struct {
	config Config
	logger Logger

	mu           sync.RWMutex
	status       Status
	restartCount int
	lastError    error
	startTime    time.Time
}

// NewManager creates a manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.MaxRestartDelay <= 0 {
		cfg.MaxRestartDelay = 5 * time.Minute
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = cfg.RestartDelay
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = 2 * time.Minute
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Run runs task until it finishes, ctx is cancelled, or it fails in a way
// that is not restarted. It blocks.
//
// Run returns nil when the task returns nil or when ctx is cancelled. A
// non-retryable failure, or any failure with restarts disabled, is returned
// as is; exhausting MaxRestartAttempts returns ErrRestartsExhausted wrapping
// the last failure.
func (m *Manager) Run(ctx context.Context, task Task) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusWaiting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.restartCount = 0
	m.lastError = nil
	m.mu.Unlock()

	attempt := 0
	for {
		started := time.Now()
		m.setRunning(started)
		if m.config.OnStart != nil {
			m.config.OnStart(attempt)
		}
		m.logger.Info("task started", "name", m.config.Name, "attempt", attempt)

		err := m.runOnce(ctx, task)

		if m.config.OnStop != nil {
			m.config.OnStop(err)
		}

		if ctx.Err() != nil {
			m.logger.Info("task stopped", "name", m.config.Name)
			m.setStatus(StatusStopped, nil)
			return nil
		}
		if err == nil {
			m.logger.Info("task finished", "name", m.config.Name)
			m.setStatus(StatusFinished, nil)
			return nil
		}

		m.logger.Warn("task failed", "name", m.config.Name, "error", err, "ran_for", time.Since(started))
		m.setStatus(StatusFailed, err)

		if !m.config.RestartOnFailure {
			return err
		}
		if !m.isRetryable(err) {
			m.logger.Error("task failed permanently", "name", m.config.Name, "error", err)
			return err
		}

		if time.Since(started) >= m.config.StableThreshold {
			attempt = 0
		}
		attempt++

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("max restart attempts reached",
				"name", m.config.Name,
				"attempts", attempt-1,
			)
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrRestartsExhausted, m.config.Name, attempt-1, err)
		}

		delay := m.calculateBackoffDelay(attempt)
		m.logger.Info("restarting task",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", delay,
		)
		if m.config.OnRestart != nil {
			m.config.OnRestart(attempt, delay)
		}

		m.mu.Lock()
		m.status = StatusWaiting
		m.restartCount++
		m.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("context cancelled, not restarting", "name", m.config.Name)
			m.setStatus(StatusStopped, err)
			return nil
		case <-timer.C:
		}
	}
}

// runOnce runs task, converting a panic into an error.
func (m *Manager) runOnce(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", m.config.Name, r)
		}
	}()
	return task(ctx)
}

func (m *Manager) isRetryable(err error) bool {
	if m.config.IsRetryable == nil {
		return true
	}
	return m.config.IsRetryable(err)
}

// calculateBackoffDelay returns RestartDelay * 2^(attempt-1), capped at
// MaxRestartDelay.
func (m *Manager) calculateBackoffDelay(attempt int) time.Duration {
	delay := m.config.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.MaxRestartDelay {
			return m.config.MaxRestartDelay
		}
	}
	return delay
}

func (m *Manager) setRunning(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusRunning
	m.startTime = at
}

func (m *Manager) setStatus(s Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
	if err != nil {
		m.lastError = err
	}
}

// Status returns the current status of the task.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true while a run is in progress.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the error that ended the most recent failed run.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns how many restarts the current Run has performed.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// Uptime returns how long the current run has lasted, or 0 when not running.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning {
		return 0
	}
	return time.Since(m.startTime)
}

// Stats summarises the manager state.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the task.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
	}
	if m.status == StatusRunning {
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}
