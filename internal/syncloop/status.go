package syncloop

import (
	"github.com/nerrad567/shadowsync/internal/lifecycle"
	"github.com/nerrad567/shadowsync/internal/shadow"
)

// StatusIndicator returns an observer that switches indicator on while the
// channel is Connected and off otherwise.
func StatusIndicator(indicator shadow.Actuator, logger Logger) lifecycle.Observer {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(t lifecycle.Transition) {
		on := t.To == lifecycle.StateConnected
		if err := indicator.Set(on); err != nil {
			logger.Warn("status indicator update failed", "on", on, "error", err)
		}
	}
}

// LogTransitions returns an observer that logs every state change.
func LogTransitions(logger Logger) lifecycle.Observer {
	return func(t lifecycle.Transition) {
		logger.Info("connection state changed",
			"from", t.From,
			"to", t.To,
			"event", t.Event,
			"action", t.Action,
		)
	}
}
