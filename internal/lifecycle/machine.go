package lifecycle

import (
	"fmt"
	"sync"
)

// State is a connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Event is an input to the state machine.
type Event string

const (
	// EventLinkUp reports that the network link is available.
	EventLinkUp Event = "link_up"
	// EventLinkDown reports that the network link or the channel was lost.
	EventLinkDown Event = "link_down"
	// EventEstablishFailed reports that the first channel establishment failed.
	EventEstablishFailed Event = "establish_failed"
	// EventReconnectSucceeded reports a successful channel re-establishment.
	EventReconnectSucceeded Event = "reconnect_succeeded"
	// EventReconnectFailed reports a failed channel re-establishment.
	EventReconnectFailed Event = "reconnect_failed"
)

// Action is the work the caller must do after a transition.
type Action string

const (
	ActionNone        Action = "none"
	ActionEstablish   Action = "establish"
	ActionTeardown    Action = "teardown"
	ActionResubscribe Action = "resubscribe"
	// ActionAbort means synchronisation must stop for this run.
	ActionAbort Action = "abort"
)

// Transition is the outcome of one event.
type Transition struct {
	From   State
	To     State
	Event  Event
	Action Action
}

// Changed reports whether the state changed.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Observer is notified after every transition that changes state.
type Observer func(Transition)

// Machine is the connection lifecycle state machine. It is safe for
// concurrent use; observers are called without the lock held.
type Machine struct {
	mu        sync.Mutex
	state     State
	connected bool // true once a first connection has been established
	observers []Observer
}

// New returns a machine in StateDisconnected.
func New() *Machine {
	return &Machine{state: StateDisconnected}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the current state is StateConnected.
func (m *Machine) Connected() bool {
	return m.State() == StateConnected
}

// HasConnected reports whether the machine has ever reached StateConnected.
func (m *Machine) HasConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnTransition registers an observer.
func (m *Machine) OnTransition(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Transition applies ev to the current state. It is the only way the state
// changes. Events that make no sense in the current state return
// ErrInvalidTransition and leave the state as it was.
func (m *Machine) Transition(ev Event) (Transition, error) {
	m.mu.Lock()
	t, err := m.next(ev)
	if err != nil {
		m.mu.Unlock()
		return t, err
	}
	m.state = t.To
	switch {
	case t.To == StateConnected:
		m.connected = true
	case ev == EventEstablishFailed:
		// The first connection never completed.
		m.connected = false
	}
	var observers []Observer
	if t.Changed() {
		observers = append(observers, m.observers...)
	}
	m.mu.Unlock()

	for _, o := range observers {
		o(t)
	}
	return t, nil
}

// next computes the transition for ev. Caller holds m.mu.
func (m *Machine) next(ev Event) (Transition, error) {
	t := Transition{From: m.state, To: m.state, Event: ev, Action: ActionNone}

	switch m.state {
	case StateDisconnected:
		switch ev {
		case EventLinkUp:
			if m.connected {
				t.To = StateReconnecting
			} else {
				t.To = StateConnected
				t.Action = ActionEstablish
			}
			return t, nil
		case EventLinkDown:
			return t, nil
		}

	case StateConnected:
		switch ev {
		case EventLinkDown:
			t.To = StateDisconnected
			t.Action = ActionTeardown
			return t, nil
		case EventEstablishFailed:
			t.To = StateDisconnected
			t.Action = ActionAbort
			return t, nil
		case EventLinkUp:
			return t, nil
		}

	case StateReconnecting:
		switch ev {
		case EventReconnectSucceeded:
			t.To = StateConnected
			t.Action = ActionResubscribe
			return t, nil
		case EventReconnectFailed:
			t.To = StateDisconnected
			t.Action = ActionAbort
			return t, nil
		case EventLinkDown:
			t.To = StateDisconnected
			return t, nil
		case EventLinkUp:
			return t, nil
		}
	}

	return t, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev, m.state)
}
