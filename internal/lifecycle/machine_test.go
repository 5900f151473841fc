package lifecycle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Transition table
// ============================================================================

func TestMachine_TransitionTable(t *testing.T) {
	tests := []struct {
		name       string
		setup      []Event
		event      Event
		wantState  State
		wantAction Action
		wantErr    bool
	}{
		{
			name:       "first link up establishes",
			event:      EventLinkUp,
			wantState:  StateConnected,
			wantAction: ActionEstablish,
		},
		{
			name:       "link down while disconnected is a no-op",
			event:      EventLinkDown,
			wantState:  StateDisconnected,
			wantAction: ActionNone,
		},
		{
			name:       "link down while connected tears down",
			setup:      []Event{EventLinkUp},
			event:      EventLinkDown,
			wantState:  StateDisconnected,
			wantAction: ActionTeardown,
		},
		{
			name:       "establish failure aborts",
			setup:      []Event{EventLinkUp},
			event:      EventEstablishFailed,
			wantState:  StateDisconnected,
			wantAction: ActionAbort,
		},
		{
			name:       "link recovery after a connection reconnects",
			setup:      []Event{EventLinkUp, EventLinkDown},
			event:      EventLinkUp,
			wantState:  StateReconnecting,
			wantAction: ActionNone,
		},
		{
			name:       "reconnect success resubscribes",
			setup:      []Event{EventLinkUp, EventLinkDown, EventLinkUp},
			event:      EventReconnectSucceeded,
			wantState:  StateConnected,
			wantAction: ActionResubscribe,
		},
		{
			name:       "reconnect failure aborts",
			setup:      []Event{EventLinkUp, EventLinkDown, EventLinkUp},
			event:      EventReconnectFailed,
			wantState:  StateDisconnected,
			wantAction: ActionAbort,
		},
		{
			name:       "link lost while reconnecting",
			setup:      []Event{EventLinkUp, EventLinkDown, EventLinkUp},
			event:      EventLinkDown,
			wantState:  StateDisconnected,
			wantAction: ActionNone,
		},
		{
			name:       "duplicate link up while connected",
			setup:      []Event{EventLinkUp},
			event:      EventLinkUp,
			wantState:  StateConnected,
			wantAction: ActionNone,
		},
		{
			name:      "reconnect result while disconnected",
			event:     EventReconnectSucceeded,
			wantState: StateDisconnected,
			wantErr:   true,
		},
		{
			name:      "reconnect result while connected",
			setup:     []Event{EventLinkUp},
			event:     EventReconnectFailed,
			wantState: StateConnected,
			wantErr:   true,
		},
		{
			name:      "establish failure while reconnecting",
			setup:     []Event{EventLinkUp, EventLinkDown, EventLinkUp},
			event:     EventEstablishFailed,
			wantState: StateReconnecting,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			for _, ev := range tt.setup {
				_, err := m.Transition(ev)
				require.NoError(t, err, "setup event %s", ev)
			}

			tr, err := m.Transition(tt.event)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantAction, tr.Action)
			}
			assert.Equal(t, tt.wantState, m.State())
		})
	}
}

func TestMachine_ConnectedNeverGoesStraightToReconnecting(t *testing.T) {
	events := []Event{EventLinkUp, EventLinkDown, EventEstablishFailed, EventReconnectSucceeded, EventReconnectFailed}
	for _, ev := range events {
		m := New()
		_, err := m.Transition(EventLinkUp)
		require.NoError(t, err)

		_, _ = m.Transition(ev)
		assert.NotEqual(t, StateReconnecting, m.State(), "event %s", ev)
	}
}

// ============================================================================
// Observers
// ============================================================================

func TestMachine_ObserversSeeStateChangesOnly(t *testing.T) {
	m := New()
	var seen []Transition
	m.OnTransition(func(tr Transition) { seen = append(seen, tr) })

	for _, ev := range []Event{EventLinkDown, EventLinkUp, EventLinkUp, EventLinkDown} {
		_, _ = m.Transition(ev)
	}

	require.Len(t, seen, 2)
	assert.Equal(t, Transition{From: StateDisconnected, To: StateConnected, Event: EventLinkUp, Action: ActionEstablish}, seen[0])
	assert.Equal(t, Transition{From: StateConnected, To: StateDisconnected, Event: EventLinkDown, Action: ActionTeardown}, seen[1])
}

func TestMachine_ObserverMayReadState(t *testing.T) {
	m := New()
	var observed State
	m.OnTransition(func(Transition) { observed = m.State() })

	_, err := m.Transition(EventLinkUp)
	require.NoError(t, err)
	assert.Equal(t, StateConnected, observed)
}

func TestMachine_HasConnected(t *testing.T) {
	m := New()
	assert.False(t, m.HasConnected())
	_, _ = m.Transition(EventLinkUp)
	_, _ = m.Transition(EventLinkDown)
	assert.True(t, m.HasConnected())
	assert.False(t, m.Connected())
}

func TestMachine_EstablishFailureIsNotAFirstConnection(t *testing.T) {
	m := New()
	_, _ = m.Transition(EventLinkUp)
	_, err := m.Transition(EventEstablishFailed)
	require.NoError(t, err)
	assert.False(t, m.HasConnected())

	tr, err := m.Transition(EventLinkUp)
	require.NoError(t, err)
	assert.Equal(t, StateConnected, tr.To)
	assert.Equal(t, ActionEstablish, tr.Action)
}

func TestMachine_ConcurrentTransitions(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.Transition(EventLinkUp)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Transition(EventLinkDown)
		}()
	}
	wg.Wait()

	switch m.State() {
	case StateDisconnected, StateConnected, StateReconnecting:
	default:
		t.Fatalf("unexpected state %q", m.State())
	}
}
