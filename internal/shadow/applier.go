package shadow

import (
	"fmt"
	"sync"
)

// Actuator drives a single on/off output.
type Actuator interface {
	Set(on bool) error
}

// Result describes what Apply did with a request.
type Result int

const (
	// ResultIgnored means the request named a field this applier does not own.
	ResultIgnored Result = iota
	// ResultApplied means the actuator was driven and the value recorded.
	ResultApplied
	// ResultUnchanged means the actuator was already in the requested state;
	// the value was recorded without touching the output.
	ResultUnchanged
	// ResultFailed means the actuator returned an error; nothing was recorded.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultIgnored:
		return "ignored"
	case ResultApplied:
		return "applied"
	case ResultUnchanged:
		return "unchanged"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Applier applies remote requests for one actuator-backed field.
//
// A non-zero requested value switches the actuator on, zero switches it off.
// The requested value is then recorded in the tracker so the next outbound
// update echoes it back.
type Applier struct {
	field    Field
	tracker  *Tracker
	actuator Actuator

	mu      sync.Mutex
	applied *bool
}

// NewApplier creates an applier for field.
func NewApplier(field Field, tracker *Tracker, actuator Actuator) *Applier {
	return &Applier{
		field:    field,
		tracker:  tracker,
		actuator: actuator,
	}
}

// Field returns the field this applier owns.
func (a *Applier) Field() Field {
	return a.field
}

// Apply applies req. Requests for other fields are ignored without error.
// Re-applying a request whose on/off state is already in effect does not
// drive the actuator again.
func (a *Applier) Apply(req RemoteRequest) (Result, error) {
	if req.Field != a.field {
		return ResultIgnored, nil
	}

	on := req.Value != 0

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.applied != nil && *a.applied == on {
		if err := a.tracker.Record(a.field, req.Value); err != nil {
			return ResultFailed, err
		}
		return ResultUnchanged, nil
	}

	if err := a.actuator.Set(on); err != nil {
		return ResultFailed, fmt.Errorf("%w: %s: %w", ErrActuator, a.field, err)
	}
	a.applied = &on

	if err := a.tracker.Record(a.field, req.Value); err != nil {
		return ResultFailed, err
	}
	return ResultApplied, nil
}

// State returns the last state the applier drove the actuator to, and false
// if it has not driven it yet.
func (a *Applier) State() (on bool, known bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.applied == nil {
		return false, false
	}
	return *a.applied, true
}
