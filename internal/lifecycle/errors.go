package lifecycle

import "errors"

// ErrInvalidTransition is returned when an event has no meaning in the
// current state. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")
