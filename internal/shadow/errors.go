package shadow

import "errors"

// Sentinel errors for shadow state handling.
var (
	// ErrUnknownField is returned when a field is not tracked.
	ErrUnknownField = errors.New("shadow: unknown field")

	// ErrMalformedNotification is returned when an inbound delta cannot be
	// interpreted. It is never fatal; the notification is dropped.
	ErrMalformedNotification = errors.New("shadow: malformed notification")

	// ErrActuator is returned when the actuator rejects a state change.
	ErrActuator = errors.New("shadow: actuator failed")
)
