package cloud

import "errors"

var (
	// ErrEstablish is returned when the channel cannot be opened or its
	// subscriptions cannot be placed.
	ErrEstablish = errors.New("cloud: channel establish failed")

	// ErrMalformedResponse is returned for an update response that is not
	// valid JSON.
	ErrMalformedResponse = errors.New("cloud: malformed update response")

	// ErrInboundFull is reported when an inbound message is dropped because
	// the queue is full.
	ErrInboundFull = errors.New("cloud: inbound queue full")
)
