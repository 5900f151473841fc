package mqtt

import "errors"

// Errors returned by Client. Callers match them with errors.Is; the
// underlying paho error is wrapped alongside.
var (
	// ErrNotConnected means there is no broker session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps a rejected or failed CONNECT.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed means the broker never took the message.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps a failed or refused SUBSCRIBE.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	ErrInvalidQoS   = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrTimeout means a paho token did not complete in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
