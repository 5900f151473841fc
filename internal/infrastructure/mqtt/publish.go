package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (128KB, the shadow service limit
// for an update document is far lower).
const maxPayloadSize = 128 << 10

// Publish sends a message to the specified MQTT topic and waits for the
// broker to take it (QoS 0: written to the socket; QoS 1: PUBACK).
//
// Returns:
//   - ErrInvalidTopic / ErrInvalidQoS for bad arguments
//   - ErrNotConnected when there is no session; nothing was sent
//   - ErrPublishFailed wrapping the transport error otherwise
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if err := waitToken(ctx, token, defaultOperationTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishDefault publishes with the configured QoS, not retained.
func (c *Client) PublishDefault(ctx context.Context, topic string, payload []byte) error {
	return c.Publish(ctx, topic, payload, byte(c.cfg.QoS), false)
}
