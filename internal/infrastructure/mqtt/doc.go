// Package mqtt provides the MQTT transport for the device shadow channel.
//
// This package manages:
//   - Mutually authenticated TLS sessions to the shadow broker
//   - Explicit connect and disconnect (no automatic reconnect)
//   - Tracked subscriptions restored on demand with Resubscribe
//   - Connection-loss notification for the link monitor
//   - Shadow topic builders
//
// # Reconnection
//
// paho's own reconnect loop is disabled. Whether and when to reconnect is
// decided by the connection lifecycle machine, which needs to distinguish a
// first connection from a re-establishment. After a reconnect the broker
// holds no subscriptions (clean session) and Resubscribe must be called.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, mqtt.Endpoint{
//	    Host:     "data.iot.eu-west-1.amazonaws.com",
//	    Port:     8883,
//	    ClientID: "shadowsync-a4cf12b3c4d5",
//	    TLS:      tlsConfig,
//	})
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.ShadowTopics{Thing: "porch-light"}
//	err := client.Subscribe(topics.UpdateDelta(), 0,
//	    func(topic string, payload []byte) error {
//	        return handleDelta(payload)
//	    })
package mqtt
