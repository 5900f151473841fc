// Package shadow holds the device-side state that is mirrored to the cloud
// shadow document.
//
// Three pieces live here:
//
//   - Tracker: current and last-reported value per observable field. Input
//     callbacks write to it from their own goroutines; the sync loop reads it.
//   - Encode / Payload: turns the changed fields into the minimal
//     {"state":{"reported":{...}}} update, keys in field enumeration order.
//   - ParseDelta / Applier: interprets inbound delta notifications and drives
//     the actuator, recording the requested value so it is echoed back.
//
// Nothing in this package performs I/O.
package shadow
