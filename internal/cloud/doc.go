// Package cloud implements the device shadow channel on top of the MQTT
// transport.
//
// A Channel publishes reported-state updates, tags each one with a
// clientToken and matches the update/accepted and update/rejected responses
// back to it. Updates that get no response within the acknowledgement
// timeout are reported as timed out by Sweep. Outcomes are informational
// only: nothing is ever resent.
//
// Inbound traffic (delta notifications and update responses) arrives on paho
// goroutines and is queued on a single buffered channel, so the synchronisation
// loop can drain it within its own time budget.
package cloud
