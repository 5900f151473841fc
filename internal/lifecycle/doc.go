// Package lifecycle tracks the state of the cloud synchronisation channel.
//
// The Machine holds the single authoritative ConnectionState. All changes go
// through Transition, which looks the (state, event) pair up in a fixed table
// and returns the Action the caller must carry out. The machine itself does no
// I/O, so every transition can be exercised without a network.
//
//	Disconnected --LinkUp (first)--> Connected      (Establish)
//	Disconnected --LinkUp----------> Reconnecting
//	Connected    --LinkDown--------> Disconnected   (Teardown)
//	Reconnecting --ReconnectSucceeded--> Connected  (Resubscribe)
//	Reconnecting --ReconnectFailed-----> Disconnected (Abort)
package lifecycle
