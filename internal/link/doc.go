// Package link reports whether the network path to the broker is usable.
//
// A Monitor probes a TCP address at a fixed interval and calls its handlers
// when reachability changes. The MQTT client can also declare the link down
// when its session drops, so a session loss that the probe cannot see still
// produces a down/up pair.
package link
