// Package syncloop runs the device shadow synchronisation loop.
//
// Each tick the loop:
//
//  1. applies queued link events to the lifecycle machine and carries out
//     the resulting actions (establish, teardown)
//  2. re-establishes and resubscribes the channel when Reconnecting
//  3. drains inbound notifications for at most the inbound budget, applying
//     delta requests and matching update responses
//  4. publishes the fields that changed since the last report and marks
//     them reported
//
// and then sleeps for the tick interval. A failure to establish or
// re-establish the channel ends Run with ErrChannelEstablish. Everything else
// (rejected or unacknowledged updates, malformed notifications, publish
// errors) is logged and the loop carries on.
package syncloop
