package syncloop

import "errors"

// ErrChannelEstablish is returned by Tick and Run when the shadow channel
// cannot be established, re-established or resubscribed. It ends the run.
var ErrChannelEstablish = errors.New("syncloop: channel establish failed")
