package shadow

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// PendingUpdate is the ordered list of fields to report on one tick.
type PendingUpdate []Entry

// Empty reports whether there is nothing to send.
func (p PendingUpdate) Empty() bool {
	return len(p) == 0
}

// Fields returns the field names in order.
func (p PendingUpdate) Fields() []Field {
	out := make([]Field, len(p))
	for i, e := range p {
		out[i] = e.Field
	}
	return out
}

// Payload is an outbound reported-state update.
//
// It serialises as {"state":{"reported":{...}}} with the reported keys in
// insertion order. ClientToken, when set by the transport, is appended as a
// top-level "clientToken" member for acknowledgement correlation.
type Payload struct {
	Reported    PendingUpdate
	ClientToken string
}

// Encode builds the payload for pending. It returns false when pending is
// empty, in which case nothing should be published.
func Encode(pending PendingUpdate) (*Payload, bool) {
	if pending.Empty() {
		return nil, false
	}
	reported := make(PendingUpdate, len(pending))
	copy(reported, pending)
	return &Payload{Reported: reported}, true
}

// MarshalJSON implements json.Marshaler.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var doc struct {
		State struct {
			Reported reportedState `json:"reported"`
		} `json:"state"`
		ClientToken string `json:"clientToken,omitempty"`
	}
	doc.State.Reported = reportedState(p.Reported)
	doc.ClientToken = p.ClientToken
	return json.Marshal(doc)
}

// reportedState is the "reported" object. encoding/json sorts map keys, so
// the entries are written as object members in their own order.
type reportedState []Entry

func (r reportedState) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Field))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatUint(uint64(e.Value), 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
