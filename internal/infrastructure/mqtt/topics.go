package mqtt

import "fmt"

// DefaultShadowPrefix is the topic root of the classic device shadow.
const DefaultShadowPrefix = "$aws/things"

// ShadowTopics builds the classic (unnamed) device shadow topics for one thing.
//
//	topics := mqtt.ShadowTopics{Prefix: "$aws/things", Thing: "porch-light"}
//	topics.Update()
//	// Returns: "$aws/things/porch-light/shadow/update"
type ShadowTopics struct {
	Prefix string
	Thing  string
}

func (t ShadowTopics) base() string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultShadowPrefix
	}
	return fmt.Sprintf("%s/%s/shadow", prefix, t.Thing)
}

// Update is where reported state is published.
func (t ShadowTopics) Update() string {
	return t.base() + "/update"
}

// UpdateAccepted carries acknowledgements of accepted updates.
func (t ShadowTopics) UpdateAccepted() string {
	return t.base() + "/update/accepted"
}

// UpdateRejected carries error responses for rejected updates.
func (t ShadowTopics) UpdateRejected() string {
	return t.base() + "/update/rejected"
}

// UpdateDelta carries desired state that differs from reported state.
func (t ShadowTopics) UpdateDelta() string {
	return t.base() + "/update/delta"
}
