package cloud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/shadowsync/internal/shadow"
)

func TestAckTracker_Resolve(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewAckTracker(10 * time.Second)
	tr.Track("tok-1", []shadow.Field{shadow.FieldButtonA}, base)

	ack, ok := tr.Resolve(Response{Status: AckAccepted, ClientToken: "tok-1", Version: 7}, base.Add(150*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, AckAccepted, ack.Status)
	assert.Equal(t, int64(7), ack.Version)
	assert.Equal(t, 150*time.Millisecond, ack.Latency)
	assert.Equal(t, []shadow.Field{shadow.FieldButtonA}, ack.Fields)
	assert.Equal(t, 0, tr.Len())

	_, ok = tr.Resolve(Response{Status: AckAccepted, ClientToken: "tok-1"}, base)
	assert.False(t, ok, "second response for the same token")
}

func TestAckTracker_UnknownToken(t *testing.T) {
	tr := NewAckTracker(time.Second)
	_, ok := tr.Resolve(Response{Status: AckRejected, ClientToken: "other-client"}, time.Now())
	assert.False(t, ok)
}

func TestAckTracker_Sweep(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewAckTracker(10 * time.Second)
	tr.Track("late", nil, base.Add(2*time.Second))
	tr.Track("early", nil, base)
	tr.Track("fresh", nil, base.Add(9*time.Second))

	assert.Empty(t, tr.Sweep(base.Add(9*time.Second)))

	expired := tr.Sweep(base.Add(12 * time.Second))
	require.Len(t, expired, 2)
	assert.Equal(t, "early", expired[0].Token)
	assert.Equal(t, "late", expired[1].Token)
	for _, a := range expired {
		assert.Equal(t, AckTimeout, a.Status)
	}
	assert.Equal(t, 1, tr.Len())

	// A response that arrives after the timeout is not matched.
	_, ok := tr.Resolve(Response{Status: AckAccepted, ClientToken: "early"}, base.Add(13*time.Second))
	assert.False(t, ok)
}

func TestParseResponse(t *testing.T) {
	r, err := ParseResponse(AckRejected, []byte(`{"code":400,"message":"Invalid JSON","timestamp":1459468800,"clientToken":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, Response{Status: AckRejected, ClientToken: "abc", Code: 400, Message: "Invalid JSON"}, r)

	r, err = ParseResponse(AckAccepted, []byte(`{"state":{"reported":{"pb":1}},"metadata":{},"version":42,"timestamp":1459468800,"clientToken":"xyz"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), r.Version)
	assert.Equal(t, "xyz", r.ClientToken)

	_, err = ParseResponse(AckAccepted, []byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
