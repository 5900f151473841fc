package cloud

import (
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/shadowsync/internal/shadow"
)

// AckStatus is the final outcome of one published update.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckRejected AckStatus = "rejected"
	AckTimeout  AckStatus = "timeout"
)

// Ack describes the outcome of one published update.
type Ack struct {
	Token   string
	Status  AckStatus
	Fields  []shadow.Field
	SentAt  time.Time
	Latency time.Duration

	// Set for AckAccepted.
	Version int64

	// Set for AckRejected.
	Code    int
	Message string
}

type pendingAck struct {
	fields []shadow.Field
	sentAt time.Time
}

// AckTracker remembers published updates until their response arrives or
// the timeout elapses.
type AckTracker struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]pendingAck
}

// NewAckTracker creates a tracker that expires entries after timeout.
func NewAckTracker(timeout time.Duration) *AckTracker {
	return &AckTracker{
		timeout: timeout,
		pending: make(map[string]pendingAck),
	}
}

// Track records that an update with token was sent at sentAt.
func (t *AckTracker) Track(token string, fields []shadow.Field, sentAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[token] = pendingAck{fields: fields, sentAt: sentAt}
}

// Resolve completes the update identified by r.ClientToken. It returns false
// for tokens it is not waiting on, including responses that arrive after the
// entry has already timed out.
func (t *AckTracker) Resolve(r Response, at time.Time) (Ack, bool) {
	t.mu.Lock()
	p, ok := t.pending[r.ClientToken]
	if ok {
		delete(t.pending, r.ClientToken)
	}
	t.mu.Unlock()

	if !ok {
		return Ack{}, false
	}

	ack := Ack{
		Token:   r.ClientToken,
		Status:  r.Status,
		Fields:  p.fields,
		SentAt:  p.sentAt,
		Latency: at.Sub(p.sentAt),
		Version: r.Version,
		Code:    r.Code,
		Message: r.Message,
	}
	return ack, true
}

// Sweep removes and returns every entry older than the timeout, oldest first.
func (t *AckTracker) Sweep(now time.Time) []Ack {
	t.mu.Lock()
	var expired []Ack
	for token, p := range t.pending {
		if now.Sub(p.sentAt) < t.timeout {
			continue
		}
		delete(t.pending, token)
		expired = append(expired, Ack{
			Token:   token,
			Status:  AckTimeout,
			Fields:  p.fields,
			SentAt:  p.sentAt,
			Latency: now.Sub(p.sentAt),
		})
	}
	t.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].SentAt.Before(expired[j].SentAt)
	})
	return expired
}

// Len returns the number of updates awaiting a response.
func (t *AckTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
