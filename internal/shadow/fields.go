package shadow

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Field names reported to the shadow document.
const (
	FieldButtonA Field = "pb"
	FieldButtonB Field = "pb_lambda"
	FieldLED     Field = "led"
)

// unset marks a field that has never been reported. It lies outside the
// uint32 value range so the first comparison always differs.
const unset int64 = -1

// Field identifies an observable value by its shadow document key.
type Field string

// DefaultFields returns the device's observable fields in report order:
// buttons before the actuator.
func DefaultFields() []Field {
	return []Field{FieldButtonA, FieldButtonB, FieldLED}
}

// Entry is a single field value.
type Entry struct {
	Field Field
	Value uint32
}

// FieldState is a diagnostic copy of one tracked field.
type FieldState struct {
	Field    Field
	Current  uint32
	Reported uint32
	// Unreported is true until the field has been included in a payload.
	Unreported bool
}

type trackedField struct {
	name     Field
	current  atomic.Int64
	reported atomic.Int64
}

// Tracker holds the latest value of every observable field and the value last
// included in an outbound update.
//
// Record and Increment may be called from input callbacks concurrently with
// the synchronisation loop. Each field is read and written atomically on its
// own; no lock spans fields.
type Tracker struct {
	fields []*trackedField
	index  map[Field]*trackedField
}

// NewTracker creates a tracker for fields, enumerated in the given order.
// Every field starts at zero and unreported.
func NewTracker(fields ...Field) *Tracker {
	t := &Tracker{
		fields: make([]*trackedField, 0, len(fields)),
		index:  make(map[Field]*trackedField, len(fields)),
	}
	for _, name := range fields {
		if _, dup := t.index[name]; dup {
			continue
		}
		f := &trackedField{name: name}
		f.reported.Store(unset)
		t.fields = append(t.fields, f)
		t.index[name] = f
	}
	return t
}

// Fields returns the tracked field names in enumeration order.
func (t *Tracker) Fields() []Field {
	out := make([]Field, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.name
	}
	return out
}

// Record overwrites the current value of field. Any earlier value that has
// not been reported yet is superseded.
func (t *Tracker) Record(field Field, value uint32) error {
	f, ok := t.index[field]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	f.current.Store(int64(value))
	return nil
}

// Increment adds one to the current value of field and returns the new value.
// Counters wrap at the uint32 boundary.
func (t *Tracker) Increment(field Field) (uint32, error) {
	f, ok := t.index[field]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	for {
		old := f.current.Load()
		next := old + 1
		if next > math.MaxUint32 {
			next = 0
		}
		if f.current.CompareAndSwap(old, next) {
			return uint32(next), nil
		}
	}
}

// Value returns the current value of field.
func (t *Tracker) Value(field Field) (uint32, bool) {
	f, ok := t.index[field]
	if !ok {
		return 0, false
	}
	return uint32(f.current.Load()), true
}

// Changed returns every field whose current value differs from its last
// reported value, in enumeration order. It does not modify the tracker.
func (t *Tracker) Changed() PendingUpdate {
	var pending PendingUpdate
	for _, f := range t.fields {
		cur := f.current.Load()
		if cur != f.reported.Load() {
			pending = append(pending, Entry{Field: f.name, Value: uint32(cur)})
		}
	}
	return pending
}

// MarkReported records that e.Value was included in an outbound payload.
//
// The stored value is the one that was encoded, not the live value: if the
// field changed after Changed was taken, it still differs afterwards and is
// picked up on the next tick.
func (t *Tracker) MarkReported(e Entry) {
	f, ok := t.index[e.Field]
	if !ok {
		return
	}
	f.reported.Store(int64(e.Value))
}

// MarkAllReported calls MarkReported for every entry of p.
func (t *Tracker) MarkAllReported(p PendingUpdate) {
	for _, e := range p {
		t.MarkReported(e)
	}
}

// Snapshot returns a per-field copy of the tracker state.
func (t *Tracker) Snapshot() []FieldState {
	out := make([]FieldState, 0, len(t.fields))
	for _, f := range t.fields {
		rep := f.reported.Load()
		st := FieldState{
			Field:      f.name,
			Current:    uint32(f.current.Load()),
			Unreported: rep == unset,
		}
		if rep != unset {
			st.Reported = uint32(rep)
		}
		out = append(out, st)
	}
	return out
}
