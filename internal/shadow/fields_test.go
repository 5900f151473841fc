package shadow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_FirstChangedReportsEveryField(t *testing.T) {
	tr := NewTracker(DefaultFields()...)

	pending := tr.Changed()

	assert.Equal(t, PendingUpdate{
		{Field: FieldButtonA, Value: 0},
		{Field: FieldButtonB, Value: 0},
		{Field: FieldLED, Value: 0},
	}, pending)
}

func TestTracker_ChangedDoesNotMutate(t *testing.T) {
	tr := NewTracker(DefaultFields()...)
	first := tr.Changed()
	second := tr.Changed()
	assert.Equal(t, first, second)
}

func TestTracker_LastWriteWins(t *testing.T) {
	tr := NewTracker(DefaultFields()...)
	tr.MarkAllReported(tr.Changed())

	require.NoError(t, tr.Record(FieldButtonA, 1))
	require.NoError(t, tr.Record(FieldButtonA, 2))
	require.NoError(t, tr.Record(FieldButtonA, 7))

	assert.Equal(t, PendingUpdate{{Field: FieldButtonA, Value: 7}}, tr.Changed())
}

func TestTracker_ChangedIsOrderIndependent(t *testing.T) {
	// The same final values recorded in different orders give the same delta.
	orders := [][]Entry{
		{{FieldLED, 1}, {FieldButtonA, 3}, {FieldButtonB, 2}},
		{{FieldButtonB, 2}, {FieldButtonA, 3}, {FieldLED, 1}},
		{{FieldButtonA, 9}, {FieldLED, 1}, {FieldButtonB, 2}, {FieldButtonA, 3}},
	}

	var results []PendingUpdate
	for _, order := range orders {
		tr := NewTracker(DefaultFields()...)
		tr.MarkAllReported(tr.Changed())
		for _, e := range order {
			require.NoError(t, tr.Record(e.Field, e.Value))
		}
		results = append(results, tr.Changed())
	}

	want := PendingUpdate{{FieldButtonA, 3}, {FieldButtonB, 2}, {FieldLED, 1}}
	for i, got := range results {
		assert.Equal(t, want, got, "order %d", i)
	}
}

func TestTracker_RecordingReportedValueIsNotAChange(t *testing.T) {
	tr := NewTracker(DefaultFields()...)
	require.NoError(t, tr.Record(FieldLED, 1))
	tr.MarkAllReported(tr.Changed())

	require.NoError(t, tr.Record(FieldLED, 1))

	assert.True(t, tr.Changed().Empty())
}

func TestTracker_MarkReportedKeepsNewerValue(t *testing.T) {
	tr := NewTracker(DefaultFields()...)
	tr.MarkAllReported(tr.Changed())

	require.NoError(t, tr.Record(FieldButtonA, 1))
	pending := tr.Changed()

	// An input fires between snapshot and mark.
	require.NoError(t, tr.Record(FieldButtonA, 2))
	tr.MarkAllReported(pending)

	assert.Equal(t, PendingUpdate{{Field: FieldButtonA, Value: 2}}, tr.Changed())
}

func TestTracker_UnknownField(t *testing.T) {
	tr := NewTracker(DefaultFields()...)

	err := tr.Record("temperature", 21)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = tr.Increment("temperature")
	assert.ErrorIs(t, err, ErrUnknownField)

	_, ok := tr.Value("temperature")
	assert.False(t, ok)
}

func TestTracker_IncrementConcurrent(t *testing.T) {
	tr := NewTracker(DefaultFields()...)

	const presses = 1000
	var wg sync.WaitGroup
	for i := 0; i < presses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tr.Increment(FieldButtonB)
		}()
	}
	wg.Wait()

	v, ok := tr.Value(FieldButtonB)
	require.True(t, ok)
	assert.Equal(t, uint32(presses), v)
}

func TestTracker_IncrementWraps(t *testing.T) {
	tr := NewTracker(FieldButtonA)
	require.NoError(t, tr.Record(FieldButtonA, 4294967295))

	v, err := tr.Increment(FieldButtonA)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
}

func TestTracker_DuplicateFieldsCollapse(t *testing.T) {
	tr := NewTracker(FieldLED, FieldButtonA, FieldLED)
	assert.Equal(t, []Field{FieldLED, FieldButtonA}, tr.Fields())
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker(DefaultFields()...)
	require.NoError(t, tr.Record(FieldButtonA, 5))
	tr.MarkReported(Entry{Field: FieldButtonA, Value: 5})

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, FieldState{Field: FieldButtonA, Current: 5, Reported: 5}, snap[0])
	assert.True(t, snap[1].Unreported)
	assert.True(t, snap[2].Unreported)
}
