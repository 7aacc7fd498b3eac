package aio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerQueue_FiresInDeadlineOrder(t *testing.T) {
	q := NewTimerQueue()
	var order []int

	q.Enqueue(30*time.Millisecond, func() { order = append(order, 3) })
	q.Enqueue(10*time.Millisecond, func() { order = append(order, 1) })
	q.Enqueue(20*time.Millisecond, func() { order = append(order, 2) })

	q.FireExpired(time.Now().Add(time.Hour))
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestTimerQueue_StableOrderOnSharedDeadline(t *testing.T) {
	fixed := time.Unix(0, 0)
	q := NewTimerQueue()
	q.nowFunc = func() time.Time { return fixed }

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(time.Second, func() { order = append(order, i) })
	}

	q.FireExpired(fixed.Add(2 * time.Second))
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestTimerQueue_CancelPreventsFiring(t *testing.T) {
	q := NewTimerQueue()
	fired := false
	id := q.Enqueue(time.Millisecond, func() { fired = true })
	q.Cancel(id)

	q.FireExpired(time.Now().Add(time.Hour))
	require.False(t, fired)
}

func TestTimerQueue_CancelAfterFireIsNoOp(t *testing.T) {
	q := NewTimerQueue()
	count := 0
	id := q.Enqueue(time.Millisecond, func() { count++ })

	q.FireExpired(time.Now().Add(time.Hour))
	require.Equal(t, 1, count)

	q.Cancel(id)
	require.Equal(t, 1, count)
}

func TestTimerQueue_CallbackEnqueuedTimerFiresNextPass(t *testing.T) {
	fixed := time.Unix(0, 0)
	q := NewTimerQueue()
	q.nowFunc = func() time.Time { return fixed }

	var secondFired bool
	q.Enqueue(time.Second, func() {
		q.Enqueue(0, func() { secondFired = true })
	})

	q.FireExpired(fixed.Add(2 * time.Second))
	require.False(t, secondFired, "a timer enqueued by a firing callback must not fire in the same pass")

	q.FireExpired(fixed.Add(3 * time.Second))
	require.True(t, secondFired)
}

func TestTimerQueue_NextDeadlineSkipsCancelledHead(t *testing.T) {
	q := NewTimerQueue()
	id1 := q.Enqueue(time.Millisecond, func() {})
	q.Enqueue(time.Hour, func() {})

	q.Cancel(id1)
	deadline, ok := q.NextDeadline()
	require.True(t, ok)
	require.True(t, deadline.After(time.Now().Add(59*time.Minute)))
}

func TestTimerQueue_NextDeadlineEmpty(t *testing.T) {
	q := NewTimerQueue()
	_, ok := q.NextDeadline()
	require.False(t, ok)
}
