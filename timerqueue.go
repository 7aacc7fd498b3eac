package aio

import (
	"container/heap"
	"time"
)

// TimerID identifies a previously enqueued timer for cancellation.
// TimerIDs remain valid after firing; cancelling an unknown or already-fired
// id is a no-op.
type TimerID uint64

// timerEntry is one scheduled one-shot callback.
type timerEntry struct {
	deadline  time.Time
	sequence  uint64 // enqueue order, for stable same-deadline firing
	id        TimerID
	callback  func()
	cancelled bool
	index     int // heap index, maintained by container/heap
}

// timerHeap is a min-heap ordered by (deadline, sequence) ascending, with
// sequence numbers ensuring timers sharing a deadline fire in enqueue
// order.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].sequence < h[j].sequence
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerQueue is an ordered set of deadline-keyed one-shot callbacks,
// supporting cancel-by-id and next-deadline queries.
//
// TimerQueue is not safe for concurrent use; like the rest of this package
// it is meant to be driven exclusively from the reactor's own goroutine.
type TimerQueue struct {
	heap     timerHeap
	byID     map[TimerID]*timerEntry
	nextID   TimerID
	nextSeq  uint64
	nowFunc  func() time.Time
}

// NewTimerQueue creates an empty TimerQueue using the monotonic clock.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{
		byID:    make(map[TimerID]*timerEntry),
		nextID:  1,
		nowFunc: time.Now,
	}
}

// Enqueue schedules callback to fire after delay has elapsed, returning an
// id usable with Cancel. The deadline is computed as now + delay using the
// monotonic clock; wall-clock adjustments never affect firing.
func (q *TimerQueue) Enqueue(delay time.Duration, callback func()) TimerID {
	id := q.nextID
	q.nextID++
	seq := q.nextSeq
	q.nextSeq++

	e := &timerEntry{
		deadline: q.nowFunc().Add(delay),
		sequence: seq,
		id:       id,
		callback: callback,
	}
	heap.Push(&q.heap, e)
	q.byID[id] = e
	return id
}

// Cancel marks id's entry cancelled, if it exists and hasn't fired yet.
// Cancelling an unknown or already-fired id is a no-op. Removal from the
// heap is lazy: the entry is skipped when
// it is eventually popped.
func (q *TimerQueue) Cancel(id TimerID) {
	e, ok := q.byID[id]
	if !ok {
		return
	}
	e.cancelled = true
	delete(q.byID, id)
}

// NextDeadline returns the smallest non-cancelled deadline, or false if
// none is pending. Cancelled entries at the top of the heap are discarded
// lazily as a side effect.
func (q *TimerQueue) NextDeadline() (time.Time, bool) {
	q.discardCancelledHead()
	if q.heap.Len() == 0 {
		return time.Time{}, false
	}
	return q.heap[0].deadline, true
}

func (q *TimerQueue) discardCancelledHead() {
	for q.heap.Len() > 0 && q.heap[0].cancelled {
		heap.Pop(&q.heap)
	}
}

// FireExpired extracts and invokes, in deadline order (ties broken by
// enqueue order), every non-cancelled entry whose deadline is not after
// now. Callbacks may enqueue new timers; those are only eligible to fire
// on a subsequent call to FireExpired, never the one in progress, since
// Enqueue appends to the heap with a fresh sequence number that is
// inserted but not part of the snapshot this call already decided to pop
// before invoking any callback.
func (q *TimerQueue) FireExpired(now time.Time) {
	var due []*timerEntry
	for q.heap.Len() > 0 && !q.heap[0].deadline.After(now) {
		e := heap.Pop(&q.heap).(*timerEntry)
		if e.cancelled {
			continue
		}
		delete(q.byID, e.id)
		due = append(due, e)
	}
	for _, e := range due {
		e.callback()
	}
}

// Len reports the number of entries still pending, including lazily
// cancelled ones not yet discarded.
func (q *TimerQueue) Len() int { return q.heap.Len() }
