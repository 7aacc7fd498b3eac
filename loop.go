package aio

import "time"

// Loop is the reactor contract implemented by both PollLoop and
// ExternalLoop: adding/removing notifiers, changing write-readiness
// interest, one-shot iteration, indefinite looping with a stop signal,
// timer enqueue/cancel, and child-watch. The backends differ only in
// LoopOnce's return value, timeout and reentrancy handling, as described
// on LoopOnce below.
type Loop interface {
	// Add registers n (and its descendants) with the Loop. It fails with
	// ErrAlreadyInLoop if n already belongs to any Loop.
	Add(n *Notifier) error

	// Remove unregisters n (and its descendants). It is a no-op if n does
	// not belong to this Loop.
	Remove(n *Notifier)

	// EnqueueTimer schedules callback to fire after delay elapses.
	EnqueueTimer(delay time.Duration, callback func()) TimerID

	// CancelTimer cancels a pending timer. Cancelling an unknown or
	// already-fired id is a no-op.
	CancelTimer(id TimerID)

	// WatchChild registers a one-shot exit watch for pid.
	WatchChild(w *ProcessWatcher) error

	// UnwatchChild removes a previously registered child watch.
	UnwatchChild(w *ProcessWatcher)

	// LoopOnce waits up to timeout (or forever if nil) for any source to
	// become ready, then dispatches all ready sources and all timers whose
	// deadline has passed. It returns the number of fd-sources that were
	// ready (0 on pure timeout). It is not reentrant: calling PollLoop's
	// LoopOnce from within a callback running on the same loop returns
	// ErrReentrantLoopOnce. ExternalLoop differs: its LoopOnce runs one host
	// iteration, does not forward timeout, always returns 0, and does not
	// detect reentrant calls.
	LoopOnce(timeout *time.Duration) (int, error)

	// LoopForever calls LoopOnce(nil) repeatedly until LoopStop is called
	// from within a callback.
	LoopForever() error

	// LoopStop clears the loop-forever sentinel.
	LoopStop()

	// Close releases the Loop's own resources (the multiplexer fd, signal
	// handling, etc). It does not close any registered Notifier's handles.
	Close() error

	reactorHost
}
