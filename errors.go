package aio

import (
	"errors"
	"fmt"
)

// Configuration errors, returned at construction time.
var (
	// ErrNoHandle is returned by NewNotifier when neither a combined handle
	// nor a read/write handle pair was supplied.
	ErrNoHandle = errors.New("aio: notifier requires a handle or a read/write handle pair")

	// ErrNoReadCallback is returned by NewNotifier when no on-read-ready
	// callback is available, either supplied or overridden.
	ErrNoReadCallback = errors.New("aio: notifier requires an on-read-ready callback")

	// ErrAlreadyHasParent is returned by Notifier.AddChild when the child
	// already has a parent.
	ErrAlreadyHasParent = errors.New("aio: notifier already has a parent")

	// ErrAlreadyInLoop is returned by AddChild or Loop.Add when the notifier
	// (or its root) is already registered with a Loop.
	ErrAlreadyInLoop = errors.New("aio: notifier already belongs to a loop")

	// ErrNotInLoop reports that a notifier does not belong to the loop an
	// operation was applied to. Remove and UnwatchChild treat that case as
	// a no-op and do not return it.
	ErrNotInLoop = errors.New("aio: notifier does not belong to this loop")

	// ErrInvalidPID is returned by NewProcessWatcher for a zero pid.
	ErrInvalidPID = errors.New("aio: process watcher requires a nonzero pid")

	// ErrNoExitCallback is returned by NewProcessWatcher when no on-exit
	// callback was supplied.
	ErrNoExitCallback = errors.New("aio: process watcher requires an on-exit callback")
)

// Runtime errors, returned while a Loop or Notifier is in use.
var (
	// ErrLoopStopped is returned by operations attempted on a Loop that has
	// already been closed.
	ErrLoopStopped = errors.New("aio: loop is stopped")

	// ErrReentrantLoopOnce is returned when PollLoop.LoopOnce is called from
	// within a callback running on the same loop.
	ErrReentrantLoopOnce = errors.New("aio: loop_once is not reentrant")
)

// wrapf wraps err with a formatted message using %w, so that errors.Is and
// errors.As continue to match against the sentinel.
func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
