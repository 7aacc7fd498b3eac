package aio

// ProcessWatcher is a Notifier with no handles (it owns no file
// descriptor) that watches a single pid for exit, invoking its callback
// exactly once.
type ProcessWatcher struct {
	*Notifier

	pid    int
	fired  bool
	onExit func(w *ProcessWatcher, status int)
}

// NewProcessWatcher constructs a detached ProcessWatcher for pid, which
// must be nonzero. Construction fails with ErrInvalidPID or
// ErrNoExitCallback.
func NewProcessWatcher(pid int, opts ...ProcessWatcherOption) (*ProcessWatcher, error) {
	if pid == 0 {
		return nil, ErrInvalidPID
	}

	var cfg watcherConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.onExit == nil {
		return nil, ErrNoExitCallback
	}

	return &ProcessWatcher{
		// ProcessWatcher bypasses NewNotifier's handle requirement: it owns
		// no fd, so its on-read-ready slot is a never-invoked placeholder.
		Notifier: &Notifier{onReadReady: func() {}},
		pid:      pid,
		onExit:   cfg.onExit,
	}, nil
}

// PID returns the watched process id.
func (pw *ProcessWatcher) PID() int { return pw.pid }

// Fired reports whether the exit callback has already run.
func (pw *ProcessWatcher) Fired() bool { return pw.fired }

// SetOnExit replaces the exit callback. If the watcher is currently
// registered with a Loop, the new callback takes effect for the next exit
// without any additional action from the caller: the loop's child-watch
// table holds the watcher itself, not a snapshot of its callback.
func (pw *ProcessWatcher) SetOnExit(fn func(w *ProcessWatcher, status int)) {
	pw.onExit = fn
}

// fire invokes the exit callback once and removes the watcher from its
// parent or Loop. It is called by a Loop backend after reaping pw's pid.
func (pw *ProcessWatcher) fire(status int) {
	if pw.fired {
		return
	}
	pw.fired = true
	if pw.onExit != nil {
		pw.onExit(pw, status)
	}
	pw.handleClosed()
}

// Kill sends signal to the watched pid.
func (pw *ProcessWatcher) Kill(signal int) error {
	return killPID(pw.pid, signal)
}
