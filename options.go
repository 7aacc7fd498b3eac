package aio

// NotifierOption configures a Notifier at construction time.
type NotifierOption func(*notifierConfig)

type notifierConfig struct {
	handle         *Handle
	readHandle     *Handle
	writeHandle    *Handle
	onReadReady    func()
	onWriteReady   func()
	onChildClosed  func(child *Notifier)
	wantWriteReady bool
	logger         Logger
}

// WithHandle supplies a single bidirectional handle.
func WithHandle(h *Handle) NotifierOption {
	return func(c *notifierConfig) { c.handle = h }
}

// WithReadWriteHandles supplies distinct read and write handles, either of
// which may be nil.
func WithReadWriteHandles(read, write *Handle) NotifierOption {
	return func(c *notifierConfig) {
		c.readHandle = read
		c.writeHandle = write
	}
}

// WithOnReadReady sets the read-readiness callback.
func WithOnReadReady(fn func()) NotifierOption {
	return func(c *notifierConfig) { c.onReadReady = fn }
}

// WithOnWriteReady sets the write-readiness callback.
func WithOnWriteReady(fn func()) NotifierOption {
	return func(c *notifierConfig) { c.onWriteReady = fn }
}

// WithOnChildClosed sets the callback invoked when a child notifier closes.
func WithOnChildClosed(fn func(child *Notifier)) NotifierOption {
	return func(c *notifierConfig) { c.onChildClosed = fn }
}

// WithWantWriteReady sets the initial write-interest flag.
func WithWantWriteReady(want bool) NotifierOption {
	return func(c *notifierConfig) { c.wantWriteReady = want }
}

// WithNotifierLogger attaches a structured logger to the notifier.
func WithNotifierLogger(l Logger) NotifierOption {
	return func(c *notifierConfig) { c.logger = l }
}

// BufferedStreamOption configures a BufferedStream at construction time.
type BufferedStreamOption func(*streamConfig)

type streamConfig struct {
	onIncomingData  func(recv *[]byte, closed bool) bool
	onOutgoingEmpty func()
}

// WithOnIncomingData sets the drain-loop consumer callback.
func WithOnIncomingData(fn func(recv *[]byte, closed bool) bool) BufferedStreamOption {
	return func(c *streamConfig) { c.onIncomingData = fn }
}

// WithOnOutgoingEmpty sets the callback invoked when sendbuf drains to empty.
func WithOnOutgoingEmpty(fn func()) BufferedStreamOption {
	return func(c *streamConfig) { c.onOutgoingEmpty = fn }
}

// ProcessWatcherOption configures a ProcessWatcher at construction time.
type ProcessWatcherOption func(*watcherConfig)

type watcherConfig struct {
	onExit func(w *ProcessWatcher, status int)
}

// WithOnExit sets the required exit callback.
func WithOnExit(fn func(w *ProcessWatcher, status int)) ProcessWatcherOption {
	return func(c *watcherConfig) { c.onExit = fn }
}

// PollLoopOption configures a PollLoop at construction time.
type PollLoopOption func(*pollLoopConfig)

type pollLoopConfig struct {
	logger Logger
}

// WithPollLoopLogger attaches a structured logger to a PollLoop.
func WithPollLoopLogger(l Logger) PollLoopOption {
	return func(c *pollLoopConfig) { c.logger = l }
}

// ExternalLoopOption configures an ExternalLoop at construction time.
type ExternalLoopOption func(*externalLoopConfig)

type externalLoopConfig struct {
	logger Logger
}

// WithExternalLoopLogger attaches a structured logger to an ExternalLoop.
func WithExternalLoopLogger(l Logger) ExternalLoopOption {
	return func(c *externalLoopConfig) { c.logger = l }
}
