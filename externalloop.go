package aio

import "time"

// FDEvent is the readiness alphabet HostLoop reports to a registered fd
// source's callback.
type FDEvent uint8

const (
	FDReadable FDEvent = 1 << iota
	FDWritable
	FDHangup
)

// HostLoop is the generic adapter interface ExternalLoop registers sources
// with, standing in for a host main loop (e.g. a GLib main context). This
// repository ships only the adapter and an in-memory fake implementation
// used by its own tests, not a concrete binding to any specific host.
type HostLoop interface {
	// AddFDSource registers cb to be invoked whenever fd satisfies events.
	// The returned handle is later passed to RemoveSource.
	AddFDSource(fd int, events FDEvent, cb func(FDEvent)) (any, error)
	// RemoveSource unregisters a source previously returned by
	// AddFDSource or AddTimer.
	RemoveSource(source any)
	// AddTimer registers cb to fire once after d elapses, returning a
	// handle usable with RemoveSource for cancellation.
	AddTimer(d time.Duration, cb func()) (any, error)
	// RunIteration runs a single iteration of the host main loop,
	// dispatching whatever sources are currently ready.
	RunIteration() error
}

type externalRegistration struct {
	readFD, writeFD   int
	hasRead, hasWrite bool
	combined          bool
	readSource        any
	writeSource       any
}

// ExternalLoop implements Loop by registering sources with a host-provided
// main loop instead of driving its own multiplexer.
type ExternalLoop struct {
	host HostLoop

	notifiers     []*Notifier
	registrations map[*Notifier]*externalRegistration

	nextTimerID  TimerID
	timerSources map[TimerID]any

	children   map[int]*ProcessWatcher
	watcherPID map[*Notifier]int

	stopRequested bool
	inDispatch    bool
	logger        Logger
}

// NewExternalLoop constructs an ExternalLoop adapting to host.
func NewExternalLoop(host HostLoop, opts ...ExternalLoopOption) (*ExternalLoop, error) {
	var cfg externalLoopConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = getGlobalLogger()
	}
	return &ExternalLoop{
		host:          host,
		registrations: make(map[*Notifier]*externalRegistration),
		nextTimerID:   1,
		timerSources:  make(map[TimerID]any),
		children:      make(map[int]*ProcessWatcher),
		watcherPID:    make(map[*Notifier]int),
		logger:        logger,
	}, nil
}

// Add registers n (and its descendants) with the loop.
func (l *ExternalLoop) Add(n *Notifier) error {
	if n.host != nil {
		return ErrAlreadyInLoop
	}
	return l.attach(n)
}

// Remove unregisters n (and its descendants).
func (l *ExternalLoop) Remove(n *Notifier) {
	if n.host != l {
		return
	}
	l.detach(n)
}

func (l *ExternalLoop) attach(n *Notifier) error {
	var registered []*Notifier
	var walk func(v *Notifier) error
	walk = func(v *Notifier) error {
		if err := l.attachOne(v); err != nil {
			return err
		}
		registered = append(registered, v)
		for _, c := range v.children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(n); err != nil {
		for _, v := range registered {
			l.detachOne(v)
		}
		return err
	}
	return nil
}

func (l *ExternalLoop) detach(n *Notifier) {
	n.walk(func(v *Notifier) {
		l.detachOne(v)
	})
}

func (l *ExternalLoop) dispatchFD(n *Notifier, reg *externalRegistration, ev FDEvent) {
	if ev&(FDReadable|FDHangup) != 0 {
		n.onReadReady()
	}
	if n.removedDuringDispatch || n.host != l {
		return
	}
	wantWrite := ev&FDWritable != 0 || (ev&FDHangup != 0 && n.WantWriteReady())
	if wantWrite && n.onWriteReady != nil {
		n.onWriteReady()
	}
}

func (l *ExternalLoop) attachOne(v *Notifier) error {
	rf, hasR := v.ReadHandle().Fileno()
	wf, hasW := v.WriteHandle().WriteFileno()

	if !hasR && !hasW {
		v.host = l
		return nil
	}

	reg := &externalRegistration{readFD: rf, writeFD: wf, hasRead: hasR, hasWrite: hasW}
	reg.combined = hasR && hasW && rf == wf

	switch {
	case reg.combined:
		events := FDReadable
		if v.WantWriteReady() {
			events |= FDWritable
		}
		src, err := l.host.AddFDSource(rf, events, func(ev FDEvent) { l.dispatchFD(v, reg, ev) })
		if err != nil {
			return err
		}
		reg.readSource = src
	default:
		if hasR {
			src, err := l.host.AddFDSource(rf, FDReadable, func(ev FDEvent) { l.dispatchFD(v, reg, ev) })
			if err != nil {
				return err
			}
			reg.readSource = src
		}
		if hasW && v.WantWriteReady() {
			src, err := l.host.AddFDSource(wf, FDWritable, func(ev FDEvent) { l.dispatchFD(v, reg, ev) })
			if err != nil {
				if reg.readSource != nil {
					l.host.RemoveSource(reg.readSource)
				}
				return err
			}
			reg.writeSource = src
		}
	}

	l.registrations[v] = reg
	v.host = l
	l.notifiers = append(l.notifiers, v)
	return nil
}

func (l *ExternalLoop) detachOne(v *Notifier) {
	if pid, ok := l.watcherPID[v]; ok {
		delete(l.children, pid)
		delete(l.watcherPID, v)
	}

	if reg, ok := l.registrations[v]; ok {
		if reg.readSource != nil {
			l.host.RemoveSource(reg.readSource)
		}
		if reg.writeSource != nil {
			l.host.RemoveSource(reg.writeSource)
		}
		delete(l.registrations, v)

		for i, x := range l.notifiers {
			if x == v {
				l.notifiers = append(l.notifiers[:i], l.notifiers[i+1:]...)
				break
			}
		}
	}

	v.host = nil
	if l.inDispatch {
		v.removedDuringDispatch = true
	}
}

// notifierWantWriteReady implements reactorHost. Per the host adapter's
// source model, a mask change is expressed as remove-then-add rather than
// an in-place modify.
func (l *ExternalLoop) notifierWantWriteReady(n *Notifier) {
	reg, ok := l.registrations[n]
	if !ok {
		return
	}
	want := n.WantWriteReady()

	if reg.combined {
		if reg.readSource != nil {
			l.host.RemoveSource(reg.readSource)
		}
		events := FDReadable
		if want {
			events |= FDWritable
		}
		src, err := l.host.AddFDSource(reg.readFD, events, func(ev FDEvent) { l.dispatchFD(n, reg, ev) })
		if err == nil {
			reg.readSource = src
		}
		return
	}

	if !reg.hasWrite {
		return
	}
	if want && reg.writeSource == nil {
		src, err := l.host.AddFDSource(reg.writeFD, FDWritable, func(ev FDEvent) { l.dispatchFD(n, reg, ev) })
		if err == nil {
			reg.writeSource = src
		}
	} else if !want && reg.writeSource != nil {
		l.host.RemoveSource(reg.writeSource)
		reg.writeSource = nil
	}
}

// EnqueueTimer registers a host timer source, firing callback once after
// delay elapses.
func (l *ExternalLoop) EnqueueTimer(delay time.Duration, callback func()) TimerID {
	id := l.nextTimerID
	l.nextTimerID++

	src, err := l.host.AddTimer(delay, func() {
		delete(l.timerSources, id)
		callback()
	})
	if err != nil {
		logWarn(l.logger, "timer", "failed to register host timer", err, nil)
		return id
	}
	l.timerSources[id] = src
	return id
}

// CancelTimer removes a pending timer's host source. Cancelling an
// unknown or already-fired id is a no-op.
func (l *ExternalLoop) CancelTimer(id TimerID) {
	src, ok := l.timerSources[id]
	if !ok {
		return
	}
	l.host.RemoveSource(src)
	delete(l.timerSources, id)
}

// WatchChild registers a one-shot exit watch for w's pid.
func (l *ExternalLoop) WatchChild(w *ProcessWatcher) error {
	if _, exists := l.children[w.pid]; exists {
		return ErrAlreadyInLoop
	}
	l.children[w.pid] = w
	l.watcherPID[w.Notifier] = w.pid
	w.host = l
	return nil
}

// UnwatchChild removes a previously registered child watch.
func (l *ExternalLoop) UnwatchChild(w *ProcessWatcher) {
	if l.children[w.pid] != w {
		return
	}
	l.detachOne(w.Notifier)
}

// LoopOnce reaps any exited watched children, then runs one host
// iteration. The host owns dispatch internally, so the fd-ready count it
// returns to callers of this adapter is always 0; timeout is accepted for
// interface parity but is not forwarded, since RunIteration has no
// timeout parameter of its own.
func (l *ExternalLoop) LoopOnce(timeout *time.Duration) (int, error) {
	reapExitedChildren(l.children, l.watcherPID)
	if err := l.host.RunIteration(); err != nil {
		return 0, err
	}
	return 0, nil
}

// LoopForever calls LoopOnce(nil) repeatedly until LoopStop is called.
func (l *ExternalLoop) LoopForever() error {
	l.stopRequested = false
	for !l.stopRequested {
		if _, err := l.LoopOnce(nil); err != nil {
			return err
		}
	}
	return nil
}

// LoopStop clears the loop-forever sentinel.
func (l *ExternalLoop) LoopStop() {
	l.stopRequested = true
}

// Close is a no-op: ExternalLoop owns no resources of its own beyond the
// sources it registered with host, which callers remove via Remove.
func (l *ExternalLoop) Close() error {
	return nil
}
