package aio

import (
	"os"
	"time"
)

// fdRegistration records how a Notifier's handle(s) are installed in the
// multiplexer, so notifierWantWriteReady and detach can submit the right
// deltas without re-deriving them from the Notifier's (possibly already
// mutated) state.
type fdRegistration struct {
	readFD, writeFD   int
	hasRead, hasWrite bool
	combined          bool
}

// PollLoop implements Loop using a readiness multiplexer (epoll on Linux,
// kqueue on Darwin) over a set of fds with per-fd interest masks, grounded
// on the teacher's FastPoller-driving Loop in loop.go but single-threaded
// throughout.
type PollLoop struct {
	mp multiplexer

	notifiers     []*Notifier
	registrations map[*Notifier]*fdRegistration
	fdNotifier    map[int]*Notifier

	timers *TimerQueue

	children   map[int]*ProcessWatcher
	watcherPID map[*Notifier]int
	sigchld    chan os.Signal

	state         loopState
	stopRequested bool
	inLoopOnce    bool
	inDispatch    bool

	logger Logger
}

// NewPollLoop constructs a PollLoop backed by the platform's native
// multiplexer.
func NewPollLoop(opts ...PollLoopOption) (*PollLoop, error) {
	var cfg pollLoopConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	mp, err := newMultiplexer()
	if err != nil {
		return nil, wrapf(err, "aio: creating multiplexer")
	}

	logger := cfg.logger
	if logger == nil {
		logger = getGlobalLogger()
	}

	return &PollLoop{
		mp:            mp,
		registrations: make(map[*Notifier]*fdRegistration),
		fdNotifier:    make(map[int]*Notifier),
		timers:        NewTimerQueue(),
		children:      make(map[int]*ProcessWatcher),
		watcherPID:    make(map[*Notifier]int),
		sigchld:       watchChildSignal(),
		logger:        logger,
	}, nil
}

// Add registers n (and its descendants) with the loop.
func (l *PollLoop) Add(n *Notifier) error {
	if n.host != nil {
		return ErrAlreadyInLoop
	}
	return l.attach(n)
}

// Remove unregisters n (and its descendants).
func (l *PollLoop) Remove(n *Notifier) {
	if n.host != l {
		return
	}
	l.detach(n)
}

func (l *PollLoop) attach(n *Notifier) error {
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

func (l *PollLoop) detach(n *Notifier) {
	n.walk(func(v *Notifier) {
		l.detachOne(v)
	})
}

func (l *PollLoop) attachOne(v *Notifier) error {
	// A fresh registration starts a fresh dispatch history.
	v.removedDuringDispatch = false

	rf, hasR := v.ReadHandle().Fileno()
	wf, hasW := v.WriteHandle().WriteFileno()

	if !hasR && !hasW {
		// No fd to register (e.g. a ProcessWatcher's embedded Notifier
		// reached via AddChild rather than WatchChild); track membership
		// only.
		v.host = l
		return nil
	}

	reg := &fdRegistration{readFD: rf, writeFD: wf, hasRead: hasR, hasWrite: hasW}
	reg.combined = hasR && hasW && rf == wf

	switch {
	case reg.combined:
		if err := l.mp.add(rf, true, v.WantWriteReady()); err != nil {
			return err
		}
		l.fdNotifier[rf] = v
	default:
		if hasR {
			if err := l.mp.add(rf, true, false); err != nil {
				return err
			}
			l.fdNotifier[rf] = v
		}
		if hasW {
			if err := l.mp.add(wf, false, v.WantWriteReady()); err != nil {
				if hasR {
					l.mp.remove(rf)
					delete(l.fdNotifier, rf)
				}
				return err
			}
			l.fdNotifier[wf] = v
		}
	}

	l.registrations[v] = reg
	v.host = l
	l.notifiers = append(l.notifiers, v)
	return nil
}

func (l *PollLoop) detachOne(v *Notifier) {
	if pid, ok := l.watcherPID[v]; ok {
		delete(l.children, pid)
		delete(l.watcherPID, v)
	}

	if reg, ok := l.registrations[v]; ok {
		if reg.combined {
			l.mp.remove(reg.readFD)
			delete(l.fdNotifier, reg.readFD)
		} else {
			if reg.hasRead {
				l.mp.remove(reg.readFD)
				delete(l.fdNotifier, reg.readFD)
			}
			if reg.hasWrite {
				l.mp.remove(reg.writeFD)
				delete(l.fdNotifier, reg.writeFD)
			}
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

// notifierWantWriteReady implements reactorHost.
func (l *PollLoop) notifierWantWriteReady(n *Notifier) {
	reg, ok := l.registrations[n]
	if !ok {
		return
	}
	if reg.combined {
		l.mp.modify(reg.readFD, true, n.WantWriteReady())
		return
	}
	if reg.hasWrite {
		l.mp.modify(reg.writeFD, false, n.WantWriteReady())
	}
}

// EnqueueTimer delegates to the loop's TimerQueue.
func (l *PollLoop) EnqueueTimer(delay time.Duration, callback func()) TimerID {
	return l.timers.Enqueue(delay, callback)
}

// CancelTimer delegates to the loop's TimerQueue.
func (l *PollLoop) CancelTimer(id TimerID) {
	l.timers.Cancel(id)
}

// WatchChild registers a one-shot exit watch for w's pid.
func (l *PollLoop) WatchChild(w *ProcessWatcher) error {
	if _, exists := l.children[w.pid]; exists {
		return ErrAlreadyInLoop
	}
	l.children[w.pid] = w
	l.watcherPID[w.Notifier] = w.pid
	w.host = l
	return nil
}

// UnwatchChild removes a previously registered child watch.
func (l *PollLoop) UnwatchChild(w *ProcessWatcher) {
	if l.children[w.pid] != w {
		return
	}
	l.detachOne(w.Notifier)
}

// LoopOnce waits up to timeout (or forever if nil), dispatches ready fds
// and expired timers, and returns the fd-ready count.
func (l *PollLoop) LoopOnce(timeout *time.Duration) (int, error) {
	if l.state == stateClosed {
		return 0, ErrLoopStopped
	}
	if l.inLoopOnce {
		return 0, ErrReentrantLoopOnce
	}
	l.inLoopOnce = true
	defer func() { l.inLoopOnce = false }()

	timeoutMs := -1
	if timeout != nil {
		timeoutMs = int(timeout.Milliseconds())
	}
	if deadline, ok := l.timers.NextDeadline(); ok {
		remainMs := int(time.Until(deadline) / time.Millisecond)
		if remainMs < 0 {
			remainMs = 0
		}
		if timeoutMs < 0 || remainMs < timeoutMs {
			timeoutMs = remainMs
		}
	}

	ready := make(map[int]readyMask)
	readyCount := 0

	l.state = stateSleeping
	if len(l.fdNotifier) == 0 {
		readyCount = 0
		l.sleepZeroFD(timeoutMs)
	} else {
		n, err := l.mp.wait(timeoutMs, func(fd int, mask readyMask) {
			ready[fd] = mask
		})
		if err != nil {
			l.state = stateRunning
			logError(l.logger, "poll", "multiplexer wait failed", err, nil)
			return 0, err
		}
		readyCount = n
	}
	l.state = stateRunning

	reapExitedChildren(l.children, l.watcherPID)

	l.inDispatch = true
	snapshot := append([]*Notifier(nil), l.notifiers...)
	for _, v := range snapshot {
		if v.removedDuringDispatch || v.host != l {
			continue
		}
		reg, ok := l.registrations[v]
		if !ok {
			continue
		}

		var readMask, writeMask readyMask
		if reg.combined {
			m := ready[reg.readFD]
			readMask, writeMask = m, m
		} else {
			if reg.hasRead {
				readMask = ready[reg.readFD]
			}
			if reg.hasWrite {
				writeMask = ready[reg.writeFD]
			}
		}

		if readMask&(readyReadable|readyHangup) != 0 {
			v.onReadReady()
		}
		if v.removedDuringDispatch || v.host != l {
			continue
		}
		wantWrite := writeMask&readyWritable != 0 || (writeMask&readyHangup != 0 && v.WantWriteReady())
		if wantWrite && v.onWriteReady != nil {
			v.onWriteReady()
		}
	}
	l.inDispatch = false

	l.timers.FireExpired(time.Now())

	l.state = stateAwake
	return readyCount, nil
}

func (l *PollLoop) sleepZeroFD(timeoutMs int) {
	if timeoutMs < 0 {
		<-l.sigchld
		return
	}
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-l.sigchld:
	case <-timer.C:
	}
}

// LoopForever calls LoopOnce(nil) repeatedly until LoopStop is called.
func (l *PollLoop) LoopForever() error {
	l.stopRequested = false
	for !l.stopRequested {
		if _, err := l.LoopOnce(nil); err != nil {
			return err
		}
	}
	return nil
}

// LoopStop clears the loop-forever sentinel.
func (l *PollLoop) LoopStop() {
	l.stopRequested = true
}

// PostPoll dispatches against the given ready fds without itself calling
// wait, for integration into an externally driven poll loop.
func (l *PollLoop) PostPoll(ready map[int]readyMask) {
	l.inDispatch = true
	snapshot := append([]*Notifier(nil), l.notifiers...)
	for _, v := range snapshot {
		if v.removedDuringDispatch || v.host != l {
			continue
		}
		reg, ok := l.registrations[v]
		if !ok {
			continue
		}
		var readMask, writeMask readyMask
		if reg.combined {
			m := ready[reg.readFD]
			readMask, writeMask = m, m
		} else {
			if reg.hasRead {
				readMask = ready[reg.readFD]
			}
			if reg.hasWrite {
				writeMask = ready[reg.writeFD]
			}
		}
		if readMask&(readyReadable|readyHangup) != 0 {
			v.onReadReady()
		}
		if v.removedDuringDispatch || v.host != l {
			continue
		}
		wantWrite := writeMask&readyWritable != 0 || (writeMask&readyHangup != 0 && v.WantWriteReady())
		if wantWrite && v.onWriteReady != nil {
			v.onWriteReady()
		}
	}
	l.inDispatch = false
}

// Close releases the loop's multiplexer fd and signal registration. It
// does not close any registered Notifier's handles.
func (l *PollLoop) Close() error {
	if l.state == stateClosed {
		return nil
	}
	l.state = stateClosed
	stopWatchChildSignal(l.sigchld)
	if err := l.mp.close(); err != nil {
		logWarn(l.logger, "poll", "error closing multiplexer", err, nil)
		return err
	}
	return nil
}
