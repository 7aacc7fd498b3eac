//go:build darwin

package aio

import (
	"golang.org/x/sys/unix"
)

// kqueueMultiplexer is the Darwin multiplexer backend.
type kqueueMultiplexer struct {
	kq       int
	eventBuf [256]unix.Kevent_t
	// interest tracks which filters are currently registered per fd, so
	// modify only submits the deltas kqueue needs.
	interest map[int]readyMask
}

func newMultiplexer() (multiplexer, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueMultiplexer{kq: kq, interest: make(map[int]readyMask)}, nil
}

func kevents(fd int, readable, writable bool, flags uint16) []unix.Kevent_t {
	var evs []unix.Kevent_t
	if readable {
		evs = append(evs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if writable {
		evs = append(evs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return evs
}

func (m *kqueueMultiplexer) add(fd int, readable, writable bool) error {
	evs := kevents(fd, readable, writable, unix.EV_ADD|unix.EV_ENABLE)
	if len(evs) > 0 {
		if _, err := unix.Kevent(m.kq, evs, nil, nil); err != nil {
			return err
		}
	}
	var want readyMask
	if readable {
		want |= readyReadable
	}
	if writable {
		want |= readyWritable
	}
	m.interest[fd] = want
	return nil
}

func (m *kqueueMultiplexer) modify(fd int, readable, writable bool) error {
	old := m.interest[fd]
	var want readyMask
	if readable {
		want |= readyReadable
	}
	if writable {
		want |= readyWritable
	}

	if old&readyReadable != 0 && want&readyReadable == 0 {
		unix.Kevent(m.kq, kevents(fd, true, false, unix.EV_DELETE), nil, nil)
	}
	if old&readyWritable != 0 && want&readyWritable == 0 {
		unix.Kevent(m.kq, kevents(fd, false, true, unix.EV_DELETE), nil, nil)
	}
	if want&readyReadable != 0 && old&readyReadable == 0 {
		if _, err := unix.Kevent(m.kq, kevents(fd, true, false, unix.EV_ADD|unix.EV_ENABLE), nil, nil); err != nil {
			return err
		}
	}
	if want&readyWritable != 0 && old&readyWritable == 0 {
		if _, err := unix.Kevent(m.kq, kevents(fd, false, true, unix.EV_ADD|unix.EV_ENABLE), nil, nil); err != nil {
			return err
		}
	}
	m.interest[fd] = want
	return nil
}

func (m *kqueueMultiplexer) remove(fd int) error {
	old, ok := m.interest[fd]
	if !ok {
		return nil
	}
	unix.Kevent(m.kq, kevents(fd, old&readyReadable != 0, old&readyWritable != 0, unix.EV_DELETE), nil, nil)
	delete(m.interest, fd)
	return nil
}

func (m *kqueueMultiplexer) wait(timeoutMs int, fn func(fd int, mask readyMask)) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(m.kq, nil, m.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	// kqueue reports read and write filters as separate events; merge them
	// so fn sees each fd once with its combined readiness.
	merged := make(map[int]readyMask, n)
	var order []int
	for i := 0; i < n; i++ {
		kev := m.eventBuf[i]
		fd := int(kev.Ident)
		var mask readyMask
		switch kev.Filter {
		case unix.EVFILT_READ:
			mask |= readyReadable
		case unix.EVFILT_WRITE:
			mask |= readyWritable
		}
		if kev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 {
			mask |= readyHangup
		}
		if _, seen := merged[fd]; !seen {
			order = append(order, fd)
		}
		merged[fd] |= mask
	}
	for _, fd := range order {
		fn(fd, merged[fd])
	}
	return len(order), nil
}

func (m *kqueueMultiplexer) close() error {
	return unix.Close(m.kq)
}
