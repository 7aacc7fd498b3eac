//go:build linux

package aio

import (
	"golang.org/x/sys/unix"
)

// epollMultiplexer is the Linux multiplexer backend.
type epollMultiplexer struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
}

func newMultiplexer() (multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollMultiplexer{epfd: epfd}, nil
}

func epollEvents(readable, writable bool) uint32 {
	var ev uint32
	if readable {
		ev |= unix.EPOLLIN
	}
	if writable {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (m *epollMultiplexer) add(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: epollEvents(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (m *epollMultiplexer) modify(fd int, readable, writable bool) error {
	ev := unix.EpollEvent{Events: epollEvents(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (m *epollMultiplexer) remove(fd int) error {
	err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (m *epollMultiplexer) wait(timeoutMs int, fn func(fd int, mask readyMask)) (int, error) {
	n, err := unix.EpollWait(m.epfd, m.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		ev := m.eventBuf[i]
		var mask readyMask
		if ev.Events&unix.EPOLLIN != 0 {
			mask |= readyReadable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			mask |= readyWritable
		}
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0 {
			mask |= readyHangup
		}
		fn(int(ev.Fd), mask)
	}
	return n, nil
}

func (m *epollMultiplexer) close() error {
	return unix.Close(m.epfd)
}
