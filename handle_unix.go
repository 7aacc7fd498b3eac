//go:build linux || darwin

package aio

import "golang.org/x/sys/unix"

// closeFD closes a file descriptor.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD performs a single nonblocking read. EAGAIN/EWOULDBLOCK is returned
// verbatim so callers can treat it as "no progress", not "closed".
func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeFD performs a single nonblocking write.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// setNonblock puts fd into nonblocking mode.
func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// killPID sends signal to pid.
func killPID(pid int, signal int) error {
	return unix.Kill(pid, unix.Signal(signal))
}
