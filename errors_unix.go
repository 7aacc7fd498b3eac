//go:build linux || darwin

package aio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isTemporary reports whether err represents a transient "no data/space
// available right now" condition (EAGAIN/EWOULDBLOCK) rather than an
// unrecoverable failure. Callers must treat it as a no-op, not a close.
func isTemporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
