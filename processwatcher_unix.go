//go:build linux || darwin

package aio

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// watchChildSignal returns a channel fed SIGCHLD notifications, used by
// PollLoop to wake its zero-fd sleep promptly when a watched child exits
// rather than waiting out the full timeout.
func watchChildSignal() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGCHLD)
	return ch
}

func stopWatchChildSignal(ch chan os.Signal) {
	signal.Stop(ch)
}

// reapExitedChildren drains every exited child via a non-blocking wait4,
// firing and removing the matching ProcessWatcher. A reaped pid with no
// registered watcher is discarded. It must run before fd dispatch so a
// short-lived child's exit is never delayed behind fd events.
func reapExitedChildren(children map[int]*ProcessWatcher, watcherPID map[*Notifier]int) {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		w, ok := children[pid]
		if !ok {
			continue
		}
		delete(children, pid)
		delete(watcherPID, w.Notifier)
		w.fire(int(status))
	}
}
