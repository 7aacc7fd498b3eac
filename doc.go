// Package aio provides a single-threaded, cooperative asynchronous I/O
// reactor: a [Loop] that multiplexes readiness of OS handles, dispatches
// ready events to registered [Notifier] instances, schedules one-shot
// timers via [TimerQueue], and reaps child processes through
// [ProcessWatcher].
//
// # Architecture
//
// [Loop] is an interface with two concrete backends: [PollLoop], a portable
// multiplexer-based backend (epoll on Linux, kqueue on Darwin), and
// [ExternalLoop], which registers sources with a host-provided main loop
// instead of driving its own multiplexer.
//
// [Notifier] is the base event sink: it owns one or two [Handle] values,
// exposes read/write readiness callbacks, and composes into parent/child
// trees that share loop membership. [BufferedStream] extends a Notifier
// with send/receive byte queues and a pull-parser consumer callback.
// [ProcessWatcher] extends a Notifier (with no handle) to watch a single
// pid for exit.
//
// # Concurrency
//
// The reactor is single-threaded and cooperative: callbacks run only on
// the goroutine that calls [PollLoop.LoopOnce] or drives the host loop for
// [ExternalLoop], and must not block. There is no cross-thread submission
// API; all mutation (adding/removing notifiers, changing write interest,
// enqueuing timers) happens from within callbacks or before the loop is
// started.
//
// # Usage
//
//	loop, err := aio.NewPollLoop()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	n, err := aio.NewNotifier(aio.WithHandle(aio.NewHandle(fd)), aio.WithOnReadReady(func() {
//	    fmt.Println("readable")
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := loop.Add(n); err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    if _, err := loop.LoopOnce(nil); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package aio
