package aio

// BufferedStream extends a Notifier with send/receive byte queues and a
// pull-parser consumer callback. The consumer owns
// framing: it is repeatedly invoked on a rewritable receive buffer until it
// reports no progress, which lets it strip complete records while leaving
// partial ones in place.
type BufferedStream struct {
	*Notifier

	sendbuf []byte
	recvbuf []byte
	closed  bool

	onIncomingData  func(recv *[]byte, closed bool) bool
	onOutgoingEmpty func()
}

// NewBufferedStream constructs a BufferedStream. It accepts the same
// handle-related NotifierOptions as NewNotifier, plus stream-specific
// options for the incoming-data consumer and outgoing-empty callback.
func NewBufferedStream(notifierOpts []NotifierOption, streamOpts ...BufferedStreamOption) (*BufferedStream, error) {
	var sc streamConfig
	for _, opt := range streamOpts {
		opt(&sc)
	}

	bs := &BufferedStream{
		onIncomingData:  sc.onIncomingData,
		onOutgoingEmpty: sc.onOutgoingEmpty,
	}

	opts := append([]NotifierOption{}, notifierOpts...)
	opts = append(opts,
		WithOnReadReady(bs.handleReadReady),
		WithOnWriteReady(bs.handleWriteReady),
	)

	n, err := NewNotifier(opts...)
	if err != nil {
		return nil, err
	}
	bs.Notifier = n
	return bs, nil
}

// Send appends data to the outbound queue and, if not already interested,
// declares write interest so the reactor arms the multiplexer for the
// write handle.
func (bs *BufferedStream) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	bs.sendbuf = append(bs.sendbuf, data...)
	if !bs.WantWriteReady() {
		bs.SetWantWriteReady(true)
	}
}

// Closed reports whether a half-close has been observed on the read side.
func (bs *BufferedStream) Closed() bool { return bs.closed }

// Pending reports the number of bytes still queued to be sent.
func (bs *BufferedStream) Pending() int { return len(bs.sendbuf) }

// handleReadReady performs a single nonblocking chunked read, followed by
// the drain loop.
func (bs *BufferedStream) handleReadReady() {
	if !bs.closed {
		var chunk [chunkSize]byte
		n, err := bs.ReadHandle().Read(chunk[:])
		switch {
		case err != nil:
			if isTemporary(err) {
				// EAGAIN: spurious wakeup, nothing to do this pass.
				return
			}
			bs.handleClosed()
			return
		case n == 0:
			// Half-close: one more consumer invocation below, then close.
			bs.closed = true
		default:
			bs.recvbuf = append(bs.recvbuf, chunk[:n]...)
		}
	}

	bs.drain()

	if bs.closed {
		bs.handleClosed()
	}
}

// drain repeatedly invokes the consumer until it reports no progress. When
// the stream is not closed, an empty recvbuf also terminates the loop;
// when closed, at least one invocation with closed=true always happens,
// and the consumer's return value alone governs whether it runs again.
func (bs *BufferedStream) drain() {
	if bs.onIncomingData == nil {
		return
	}
	for {
		again := bs.onIncomingData(&bs.recvbuf, bs.closed)
		if !again {
			return
		}
		if len(bs.recvbuf) == 0 && !bs.closed {
			return
		}
	}
}

// handleWriteReady performs a single nonblocking chunked write from the
// front of sendbuf.
func (bs *BufferedStream) handleWriteReady() {
	if len(bs.sendbuf) == 0 {
		// Should not occur per the invariant that want_writeready implies
		// a non-empty sendbuf; treat as a no-op rather than writing zero
		// bytes.
		return
	}

	end := len(bs.sendbuf)
	if end > chunkSize {
		end = chunkSize
	}

	n, err := bs.WriteHandle().Write(bs.sendbuf[:end])
	if err != nil {
		if isTemporary(err) {
			return
		}
		bs.handleClosed()
		return
	}
	if n == 0 {
		bs.handleClosed()
		return
	}

	bs.sendbuf = bs.sendbuf[n:]

	if len(bs.sendbuf) == 0 {
		bs.SetWantWriteReady(false)
		if bs.onOutgoingEmpty != nil {
			bs.onOutgoingEmpty()
		}
	}
}
