package aio

// reactorHost is the thin feedback interface a Loop backend implements so a
// Notifier can signal interest changes and removal without depending on any
// concrete backend type.
type reactorHost interface {
	// attach registers n and its descendants with this host, setting each
	// notifier's host back-pointer. On error, nothing is left registered.
	attach(n *Notifier) error

	// detach unregisters n (and its descendants) from this host. It is a
	// no-op if n is not currently registered.
	detach(n *Notifier)

	// notifierWantWriteReady is invoked whenever n's want-writeready flag
	// changes while n is registered with this host.
	notifierWantWriteReady(n *Notifier)
}

// Notifier is the base event sink: it owns one or two Handles, exposes
// read/write readiness callbacks, and composes into parent/child trees that
// share loop membership.
type Notifier struct {
	readHandle  *Handle
	writeHandle *Handle

	onReadReady   func()
	onWriteReady  func()
	onChildClosed func(child *Notifier)

	wantWriteReady bool

	parent   *Notifier
	children []*Notifier

	host   reactorHost
	logger Logger

	// removedDuringDispatch is set by detach when called from within a
	// dispatch pass, so the backend can skip further callbacks to this
	// notifier for the remainder of the pass.
	removedDuringDispatch bool
}

// NewNotifier constructs a detached Notifier. Construction fails with
// ErrNoHandle if neither a combined handle nor a read/write pair was
// supplied, or ErrNoReadCallback if no on-read-ready callback is available.
func NewNotifier(opts ...NotifierOption) (*Notifier, error) {
	var cfg notifierConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	n := &Notifier{
		onReadReady:    cfg.onReadReady,
		onWriteReady:   cfg.onWriteReady,
		onChildClosed:  cfg.onChildClosed,
		wantWriteReady: cfg.wantWriteReady,
		logger:         cfg.logger,
	}

	switch {
	case cfg.handle != nil:
		n.readHandle = cfg.handle
		n.writeHandle = cfg.handle
	case cfg.readHandle != nil || cfg.writeHandle != nil:
		n.readHandle = cfg.readHandle
		n.writeHandle = cfg.writeHandle
	default:
		return nil, ErrNoHandle
	}

	if n.onReadReady == nil {
		return nil, ErrNoReadCallback
	}

	return n, nil
}

// ReadHandle returns the notifier's read-direction handle, which may be nil.
func (n *Notifier) ReadHandle() *Handle { return n.readHandle }

// WriteHandle returns the notifier's write-direction handle, which may be nil.
func (n *Notifier) WriteHandle() *Handle { return n.writeHandle }

// WantWriteReady reports the current write-interest flag.
func (n *Notifier) WantWriteReady() bool { return n.wantWriteReady }

// SetWantWriteReady records write interest and, if n is currently
// registered with a Loop, signals that Loop to adjust its interest mask
// immediately.
func (n *Notifier) SetWantWriteReady(want bool) {
	if n.wantWriteReady == want {
		return
	}
	n.wantWriteReady = want
	if n.host != nil {
		n.host.notifierWantWriteReady(n)
	}
}

// Parent returns the notifier's parent, or nil if it is a root.
func (n *Notifier) Parent() *Notifier { return n.parent }

// Children returns the notifier's children in insertion order. The
// returned slice must not be mutated.
func (n *Notifier) Children() []*Notifier { return n.children }

// MemberOf returns the Loop this notifier currently belongs to, or nil if
// it is detached. Used by tests and by Loop implementations to assert the
// single-ownership invariant.
func (n *Notifier) MemberOf() Loop {
	if n.host == nil {
		return nil
	}
	if l, ok := n.host.(Loop); ok {
		return l
	}
	return nil
}

// AddChild attaches child to n. If n is currently registered with a Loop,
// child (and its descendants) are added to that Loop immediately. It fails
// with ErrAlreadyHasParent if child already has a parent, or
// ErrAlreadyInLoop if child already belongs to any Loop.
func (n *Notifier) AddChild(child *Notifier) error {
	if child.parent != nil {
		return ErrAlreadyHasParent
	}
	if child.host != nil {
		return ErrAlreadyInLoop
	}

	child.parent = n
	n.children = append(n.children, child)

	if n.host != nil {
		if err := n.host.attach(child); err != nil {
			n.removeChildLink(child)
			child.parent = nil
			return err
		}
	}
	return nil
}

// RemoveChild detaches child from n. If child is registered with a Loop,
// it (and its descendants) are removed from that Loop.
func (n *Notifier) RemoveChild(child *Notifier) {
	if !n.removeChildLink(child) {
		return
	}
	child.parent = nil
	if child.host != nil {
		host := child.host
		host.detach(child)
	}
}

func (n *Notifier) removeChildLink(child *Notifier) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return true
		}
	}
	return false
}

// handleClosed is invoked on unrecoverable read/write failure. It removes
// the notifier from its parent (propagating an on-child-closed
// notification) or, if it has no parent, from its Loop directly.
func (n *Notifier) handleClosed() {
	if n.parent != nil {
		parent := n.parent
		parent.RemoveChild(n)
		if parent.onChildClosed != nil {
			parent.onChildClosed(n)
		}
		return
	}
	if n.host != nil {
		n.host.detach(n)
	}
}

// walk invokes fn for n and every descendant, depth-first, in child-order.
func (n *Notifier) walk(fn func(*Notifier)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
