package aio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeHost is a minimal Loop implementation used to test Notifier's
// parent/child and loop-membership bookkeeping in isolation from any real
// multiplexer.
type fakeHost struct {
	attached []*Notifier
	detached []*Notifier
	wantSeen []*Notifier
}

func (f *fakeHost) attach(n *Notifier) error {
	f.attached = append(f.attached, n)
	n.host = f
	for _, c := range n.children {
		_ = f.attach(c)
	}
	return nil
}

func (f *fakeHost) detach(n *Notifier) {
	f.detached = append(f.detached, n)
	n.host = nil
	for _, c := range n.children {
		f.detach(c)
	}
}

func (f *fakeHost) notifierWantWriteReady(n *Notifier) {
	f.wantSeen = append(f.wantSeen, n)
}

func (f *fakeHost) Add(n *Notifier) error                         { return f.attach(n) }
func (f *fakeHost) Remove(n *Notifier)                             { f.detach(n) }
func (f *fakeHost) EnqueueTimer(time.Duration, func()) TimerID     { return 0 }
func (f *fakeHost) CancelTimer(TimerID)                            {}
func (f *fakeHost) WatchChild(*ProcessWatcher) error               { return nil }
func (f *fakeHost) UnwatchChild(*ProcessWatcher)                   {}
func (f *fakeHost) LoopOnce(*time.Duration) (int, error)           { return 0, nil }
func (f *fakeHost) LoopForever() error                             { return nil }
func (f *fakeHost) LoopStop()                                      {}
func (f *fakeHost) Close() error                                   { return nil }

func mustHandle(t *testing.T) (*Handle, func()) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	return NewReadHandle(fds[0]), func() { unix.Close(fds[0]); unix.Close(fds[1]) }
}

func TestNewNotifier_RequiresHandle(t *testing.T) {
	_, err := NewNotifier(WithOnReadReady(func() {}))
	require.ErrorIs(t, err, ErrNoHandle)
}

func TestNewNotifier_RequiresReadCallback(t *testing.T) {
	h, cleanup := mustHandle(t)
	defer cleanup()
	_, err := NewNotifier(WithHandle(h))
	require.ErrorIs(t, err, ErrNoReadCallback)
}

func TestNotifier_AddChild_PropagatesToLoop(t *testing.T) {
	h1, cleanup1 := mustHandle(t)
	defer cleanup1()
	h2, cleanup2 := mustHandle(t)
	defer cleanup2()

	parent, err := NewNotifier(WithHandle(h1), WithOnReadReady(func() {}))
	require.NoError(t, err)
	child, err := NewNotifier(WithHandle(h2), WithOnReadReady(func() {}))
	require.NoError(t, err)

	host := &fakeHost{}
	require.NoError(t, host.attach(parent))

	require.NoError(t, parent.AddChild(child))
	require.Contains(t, host.attached, child)
	require.Equal(t, parent, child.Parent())
}

func TestNotifier_AddChild_RejectsDoubleParent(t *testing.T) {
	h1, cleanup1 := mustHandle(t)
	defer cleanup1()
	h2, cleanup2 := mustHandle(t)
	defer cleanup2()
	h3, cleanup3 := mustHandle(t)
	defer cleanup3()

	parentA, _ := NewNotifier(WithHandle(h1), WithOnReadReady(func() {}))
	parentB, _ := NewNotifier(WithHandle(h2), WithOnReadReady(func() {}))
	child, _ := NewNotifier(WithHandle(h3), WithOnReadReady(func() {}))

	require.NoError(t, parentA.AddChild(child))
	require.ErrorIs(t, parentB.AddChild(child), ErrAlreadyHasParent)
}

func TestNotifier_RemoveChild_Detaches(t *testing.T) {
	h1, cleanup1 := mustHandle(t)
	defer cleanup1()
	h2, cleanup2 := mustHandle(t)
	defer cleanup2()

	parent, _ := NewNotifier(WithHandle(h1), WithOnReadReady(func() {}))
	child, _ := NewNotifier(WithHandle(h2), WithOnReadReady(func() {}))

	host := &fakeHost{}
	require.NoError(t, host.attach(parent))
	require.NoError(t, parent.AddChild(child))

	parent.RemoveChild(child)
	require.Nil(t, child.Parent())
	require.Contains(t, host.detached, child)
	require.Empty(t, parent.Children())
}

func TestNotifier_SetWantWriteReady_NotifiesHostOnChange(t *testing.T) {
	h, cleanup := mustHandle(t)
	defer cleanup()
	n, _ := NewNotifier(WithHandle(h), WithOnReadReady(func() {}))

	host := &fakeHost{}
	require.NoError(t, host.attach(n))

	n.SetWantWriteReady(true)
	require.Len(t, host.wantSeen, 1)

	n.SetWantWriteReady(true)
	require.Len(t, host.wantSeen, 1, "no-op on unchanged value must not notify the host")
}

func TestNotifier_HandleClosed_WithParent_InvokesOnChildClosed(t *testing.T) {
	h1, cleanup1 := mustHandle(t)
	defer cleanup1()
	h2, cleanup2 := mustHandle(t)
	defer cleanup2()

	var closedChild *Notifier
	parent, _ := NewNotifier(
		WithHandle(h1),
		WithOnReadReady(func() {}),
		WithOnChildClosed(func(c *Notifier) { closedChild = c }),
	)
	child, _ := NewNotifier(WithHandle(h2), WithOnReadReady(func() {}))

	host := &fakeHost{}
	require.NoError(t, host.attach(parent))
	require.NoError(t, parent.AddChild(child))

	child.handleClosed()
	require.Equal(t, child, closedChild)
	require.Nil(t, child.Parent())
}

func TestNotifier_HandleClosed_NoParent_DetachesFromLoop(t *testing.T) {
	h, cleanup := mustHandle(t)
	defer cleanup()
	n, _ := NewNotifier(WithHandle(h), WithOnReadReady(func() {}))

	host := &fakeHost{}
	require.NoError(t, host.attach(n))

	n.handleClosed()
	require.Contains(t, host.detached, n)
}

func TestNotifier_MemberOf(t *testing.T) {
	h, cleanup := mustHandle(t)
	defer cleanup()
	n, _ := NewNotifier(WithHandle(h), WithOnReadReady(func() {}))
	require.Nil(t, n.MemberOf())

	host := &fakeHost{}
	require.NoError(t, host.attach(n))
	require.Equal(t, Loop(host), n.MemberOf())
}
