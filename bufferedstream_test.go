package aio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func mustSocketpair(t *testing.T) (local, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestBufferedStream_Send_DeclaresWriteInterest(t *testing.T) {
	local, _ := mustSocketpair(t)
	bs, err := NewBufferedStream([]NotifierOption{
		WithHandle(NewHandle(local)),
	}, WithOnIncomingData(func(recv *[]byte, closed bool) bool { return false }))
	require.NoError(t, err)

	require.False(t, bs.WantWriteReady())
	bs.Send([]byte("hello"))
	require.True(t, bs.WantWriteReady())
	require.Equal(t, 5, bs.Pending())
}

func TestBufferedStream_Send_EmptyIsNoOp(t *testing.T) {
	local, _ := mustSocketpair(t)
	bs, err := NewBufferedStream([]NotifierOption{
		WithHandle(NewHandle(local)),
	}, WithOnIncomingData(func(recv *[]byte, closed bool) bool { return false }))
	require.NoError(t, err)

	bs.Send(nil)
	require.False(t, bs.WantWriteReady())
	require.Equal(t, 0, bs.Pending())
}

func TestBufferedStream_HandleReadReady_ConsumesCompleteRecords(t *testing.T) {
	local, peer := mustSocketpair(t)

	var records []string
	bs, err := NewBufferedStream([]NotifierOption{
		WithHandle(NewHandle(local)),
	}, WithOnIncomingData(func(recv *[]byte, closed bool) bool {
		for {
			i := indexByte(*recv, '\n')
			if i < 0 {
				return false
			}
			records = append(records, string((*recv)[:i]))
			*recv = (*recv)[i+1:]
		}
	}))
	require.NoError(t, err)

	_, err = unix.Write(peer, []byte("one\ntwo\nthree"))
	require.NoError(t, err)

	bs.handleReadReady()
	require.Equal(t, []string{"one", "two"}, records)
	require.Equal(t, "three", string(bs.recvbuf))
	require.False(t, bs.Closed())
}

func TestBufferedStream_HandleReadReady_EAGAINIsNoOp(t *testing.T) {
	local, _ := mustSocketpair(t)
	called := false
	bs, err := NewBufferedStream([]NotifierOption{
		WithHandle(NewHandle(local)),
	}, WithOnIncomingData(func(recv *[]byte, closed bool) bool {
		called = true
		return false
	}))
	require.NoError(t, err)

	bs.handleReadReady()
	require.False(t, called, "no data available must not invoke the consumer")
	require.False(t, bs.Closed())
}

func TestBufferedStream_HandleReadReady_HalfClose(t *testing.T) {
	local, peer := mustSocketpair(t)

	var lastClosed bool
	var calls int
	bs, err := NewBufferedStream([]NotifierOption{
		WithHandle(NewHandle(local)),
	}, WithOnIncomingData(func(recv *[]byte, closed bool) bool {
		calls++
		lastClosed = closed
		return false
	}))
	require.NoError(t, err)

	require.NoError(t, unix.Shutdown(peer, unix.SHUT_WR))

	bs.handleReadReady()
	require.True(t, bs.Closed())
	require.True(t, lastClosed)
	require.Equal(t, 1, calls)
}

func TestBufferedStream_HandleWriteReady_WritesAndFiresOnOutgoingEmpty(t *testing.T) {
	local, peer := mustSocketpair(t)

	emptied := false
	bs, err := NewBufferedStream([]NotifierOption{
		WithHandle(NewHandle(local)),
	},
		WithOnIncomingData(func(recv *[]byte, closed bool) bool { return false }),
		WithOnOutgoingEmpty(func() { emptied = true }),
	)
	require.NoError(t, err)

	bs.Send([]byte("payload"))
	bs.handleWriteReady()

	require.Equal(t, 0, bs.Pending())
	require.False(t, bs.WantWriteReady())
	require.True(t, emptied)

	buf := make([]byte, 16)
	n, err := unix.Read(peer, buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf[:n]))
}

func TestBufferedStream_HandleWriteReady_NoOpWhenSendbufEmpty(t *testing.T) {
	local, _ := mustSocketpair(t)
	emptied := false
	bs, err := NewBufferedStream([]NotifierOption{
		WithHandle(NewHandle(local)),
	},
		WithOnIncomingData(func(recv *[]byte, closed bool) bool { return false }),
		WithOnOutgoingEmpty(func() { emptied = true }),
	)
	require.NoError(t, err)

	bs.handleWriteReady()
	require.False(t, emptied)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
