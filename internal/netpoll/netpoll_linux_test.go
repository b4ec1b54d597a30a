//go:build linux

package netpoll

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (*FDTransport, *FDTransport) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	a, b := NewFDTransport(fds[0], "a"), NewFDTransport(fds[1], "b")
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestFDTransport(t *testing.T) {
	t.Run("ReadWouldBlock", func(t *testing.T) {
		a, _ := socketpair(t)
		n, err := a.Read(make([]byte, 16))
		assert.Equal(t, 0, n)
		assert.ErrorIs(t, err, ErrWouldBlock)
	})

	t.Run("WritevThenRead", func(t *testing.T) {
		a, b := socketpair(t)
		n, err := a.Writev([][]byte{[]byte("HTTP/1.1 200 OK\r\n\r\n"), []byte("body")})
		require.NoError(t, err)
		assert.Equal(t, 23, n)

		buf := make([]byte, 64)
		n, err = b.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\nbody", string(buf[:n]))
	})

	t.Run("EOFAfterPeerClose", func(t *testing.T) {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
		require.NoError(t, err)
		a := NewFDTransport(fds[0], "a")
		defer a.Close()
		require.NoError(t, unix.Close(fds[1]))

		_, err = a.Read(make([]byte, 8))
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("WritevFillsSocket", func(t *testing.T) {
		a, _ := socketpair(t)
		chunk := make([]byte, 64<<10)
		var err error
		for i := 0; i < 1024 && err == nil; i++ {
			_, err = a.Writev([][]byte{chunk})
		}
		assert.ErrorIs(t, err, ErrWouldBlock)
	})
}

func TestPoller(t *testing.T) {
	t.Run("OneShotReadiness", func(t *testing.T) {
		p, err := NewPoller(8)
		require.NoError(t, err)
		defer p.Close()

		a, b := socketpair(t)
		require.NoError(t, p.Add(a.FD(), EventRead|EventOneShot))

		_, err = b.Writev([][]byte{[]byte("ping")})
		require.NoError(t, err)

		ready, err := p.Wait(time.Second, nil)
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.Equal(t, a.FD(), ready[0].FD)
		assert.True(t, ready[0].Events.Readable())

		// Disarmed until Arm, even though data is still pending.
		ready, err = p.Wait(50*time.Millisecond, nil)
		require.NoError(t, err)
		assert.Empty(t, ready)

		require.NoError(t, p.Arm(a.FD(), EventRead|EventOneShot))
		ready, err = p.Wait(time.Second, nil)
		require.NoError(t, err)
		assert.Len(t, ready, 1)
	})

	t.Run("Writable", func(t *testing.T) {
		p, err := NewPoller(8)
		require.NoError(t, err)
		defer p.Close()

		a, _ := socketpair(t)
		require.NoError(t, p.Add(a.FD(), EventWrite|EventOneShot))
		ready, err := p.Wait(time.Second, nil)
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.True(t, ready[0].Events.Writable())
	})

	t.Run("Hangup", func(t *testing.T) {
		p, err := NewPoller(8)
		require.NoError(t, err)
		defer p.Close()

		a, b := socketpair(t)
		require.NoError(t, p.Add(a.FD(), EventRead|EventOneShot))
		require.NoError(t, b.Shutdown())

		ready, err := p.Wait(time.Second, nil)
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.True(t, ready[0].Events.Hangup())
	})

	t.Run("Wake", func(t *testing.T) {
		p, err := NewPoller(8)
		require.NoError(t, err)
		defer p.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			ready, err := p.Wait(-1, nil)
			assert.NoError(t, err)
			assert.Empty(t, ready)
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, p.Wake())
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Wait did not return after Wake")
		}
	})

	t.Run("RemoveUnknown", func(t *testing.T) {
		p, err := NewPoller(8)
		require.NoError(t, err)
		defer p.Close()
		assert.Error(t, p.Remove(12345))
	})
}

func TestListener(t *testing.T) {
	l, err := Listen("127.0.0.1", 0, 0)
	require.NoError(t, err)
	defer l.Close()

	require.NotZero(t, l.Port())
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(l.Port())), l.Addr())

	_, err = l.Accept()
	assert.ErrorIs(t, err, ErrWouldBlock)

	client, err := net.Dial("tcp", l.Addr())
	require.NoError(t, err)
	defer client.Close()

	var tr *FDTransport
	require.Eventually(t, func() bool {
		tr, err = l.Accept()
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	defer tr.Close()

	assert.Equal(t, client.LocalAddr().String(), tr.RemoteAddr())

	_, err = client.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	var n int
	require.Eventually(t, func() bool {
		n, err = tr.Read(buf)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "GET / HTTP/1.1\r\n\r\n", string(buf[:n]))
}

func TestListenInvalidAddress(t *testing.T) {
	_, err := Listen("not-an-ip", 0, 0)
	assert.Error(t, err)
}
