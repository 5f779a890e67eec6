package socket

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// acceptRetry polls a non-blocking listener until the pending connect lands.
func acceptRetry(t *testing.T, lfd int) int {
	for i := 0; i < 100; i++ {
		fd, err := Accept(lfd)
		if err == ErrWouldBlock {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		assert.NoError(t, err)
		return fd
	}
	t.Fatal("no connection accepted")
	return -1
}

func TestListenAcceptReadWrite(t *testing.T) {
	lfd, port, err := Listen("127.0.0.1", 0)
	assert.NoError(t, err)
	assert.NotEqual(t, 0, port)
	defer Close(lfd)

	peer, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	assert.NoError(t, err)
	defer peer.Close()

	fd := acceptRetry(t, lfd)
	defer Close(fd)

	_, err = peer.Write([]byte("hello"))
	assert.NoError(t, err)

	buf := make([]byte, 16)
	var n int
	for i := 0; i < 100; i++ {
		n, err = Read(fd, buf)
		if err == ErrWouldBlock {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		break
	}
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = Write(fd, []byte("world"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	out := make([]byte, 5)
	_, err = io.ReadFull(peer, out)
	assert.NoError(t, err)
	assert.Equal(t, "world", string(out))
}

func TestReadReportsEOF(t *testing.T) {
	lfd, port, err := Listen("127.0.0.1", 0)
	assert.NoError(t, err)
	defer Close(lfd)

	peer, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	assert.NoError(t, err)

	fd := acceptRetry(t, lfd)
	defer Close(fd)

	assert.NoError(t, peer.Close())

	buf := make([]byte, 16)
	for i := 0; i < 100; i++ {
		_, err = Read(fd, buf)
		if err == ErrWouldBlock {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		break
	}
	assert.Equal(t, io.EOF, err)
}

func TestDial(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer l.Close()

	fd, err := Dial(l.Addr().(*net.TCPAddr), time.Second)
	assert.NoError(t, err)
	Close(fd)

	// Refused connections surface as errors, not hangs.
	l.Close()
	_, err = Dial(l.Addr().(*net.TCPAddr), time.Second)
	assert.Error(t, err)
}
