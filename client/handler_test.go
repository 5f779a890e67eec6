package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/evftp/evftp/config"
	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/reactor"
	"github.com/evftp/evftp/registry"
	"github.com/evftp/evftp/socket"
	"github.com/evftp/evftp/utils"
)

// socketPair returns two connected non-blocking stream sockets.
func socketPair(t *testing.T) (a, b int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	assert.NoError(t, err)
	assert.NoError(t, unix.SetNonblock(fds[0], true))
	assert.NoError(t, unix.SetNonblock(fds[1], true))
	return fds[0], fds[1]
}

// A transfer attached to the data connection before the 150 has fully left
// the control socket would let payload bytes race the acknowledgement. The
// control socket is plugged up here, so the deferred action has no flush to
// hide behind: it must stay armed until the last reply byte is written.
func TestDeferredFiresOnlyAfterFullFlush(t *testing.T) {
	storager, err := utils.NewStoragerFromString("memory:///t")
	assert.NoError(t, err)
	re, err := reactor.New()
	assert.NoError(t, err)
	defer re.Close()
	reg := registry.New()
	h := NewHandler(re, reg, &config.ServerSettings{}, storager, nil, nil)

	ca, cb := socketPair(t)
	defer unix.Close(ca)
	defer unix.Close(cb)
	da, db := socketPair(t)
	defer unix.Close(da)
	defer unix.Close(db)

	c := NewControlConn(ca, "t")
	tok := reg.Add(c)
	dc := &PassiveDataConn{fd: da, Owner: tok}
	c.Data = reg.Add(dc)

	c.Response.Reset(ftp.StatusFileStatusOK, "File status okay; about to open data connection.")
	assert.NoError(t, c.Response.Attach(ftp.Deferred{Kind: ftp.DeferredSendBuffer}))

	// Fill the control socket so the reply cannot flush at all.
	junk := make([]byte, 64*1024)
	for {
		_, err := socket.Write(ca, junk)
		if err == socket.ErrWouldBlock {
			break
		}
		assert.NoError(t, err)
	}

	assert.Nil(t, h.controlWrite(tok, c))
	assert.Nil(t, dc.Transfer)
	assert.Equal(t, ftp.ErrDeferredArmed, c.Response.Attach(ftp.Deferred{Kind: ftp.DeferredClose}))

	// Drain the peer and let partial flushes through; the fire closure only
	// appears once Advance reports the buffer empty.
	var got strings.Builder
	buf := make([]byte, 64*1024)
	var fire func()
	for i := 0; i < 1000 && fire == nil; i++ {
		for {
			n, err := socket.Read(cb, buf)
			if err == socket.ErrWouldBlock {
				break
			}
			assert.NoError(t, err)
			got.Write(buf[:n])
		}
		assert.Nil(t, dc.Transfer)
		fire = h.controlWrite(tok, c)
	}
	assert.NotNil(t, fire)
	assert.Nil(t, dc.Transfer)

	for {
		n, err := socket.Read(cb, buf)
		if err == socket.ErrWouldBlock {
			break
		}
		assert.NoError(t, err)
		got.Write(buf[:n])
	}
	assert.True(t, strings.HasSuffix(got.String(),
		"150 File status okay; about to open data connection.\r\n"))

	fire()
	assert.NotNil(t, dc.Transfer)
}
