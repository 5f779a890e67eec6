package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/evftp/evftp/registry"
)

func newPipe(t *testing.T) (r, w int) {
	p := make([]int, 2)
	err := unix.Pipe(p)
	assert.NoError(t, err)
	return p[0], p[1]
}

func TestReadinessDelivery(t *testing.T) {
	re, err := New()
	assert.NoError(t, err)
	defer re.Close()

	rfd, wfd := newPipe(t)
	defer unix.Close(rfd)
	defer unix.Close(wfd)

	tok := registry.Token(42)
	assert.NoError(t, re.Register(rfd, tok, Readable))

	_, err = unix.Write(wfd, []byte("x"))
	assert.NoError(t, err)

	events := make([]Event, 8)
	n, err := re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, tok, events[0].Token)
	assert.True(t, events[0].Readable)
}

func TestTokenSurvivesHighBits(t *testing.T) {
	re, err := New()
	assert.NoError(t, err)
	defer re.Close()

	rfd, wfd := newPipe(t)
	defer unix.Close(rfd)
	defer unix.Close(wfd)

	// A token wider than 32 bits must come back intact.
	tok := registry.Token(1<<40 | 7)
	assert.NoError(t, re.Register(rfd, tok, Readable))

	_, err = unix.Write(wfd, []byte("x"))
	assert.NoError(t, err)

	events := make([]Event, 8)
	n, err := re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, tok, events[0].Token)
}

func TestOneShotNeedsRearm(t *testing.T) {
	re, err := New()
	assert.NoError(t, err)
	defer re.Close()

	rfd, wfd := newPipe(t)
	defer unix.Close(rfd)
	defer unix.Close(wfd)

	tok := registry.Token(7)
	assert.NoError(t, re.Register(rfd, tok, Readable))
	_, err = unix.Write(wfd, []byte("x"))
	assert.NoError(t, err)

	events := make([]Event, 8)
	n, err := re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	// Without a re-arm the data still in the pipe stays silent; only the
	// wake gets the next Poll back.
	go func() {
		time.Sleep(50 * time.Millisecond)
		re.Wake()
	}()
	n, err = re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	// A deferred re-arm delivers the still-pending readiness.
	re.Defer(Action{FD: rfd, Token: tok, Interest: Readable})
	n, err = re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, tok, events[0].Token)
}

func TestWakeCoalesces(t *testing.T) {
	re, err := New()
	assert.NoError(t, err)
	defer re.Close()

	for i := 0; i < 10; i++ {
		assert.NoError(t, re.Wake())
	}

	events := make([]Event, 8)
	n, err := re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	// The wake flag resets, so a later wake still gets through.
	go func() {
		time.Sleep(50 * time.Millisecond)
		re.Wake()
	}()
	n, err = re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFailedRearmSynthesizesClose(t *testing.T) {
	re, err := New()
	assert.NoError(t, err)
	defer re.Close()

	rfd, wfd := newPipe(t)
	tok := registry.Token(9)
	assert.NoError(t, re.Register(rfd, tok, Readable))

	// Close the descriptor behind the poller's back, then ask for a
	// re-arm: the dispatcher must get a closed event to clean up with.
	unix.Close(rfd)
	unix.Close(wfd)
	re.Defer(Action{FD: rfd, Token: tok, Interest: Readable})

	events := make([]Event, 8)
	n, err := re.Poll(events)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, tok, events[0].Token)
	assert.True(t, events[0].Closed)
}
