package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingResponseFlush(t *testing.T) {
	var r PendingResponse
	assert.False(t, r.Pending())

	r.Reset(StatusOK, "OK")
	assert.True(t, r.Pending())
	assert.Equal(t, "200 OK\r\n", string(r.Remaining()))

	// Partial writes move the window without touching the tail.
	assert.False(t, r.Advance(4))
	assert.Equal(t, "OK\r\n", string(r.Remaining()))
	assert.True(t, r.Advance(4))
	assert.False(t, r.Pending())
}

func TestPendingResponseResetDropsUnflushed(t *testing.T) {
	var r PendingResponse
	r.Reset(StatusOK, "first")
	r.Reset(StatusActionNotTaken, "second")
	assert.Equal(t, "550 second\r\n", string(r.Remaining()))
}

func TestDeferredAttach(t *testing.T) {
	var r PendingResponse
	r.Reset(StatusFileStatusOK, "about to open data connection")

	err := r.Attach(Deferred{Kind: DeferredSendFile, Path: "file1"})
	assert.NoError(t, err)

	// A second attach before the first fires is refused, never dropped.
	err = r.Attach(Deferred{Kind: DeferredClose})
	assert.Equal(t, ErrDeferredArmed, err)

	d := r.TakeDeferred()
	assert.Equal(t, DeferredSendFile, d.Kind)
	assert.Equal(t, "file1", d.Path)

	// Taking clears the slot.
	assert.Equal(t, DeferredNone, r.TakeDeferred().Kind)
	assert.NoError(t, r.Attach(Deferred{Kind: DeferredClose}))
}
