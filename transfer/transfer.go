// Package transfer holds the payload of a data connection and drains or
// fills it one bounded chunk per readiness event. Chunking is what gives the
// server its backpressure: a slow reader throttles the transfer naturally
// instead of forcing the payload into memory.
package transfer

import (
	"github.com/evftp/evftp/socket"
)

// ChunkSize bounds the bytes moved per readiness event.
const ChunkSize = 8 * 1024

// Direction tells the state machine which readiness to arm the data socket
// for.
type Direction int

const (
	// Download sends server bytes to the client (writable interest).
	Download Direction = iota
	// Upload receives client bytes (readable interest).
	Upload
)

// Transfer is the tagged payload attached to a data connection.
//
// Step advances by at most one chunk in response to one readiness event and
// reports done when the payload is exhausted (download) or the peer sent EOF
// and the sink is persisted (upload). A short read or write is normal: the
// caller simply re-arms the same interest.
type Transfer interface {
	Step(fd int) (done bool, err error)
	Direction() Direction
}

// BufferPayload is an in-memory payload, used for directory listings.
type BufferPayload struct {
	buf []byte
	off int
}

func NewBufferPayload(p []byte) *BufferPayload {
	return &BufferPayload{buf: p}
}

// Remaining is the number of unsent bytes.
func (b *BufferPayload) Remaining() int {
	return len(b.buf) - b.off
}

// Sent is the number of bytes already on the wire.
func (b *BufferPayload) Sent() int {
	return b.off
}

func (b *BufferPayload) Direction() Direction {
	return Download
}

func (b *BufferPayload) Step(fd int) (bool, error) {
	if b.off >= len(b.buf) {
		return true, nil
	}
	chunk := b.buf[b.off:]
	if len(chunk) > ChunkSize {
		chunk = chunk[:ChunkSize]
	}
	n, err := socket.Write(fd, chunk)
	if err == socket.ErrWouldBlock {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b.off += n
	return b.off >= len(b.buf), nil
}
