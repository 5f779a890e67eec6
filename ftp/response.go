package ftp

import (
	"errors"
	"fmt"
)

// DeferredKind enumerates the actions that may run after a reply buffer has
// been fully flushed. Keeping this a closed value set (instead of a stored
// closure) keeps control-channel transitions enumerable and testable.
type DeferredKind int

const (
	// DeferredNone means nothing is scheduled.
	DeferredNone DeferredKind = iota

	// DeferredSendBuffer attaches an in-memory payload (a directory
	// listing) to the linked data connection.
	DeferredSendBuffer

	// DeferredSendFile opens Path for download and attaches the stream to
	// the linked data connection.
	DeferredSendFile

	// DeferredRecvFile arms the linked data connection to receive an
	// upload stored at Path.
	DeferredRecvFile

	// DeferredClose tears the control connection down once the reply is
	// out (QUIT).
	DeferredClose
)

// Deferred is the pending-action value attached to a control connection.
// It never runs before its reply buffer is fully written. Path is the raw
// command argument; resolution against the session root happens when the
// action fires, so a traversal is reported on the control channel after the
// 150 acknowledgement, the same way an open failure is.
type Deferred struct {
	Kind DeferredKind
	Path string
}

// ErrDeferredArmed reports an Attach on a response whose previous deferred
// action has not fired yet. Attaching twice is a programming error in the
// state machine and is never silently dropped.
var ErrDeferredArmed = errors.New("ftp: deferred action already attached")

// PendingResponse is the outgoing reply buffer of a control connection plus
// an optional deferred action, run exactly once after the buffer is fully
// flushed.
type PendingResponse struct {
	buf      []byte
	off      int
	deferred Deferred
}

// Reset overwrites any unflushed bytes with a fresh `<code> <message>` line.
func (p *PendingResponse) Reset(code int, message string) {
	p.buf = []byte(fmt.Sprintf("%d %s\r\n", code, message))
	p.off = 0
}

// Attach arms a deferred action. The previous one must have fired already.
func (p *PendingResponse) Attach(d Deferred) error {
	if p.deferred.Kind != DeferredNone {
		return ErrDeferredArmed
	}
	p.deferred = d
	return nil
}

// TakeDeferred hands out the armed action and clears it.
func (p *PendingResponse) TakeDeferred() Deferred {
	d := p.deferred
	p.deferred = Deferred{}
	return d
}

// Pending reports whether unflushed bytes remain.
func (p *PendingResponse) Pending() bool {
	return p.off < len(p.buf)
}

// Remaining is the yet-unflushed tail of the buffer.
func (p *PendingResponse) Remaining() []byte {
	return p.buf[p.off:]
}

// Advance records n bytes written to the socket and reports whether the
// buffer is now fully flushed.
func (p *PendingResponse) Advance(n int) bool {
	p.off += n
	return !p.Pending()
}
