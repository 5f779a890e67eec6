// Package registry owns the mapping from connection token to connection
// state. It is the single strong owner of every live connection: the reactor
// and any worker goroutine get at a connection only through a token-addressed,
// lock-scoped visit, never through a retained handle. Removing a connection
// therefore can never leave a dangling reference behind.
package registry

import (
	"sync"
)

// Token is an opaque handle to one registered connection. Tokens are drawn
// from a monotonic counter and never reused while any reference to them is
// live. The zero Token is never issued and means "no connection".
type Token uint64

// Conn is the minimal contract the registry needs from a stored connection.
// The concrete tagged variants live in the client package.
type Conn interface {
	FD() int
}

type slot struct {
	mu   sync.Mutex
	conn Conn
}

// Registry maps tokens to connections.
//
// Lock discipline: the map lock is taken only to resolve or insert a token,
// then released; the per-connection lock is held for the duration of one
// Update. The order is always map-then-connection. The dispatcher does make
// non-blocking socket calls while a slot lock is held; anything that can
// block (the PORT worker's connect) runs with no lock held at all.
type Registry struct {
	mu    sync.Mutex
	next  uint64
	slots map[Token]*slot
}

func New() *Registry {
	return &Registry{
		slots: make(map[Token]*slot),
	}
}

// Add stores a connection under a fresh token.
func (r *Registry) Add(c Conn) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	t := Token(r.next)
	r.slots[t] = &slot{conn: c}
	return t
}

// Update visits the connection registered under t while holding its lock.
// fn receives the current state and returns the state to store back, which
// lets a handler convert a connection variant in place (a passive listener
// becoming a data channel). It returns false without calling fn when t is
// not registered.
func (r *Registry) Update(t Token, fn func(Conn) Conn) bool {
	r.mu.Lock()
	s, ok := r.slots[t]
	r.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		// Removed between the map lookup and the slot lock.
		return false
	}
	s.conn = fn(s.conn)
	return true
}

// Remove unregisters t and returns the stored connection, or nil when t is
// unknown. Any in-flight Update on the same connection completes first.
func (r *Registry) Remove(t Token) Conn {
	r.mu.Lock()
	s, ok := r.slots[t]
	delete(r.slots, t)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conn
	s.conn = nil
	return c
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
