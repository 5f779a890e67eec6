// Package reactor implements the readiness event loop the whole server runs
// on: one epoll instance, a deferred (re)registration queue drained before
// every poll, and a coalescing eventfd wake for completions that originate
// off the polling goroutine.
package reactor

import (
	"encoding/binary"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/evftp/evftp/registry"
)

// Interest is the readiness a connection is armed for.
type Interest int

const (
	// None parks a descriptor in the poller without any armed readiness.
	// A later re-arm action gives it a real interest.
	None     Interest = 0
	Readable Interest = 1
	Writable Interest = 2
)

// wakeToken marks the internal eventfd. The registry never issues token 0,
// so it cannot collide with a connection.
const wakeToken registry.Token = 0

// Event is one readiness notification delivered to the dispatcher.
type Event struct {
	Token    registry.Token
	Readable bool
	Writable bool
	Closed   bool // peer hang-up or poller-level error
}

// Action is a deferred re-registration: after the current dispatch cycle,
// arm fd (registered under Token) for Interest. Workers use this to request
// a control-channel flush without ever touching epoll themselves.
type Action struct {
	FD       int
	Token    registry.Token
	Interest Interest
}

// Reactor owns the epoll descriptor. Connection registrations are one-shot:
// a consumed readiness event must be explicitly re-armed, which keeps every
// state transition an explicit step of the dispatch loop. The registration
// token rides in the epoll user data, so waiting returns tokens directly.
type Reactor struct {
	epfd   int
	wakefd int

	wakePending *atomic.Bool

	mu      sync.Mutex
	actions []Action

	pollBuf []unix.EpollEvent
}

// New creates the epoll instance and its wake eventfd.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}

	r := &Reactor{
		epfd:        epfd,
		wakefd:      wakefd,
		wakePending: atomic.NewBool(false),
		pollBuf:     make([]unix.EpollEvent, 128),
	}

	// The eventfd stays level-armed for the life of the reactor, under the
	// reserved wake token.
	err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeToken),
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func epollEvents(in Interest) uint32 {
	ev := uint32(unix.EPOLLONESHOT)
	if in&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if in&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (r *Reactor) ctl(op, fd int, t registry.Token, in Interest) error {
	return unix.EpollCtl(r.epfd, op, fd, &unix.EpollEvent{
		Events: epollEvents(in),
		Fd:     int32(uint32(t)),
		Pad:    int32(uint32(t >> 32)),
	})
}

func eventToken(ev *unix.EpollEvent) registry.Token {
	return registry.Token(uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32)
}

// Register arms fd under t for one readiness event. A registration failure
// is fatal to the affected connection only; the caller tears it down.
func (r *Reactor) Register(fd int, t registry.Token, in Interest) error {
	return r.ctl(unix.EPOLL_CTL_ADD, fd, t, in)
}

// Rearm re-arms an already-registered fd for one more readiness event.
func (r *Reactor) Rearm(fd int, t registry.Token, in Interest) error {
	return r.ctl(unix.EPOLL_CTL_MOD, fd, t, in)
}

// Deregister removes fd from the poller. Teardown paths may ignore the
// error: closing the descriptor removes it from epoll anyway.
func (r *Reactor) Deregister(fd int) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Defer queues a re-arm to apply before the next poll. Thread-safe.
func (r *Reactor) Defer(a Action) {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
}

// Wake prompts an extra dispatch cycle. Any number of Wake calls arriving
// before the reactor next observes the eventfd coalesce into a single
// wake-up: the atomic flag suppresses redundant eventfd writes, and the
// eventfd read in Poll drains whatever accumulated in one go.
func (r *Reactor) Wake() error {
	if !r.wakePending.CAS(false, true) {
		return nil
	}
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, err := unix.Write(r.wakefd, one[:])
	return err
}

// Poll applies all deferred actions, waits for readiness, and fills events.
// It returns when the kernel reported something, which may be an empty batch
// if only the wake fired (the point of a wake is the action drain above).
func (r *Reactor) Poll(events []Event) (int, error) {
	out := 0
	for _, a := range r.drainActions() {
		if err := r.Rearm(a.FD, a.Token, a.Interest); err != nil {
			// The descriptor may be gone already; if a connection is
			// still registered under this token, the dispatcher tears
			// it down through a synthesized closed event.
			zap.L().Debug("re-arm failed", zap.Int("fd", a.FD), zap.Error(err))
			if out < len(events) {
				events[out] = Event{Token: a.Token, Closed: true}
				out++
			}
		}
	}
	if out > 0 {
		return out, nil
	}

	for {
		n, err := unix.EpollWait(r.epfd, r.pollBuf, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}

		for i := 0; i < n && out < len(events); i++ {
			ep := &r.pollBuf[i]
			t := eventToken(ep)
			if t == wakeToken {
				r.drainWake()
				continue
			}
			events[out] = Event{
				Token:    t,
				Readable: ep.Events&unix.EPOLLIN != 0,
				Writable: ep.Events&unix.EPOLLOUT != 0,
				Closed:   ep.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0,
			}
			out++
		}
		if n > 0 {
			return out, nil
		}
	}
}

func (r *Reactor) drainActions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	acts := r.actions
	r.actions = nil
	return acts
}

func (r *Reactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakefd, buf[:])
	r.wakePending.Store(false)
}

// Close releases the poller and wake descriptors.
func (r *Reactor) Close() error {
	err1 := unix.Close(r.wakefd)
	err2 := unix.Close(r.epfd)
	if err1 != nil {
		return err1
	}
	return err2
}
