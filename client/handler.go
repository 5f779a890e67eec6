package client

import (
	"io"
	"net"

	"github.com/beyondstorage/go-storage/v4/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/evftp/evftp/config"
	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/metrics"
	"github.com/evftp/evftp/reactor"
	"github.com/evftp/evftp/registry"
	"github.com/evftp/evftp/socket"
	"github.com/evftp/evftp/transfer"
)

// Handler drives the per-connection state machines. It runs on the reactor
// goroutine for every readiness event; the only other goroutine touching
// connection state is the short-lived PORT worker, and it does so through
// the same token-addressed registry visits.
type Handler struct {
	reactor  *reactor.Reactor
	registry *registry.Registry
	storager types.Storager
	setting  *config.ServerSettings

	passiveTransferFactory func(listenHost string, portRange *config.PortRange) (fd, port int, err error)
	activeTransferFactory  func(addr *net.TCPAddr) (fd int, err error)
}

// NewHandler wires the state machine to its collaborators.
func NewHandler(r *reactor.Reactor, reg *registry.Registry, setting *config.ServerSettings,
	storager types.Storager,
	passive func(string, *config.PortRange) (int, int, error),
	active func(*net.TCPAddr) (int, error),
) *Handler {
	return &Handler{
		reactor:                r,
		registry:               reg,
		storager:               storager,
		setting:                setting,
		passiveTransferFactory: passive,
		activeTransferFactory:  active,
	}
}

// Dispatch routes one readiness event to the connection registered under its
// token. The slot lock is held while the variant mutates; work that must
// reacquire registry locks (teardown, deferred payload attach) runs after
// the visit, through the returned continuation.
func (h *Handler) Dispatch(ev reactor.Event) {
	var after func()
	h.registry.Update(ev.Token, func(c registry.Conn) registry.Conn {
		switch conn := c.(type) {
		case *ControlConn:
			after = h.controlEvent(ev, conn)
			return conn
		case *PassiveListener:
			return h.listenerEvent(ev, conn, &after)
		case *ActiveDataConn:
			after = h.dataEvent(ev, conn.FD(), conn.Owner, conn.Transfer)
			return conn
		case *PassiveDataConn:
			after = h.dataEvent(ev, conn.FD(), conn.Owner, conn.Transfer)
			return conn
		}
		return c
	})
	if after != nil {
		after()
	}
}

func (h *Handler) controlEvent(ev reactor.Event, c *ControlConn) func() {
	t := ev.Token
	switch {
	case ev.Readable:
		return h.controlRead(t, c)
	case ev.Writable:
		return h.controlWrite(t, c)
	case ev.Closed:
		return func() { h.teardownControl(t) }
	}
	return nil
}

// controlRead consumes exactly one readiness event's worth of bytes. There
// is no cross-read buffering: a line that does not fit the command buffer in
// one read is fatal to the control channel.
func (h *Handler) controlRead(t registry.Token, c *ControlConn) func() {
	buf := make([]byte, ftp.MaxCommandSize)
	n, err := socket.Read(c.fd, buf)
	if err == socket.ErrWouldBlock {
		h.armRead(t, c)
		return nil
	}
	if err != nil {
		if err == io.EOF {
			zap.L().Debug("control connection closed by peer", zap.String("id", c.id))
		} else {
			zap.L().Error("control read error", zap.String("id", c.id), zap.Error(err))
		}
		return func() { h.teardownControl(t) }
	}
	if n == len(buf) {
		zap.L().Error("control line exceeds the command buffer, closing",
			zap.String("id", c.id), zap.Int("limit", ftp.MaxCommandSize))
		return func() { h.teardownControl(t) }
	}

	line := buf[:n]
	zap.L().Debug("receive command", zap.String("id", c.id), zap.ByteString("line", line))

	cmd, err := ftp.ParseCommand(line)
	if err != nil {
		c.Response.Reset(ftp.StatusSyntaxErrorNotRecognised, err.Error())
		h.armWrite(t, c)
		return nil
	}

	desc := commandsMap[cmd.Verb]
	if !desc.Open && c.loginUser == "" {
		c.Response.Reset(ftp.StatusNotLoggedIn, "Please login with USER and PASS")
		h.armWrite(t, c)
		return nil
	}

	desc.Fn(h, t, c, cmd.Param)
	return nil
}

// controlWrite flushes the pending response. Only once the buffer is fully
// on the wire does the attached deferred action fire; that ordering is what
// guarantees the client observes the 1xx acknowledgement before any data
// traffic starts.
func (h *Handler) controlWrite(t registry.Token, c *ControlConn) func() {
	if !c.Response.Pending() {
		h.armRead(t, c)
		return nil
	}

	n, err := socket.Write(c.fd, c.Response.Remaining())
	if err == socket.ErrWouldBlock {
		h.armWrite(t, c)
		return nil
	}
	if err != nil {
		zap.L().Error("control write error", zap.String("id", c.id), zap.Error(err))
		return func() { h.teardownControl(t) }
	}
	if !c.Response.Advance(n) {
		h.armWrite(t, c)
		return nil
	}

	d := c.Response.TakeDeferred()
	switch d.Kind {
	case ftp.DeferredNone:
		h.armRead(t, c)
		return nil
	case ftp.DeferredClose:
		return func() { h.teardownControl(t) }
	default:
		fire := deferredFire{
			ctrl: t,
			fd:   c.fd,
			id:   c.id,
			data: c.Data,
			home: c.home,
			cwd:  c.path,
			d:    d,
		}
		return func() { h.fireDeferred(fire) }
	}
}

// deferredFire is the control-channel snapshot a deferred action runs with.
type deferredFire struct {
	ctrl registry.Token
	fd   int
	id   string
	data registry.Token
	home string
	cwd  string
	d    ftp.Deferred
}

// fireDeferred runs after a 150 reply is fully flushed: it resolves the
// path, builds the payload and attaches it to the linked data connection.
// Failures become 5xx replies on the control channel; the data link stays so
// the client may retry.
func (h *Handler) fireDeferred(f deferredFire) {
	var (
		tr  transfer.Transfer
		err error
	)
	switch f.d.Kind {
	case ftp.DeferredSendBuffer:
		tr, err = h.listingPayload(f.home, f.cwd, f.d.Path)
	case ftp.DeferredSendFile:
		var p string
		if p, _, err = resolve(f.home, f.cwd, f.d.Path); err == nil {
			tr, err = transfer.NewFileStream(p, h.storager)
		}
	case ftp.DeferredRecvFile:
		var p string
		if p, _, err = resolve(f.home, f.cwd, f.d.Path); err == nil {
			tr = transfer.NewUploadSink(p, h.storager)
		}
	}
	if err != nil {
		zap.L().Debug("deferred payload failed", zap.String("id", f.id), zap.Error(err))
		h.reply(f.ctrl, ftp.StatusActionNotTaken, err.Error())
		return
	}

	attached := h.registry.Update(f.data, func(c registry.Conn) registry.Conn {
		switch dc := c.(type) {
		case *PassiveListener:
			// Client has not connected yet; the transfer waits on the
			// listener and moves over at accept.
			dc.Pending = tr
			return dc
		case *ActiveDataConn:
			dc.Transfer = tr
			h.armData(f.data, dc.fd, tr)
			return dc
		case *PassiveDataConn:
			dc.Transfer = tr
			h.armData(f.data, dc.fd, tr)
			return dc
		}
		return c
	})
	if !attached {
		h.reply(f.ctrl, ftp.StatusCannotOpenDataConnection, "Can't open data connection.")
		return
	}

	// Back to reading commands; the transfer proceeds on its own events.
	h.reactor.Defer(reactor.Action{FD: f.fd, Token: f.ctrl, Interest: reactor.Readable})
}

// listenerEvent accepts the single connection a PASV listener exists for and
// converts the variant in place, so the owner's data link keeps its token.
func (h *Handler) listenerEvent(ev reactor.Event, l *PassiveListener, after *func()) registry.Conn {
	t := ev.Token
	nfd, err := socket.Accept(l.fd)
	if err == socket.ErrWouldBlock {
		h.reactor.Defer(reactor.Action{FD: l.fd, Token: t, Interest: reactor.Readable})
		return l
	}
	if err != nil {
		zap.L().Error("passive accept error", zap.Error(err))
		owner := l.Owner
		*after = func() { h.teardownData(t, owner) }
		return l
	}

	_ = h.reactor.Deregister(l.fd)
	_ = socket.Close(l.fd)

	dc := &PassiveDataConn{fd: nfd, Owner: l.Owner, Transfer: l.Pending}
	in := reactor.None
	if dc.Transfer != nil {
		in = interestFor(dc.Transfer)
	}
	if err := h.reactor.Register(nfd, t, in); err != nil {
		zap.L().Error("passive data registration failed", zap.Error(err))
		_ = socket.Close(nfd)
		owner := l.Owner
		*after = func() { h.teardownData(t, owner) }
	}
	return dc
}

// dataEvent advances a data-role connection by one transfer step.
func (h *Handler) dataEvent(ev reactor.Event, fd int, owner registry.Token, tr transfer.Transfer) func() {
	t := ev.Token
	if tr == nil {
		if ev.Closed {
			return func() { h.teardownData(t, owner) }
		}
		// Connected but no payload attached yet: the acknowledgement is
		// still in flight. The attach re-arms us.
		return nil
	}

	done, err := tr.Step(fd)
	if err != nil {
		zap.L().Error("transfer error", zap.Error(err))
		metrics.TransfersTotal.WithLabelValues("error").Inc()
		return func() { h.teardownData(t, owner) }
	}
	if done {
		return func() { h.completeData(t, owner, tr) }
	}
	h.reactor.Defer(reactor.Action{FD: fd, Token: t, Interest: interestFor(tr)})
	return nil
}

// completeData finishes an exhausted transfer: close and unregister the data
// connection, clear the owner's link and queue its closing reply.
func (h *Handler) completeData(t, owner registry.Token, tr transfer.Transfer) {
	h.removeData(t)

	metrics.TransfersTotal.WithLabelValues("ok").Inc()
	metrics.TransferredBytes.Add(float64(transferredBytes(tr)))

	h.registry.Update(owner, func(c registry.Conn) registry.Conn {
		ctrl, ok := c.(*ControlConn)
		if !ok || ctrl.Data != t {
			// The link was already handed to a newer data connection.
			return c
		}
		ctrl.Data = 0
		ctrl.Response.Reset(ftp.StatusClosingDataConn, "Closing data connection.")
		h.armWrite(owner, ctrl)
		return ctrl
	})
}

// teardownData is the failure path: the data connection dies alone, the
// owner's link is cleared and its last reply left untouched, so the client
// can retry with a fresh PORT or PASV.
func (h *Handler) teardownData(t, owner registry.Token) {
	h.removeData(t)
	h.registry.Update(owner, func(c registry.Conn) registry.Conn {
		if ctrl, ok := c.(*ControlConn); ok && ctrl.Data == t {
			ctrl.Data = 0
		}
		return c
	})
}

func (h *Handler) removeData(t registry.Token) {
	c := h.registry.Remove(t)
	if c == nil {
		return
	}
	err := multierr.Append(h.reactor.Deregister(c.FD()), socket.Close(c.FD()))
	if err != nil {
		zap.L().Debug("data teardown", zap.Error(err))
	}
}

// teardownControl destroys a control connection and cascades to its linked
// data connection, whatever state that is in.
func (h *Handler) teardownControl(t registry.Token) {
	c := h.registry.Remove(t)
	if c == nil {
		return
	}
	ctrl := c.(*ControlConn)

	err := multierr.Append(h.reactor.Deregister(ctrl.fd), socket.Close(ctrl.fd))
	if ctrl.Data != 0 {
		if dc := h.registry.Remove(ctrl.Data); dc != nil {
			err = multierr.Combine(err, h.reactor.Deregister(dc.FD()), socket.Close(dc.FD()))
		}
	}
	if err != nil {
		zap.L().Debug("control teardown", zap.String("id", ctrl.id), zap.Error(err))
	}

	metrics.OpenConnections.Dec()
	zap.L().Debug("control connection closed", zap.String("id", ctrl.id))
}

// reply resets a control connection's response off the normal dispatch path
// and queues a flush.
func (h *Handler) reply(t registry.Token, code int, message string) {
	h.registry.Update(t, func(c registry.Conn) registry.Conn {
		if ctrl, ok := c.(*ControlConn); ok {
			ctrl.Response.Reset(code, message)
			h.armWrite(t, ctrl)
		}
		return c
	})
}

func (h *Handler) armRead(t registry.Token, c *ControlConn) {
	h.reactor.Defer(reactor.Action{FD: c.fd, Token: t, Interest: reactor.Readable})
}

func (h *Handler) armWrite(t registry.Token, c *ControlConn) {
	h.reactor.Defer(reactor.Action{FD: c.fd, Token: t, Interest: reactor.Writable})
}

func (h *Handler) armData(t registry.Token, fd int, tr transfer.Transfer) {
	h.reactor.Defer(reactor.Action{FD: fd, Token: t, Interest: interestFor(tr)})
}

func interestFor(tr transfer.Transfer) reactor.Interest {
	if tr.Direction() == transfer.Upload {
		return reactor.Readable
	}
	return reactor.Writable
}

func transferredBytes(tr transfer.Transfer) int64 {
	switch x := tr.(type) {
	case *transfer.BufferPayload:
		return int64(x.Sent())
	case *transfer.FileStream:
		return x.Offset()
	case *transfer.UploadSink:
		return x.Received()
	}
	return 0
}
