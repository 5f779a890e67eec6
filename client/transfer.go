package client

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/reactor"
	"github.com/evftp/evftp/registry"
	"github.com/evftp/evftp/socket"
)

// handlePORT spawns the one blocking operation of the server: a worker
// goroutine that dials the client's announced address. No reply is queued
// here; the worker resets the response when the dial settles and wakes the
// poll loop.
func (h *Handler) handlePORT(t registry.Token, c *ControlConn, param string) {
	addr, err := ftp.ParseHostPort(param)
	if err != nil {
		c.Response.Reset(ftp.StatusSyntaxErrorParameters, err.Error())
		h.armWrite(t, c)
		return
	}

	h.dropUnconnectedData(c)

	ctrlFD := c.fd
	go func() {
		fd, err := h.activeTransferFactory(addr)
		if err != nil {
			zap.L().Debug("active dial failed",
				zap.String("id", c.id), zap.Stringer("addr", addr), zap.Error(err))
			h.reply(t, ftp.StatusBadCommandSequence, "Can't open data connection.")
			h.reactor.Wake()
			return
		}

		dataTok := h.registry.Add(NewActiveDataConn(fd, t))
		if err := h.reactor.Register(fd, dataTok, reactor.None); err != nil {
			zap.L().Error("active data registration failed", zap.Error(err))
			h.registry.Remove(dataTok)
			_ = socket.Close(fd)
			h.reply(t, ftp.StatusBadCommandSequence, "Can't open data connection.")
			h.reactor.Wake()
			return
		}

		linked := h.registry.Update(t, func(rc registry.Conn) registry.Conn {
			if ctrl, ok := rc.(*ControlConn); ok {
				ctrl.Data = dataTok
				ctrl.Response.Reset(ftp.StatusOK, "PORT command successful")
				h.reactor.Defer(reactor.Action{FD: ctrlFD, Token: t, Interest: reactor.Writable})
			}
			return rc
		})
		if !linked {
			// Owner vanished while we were dialing.
			h.registry.Remove(dataTok)
			_ = h.reactor.Deregister(fd)
			_ = socket.Close(fd)
		}
		h.reactor.Wake()
	}()
}

// handlePASV opens a single-use listener and announces its address. The
// reply goes out immediately; the accept is just another readiness event.
func (h *Handler) handlePASV(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	h.dropUnconnectedData(c)

	lfd, port, err := h.passiveTransferFactory(h.setting.ListenHost, h.setting.DataPortRange)
	if err != nil {
		zap.L().Error("passive listen failed", zap.Error(err))
		c.Response.Reset(ftp.StatusCannotOpenDataConnection, "Can't open data connection.")
		return
	}

	dataTok := h.registry.Add(NewPassiveListener(lfd, t))
	if err := h.reactor.Register(lfd, dataTok, reactor.Readable); err != nil {
		zap.L().Error("passive listener registration failed", zap.Error(err))
		h.registry.Remove(dataTok)
		_ = socket.Close(lfd)
		c.Response.Reset(ftp.StatusCannotOpenDataConnection, "Can't open data connection.")
		return
	}

	c.Data = dataTok
	c.Response.Reset(ftp.StatusEnteringPASV,
		fmt.Sprintf("Entering Passive Mode (%s).", ftp.FormatHostPort(h.setting.PublicHost, port)))
}

// dropUnconnectedData tears down the linked data-role connection when it
// never reached the transfer stage: a listener nobody connected to, or a
// dialed socket with no payload. A connection mid-transfer keeps running
// unlinked and cleans itself up on completion.
func (h *Handler) dropUnconnectedData(c *ControlConn) {
	if c.Data == 0 {
		return
	}
	prev := c.Data
	c.Data = 0

	unconnected := false
	fd := -1
	h.registry.Update(prev, func(rc registry.Conn) registry.Conn {
		switch conn := rc.(type) {
		case *PassiveListener:
			unconnected = true
			fd = conn.fd
		case *ActiveDataConn:
			if conn.Transfer == nil {
				unconnected = true
				fd = conn.fd
			}
		case *PassiveDataConn:
			if conn.Transfer == nil {
				unconnected = true
				fd = conn.fd
			}
		}
		return rc
	})
	if !unconnected {
		return
	}
	h.registry.Remove(prev)
	_ = h.reactor.Deregister(fd)
	_ = socket.Close(fd)
}
