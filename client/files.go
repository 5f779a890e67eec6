package client

import (
	"fmt"

	"github.com/beyondstorage/go-storage/v4/types"

	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/registry"
)

// RETR and STOR acknowledge first and move bytes later: the reply carries a
// deferred action that resolves the path and attaches the payload only after
// the 150 is fully on the wire.

func (h *Handler) handleRETR(t registry.Token, c *ControlConn, param string) {
	h.startTransfer(t, c, ftp.RETR, ftp.Deferred{Kind: ftp.DeferredSendFile, Path: param})
}

func (h *Handler) handleSTOR(t registry.Token, c *ControlConn, param string) {
	h.startTransfer(t, c, ftp.STOR, ftp.Deferred{Kind: ftp.DeferredRecvFile, Path: param})
}

func (h *Handler) startTransfer(t registry.Token, c *ControlConn, verb string, d ftp.Deferred) {
	defer h.armWrite(t, c)

	if c.Data == 0 {
		err := &ftp.SequenceError{Verb: verb, Msg: "PORT or PASV must be issued first"}
		c.Response.Reset(ftp.StatusBadCommandSequence, err.Error())
		return
	}
	c.Response.Reset(ftp.StatusFileStatusOK, "File status okay; about to open data connection.")
	if err := c.Response.Attach(d); err != nil {
		c.Response.Reset(ftp.StatusBadCommandSequence, "Another transfer is pending")
	}
}

func (h *Handler) handleDELE(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	real, virtual, err := resolve(c.home, c.path, param)
	if err == nil {
		err = h.storager.Delete(real)
	}
	if err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("Couldn't delete %s: %v", virtual, err))
		return
	}
	c.Response.Reset(ftp.StatusFileOK, fmt.Sprintf("Removed file %s", virtual))
}

func (h *Handler) handleRNFR(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	real, virtual, err := resolve(c.home, c.path, param)
	if err == nil {
		_, err = h.getFileInfo(real)
	}
	if err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("Couldn't access %s: %v", virtual, err))
		return
	}
	c.Response.Reset(ftp.StatusFileActionPending, "Sure, give me a target")
	c.rnfr = real
}

func (h *Handler) handleRNTO(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	real, _, err := resolve(c.home, c.path, param)
	if err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, err.Error())
		return
	}
	mover, ok := h.storager.(types.Mover)
	if !ok {
		c.Response.Reset(ftp.StatusCommandNotImplemented, "this type of storage is not support rename")
		return
	}
	if c.rnfr == "" {
		c.Response.Reset(ftp.StatusBadCommandSequence, "RNFR is expected before RNTO")
		return
	}

	if err := mover.Move(c.rnfr, real); err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("Couldn't rename file: %v", err))
		return
	}

	c.Response.Reset(ftp.StatusFileOK, "Done !")
	c.rnfr = ""
}
