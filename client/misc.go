package client

import (
	"go.uber.org/zap"

	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/registry"
)

func (h *Handler) handleNOOP(t registry.Token, c *ControlConn, param string) {
	c.Response.Reset(ftp.StatusOK, "OK")
	h.armWrite(t, c)
}

func (h *Handler) handleSYST(t registry.Token, c *ControlConn, param string) {
	c.Response.Reset(ftp.StatusSystemType, "UNIX Type: L8")
	h.armWrite(t, c)
}

func (h *Handler) handleTYPE(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	switch param {
	case "I":
		c.Response.Reset(ftp.StatusOK, "Type set to binary")
	case "A":
		c.Response.Reset(ftp.StatusOK, "Type set to ASCII")
	default:
		c.Response.Reset(ftp.StatusSyntaxErrorNotRecognised, "Not understood")
	}
}

// handleQUIT defers the close behind the goodbye, so the reply reaches the
// client before the socket goes away.
func (h *Handler) handleQUIT(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	c.Response.Reset(ftp.StatusClosingControlConn, "Goodbye")
	if err := c.Response.Attach(ftp.Deferred{Kind: ftp.DeferredClose}); err != nil {
		zap.L().Error("attach close", zap.String("id", c.id), zap.Error(err))
	}
}
