package client

import (
	"github.com/beyondstorage/go-storage/v4/types"
	"go.uber.org/zap"

	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/registry"
)

// Handle the "USER" command.
func (h *Handler) handleUSER(t registry.Token, c *ControlConn, param string) {
	c.user = param
	c.Response.Reset(ftp.StatusUserOK, "User name okay, need password.")
	h.armWrite(t, c)
}

// Handle the "PASS" command.
func (h *Handler) handlePASS(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	if c.user == "" {
		c.Response.Reset(ftp.StatusBadCommandSequence, "User is expected before Pass")
		return
	}

	defer func() {
		c.user = ""
	}()

	username := c.user
	password := param

	if v, ok := h.setting.Users[username]; ok {
		if username == "anonymous" || password == v {
			c.loginUser = username
			c.home = h.userHome(username)
			c.path = "/"
			c.Response.Reset(ftp.StatusUserLoggedIn, "Password ok, continue")
			zap.L().Debug("user logged in",
				zap.String("id", c.id), zap.String("user", username))
			return
		}
	}

	c.Response.Reset(ftp.StatusNotLoggedIn, "Invalid username or password")
}

// userHome picks the session root. With home-per-user enabled each account
// gets its own subtree and the root is created on first login.
func (h *Handler) userHome(username string) string {
	if !h.setting.HomePerUser {
		return "/"
	}
	home := "/" + username
	if direr, ok := h.storager.(types.Direr); ok {
		if _, err := direr.CreateDir(home); err != nil {
			zap.L().Warn("create home dir", zap.String("home", home), zap.Error(err))
		}
	}
	return home
}
