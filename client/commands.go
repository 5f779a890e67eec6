package client

import (
	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/registry"
)

// CommandDescription defines which function should be used and if it should
// be open to anyone or only logged in users.
type CommandDescription struct {
	Open bool // Open to clients without auth.
	Fn   func(h *Handler, t registry.Token, c *ControlConn, param string)
}

var commandsMap map[string]*CommandDescription

func init() {
	// Shared between server instances; the commands do not behave
	// differently between them.
	// ref: https://tools.ietf.org/html/rfc5797

	commandsMap = make(map[string]*CommandDescription)

	// Authentication.
	commandsMap[ftp.USER] = &CommandDescription{Fn: (*Handler).handleUSER, Open: true}
	commandsMap[ftp.PASS] = &CommandDescription{Fn: (*Handler).handlePASS, Open: true}

	// Misc.
	commandsMap[ftp.NOOP] = &CommandDescription{Fn: (*Handler).handleNOOP, Open: true}
	commandsMap[ftp.SYST] = &CommandDescription{Fn: (*Handler).handleSYST, Open: true}
	commandsMap[ftp.TYPE] = &CommandDescription{Fn: (*Handler).handleTYPE}

	// File access.
	commandsMap[ftp.RETR] = &CommandDescription{Fn: (*Handler).handleRETR}
	commandsMap[ftp.STOR] = &CommandDescription{Fn: (*Handler).handleSTOR}
	commandsMap[ftp.DELE] = &CommandDescription{Fn: (*Handler).handleDELE}
	commandsMap[ftp.RNFR] = &CommandDescription{Fn: (*Handler).handleRNFR}
	commandsMap[ftp.RNTO] = &CommandDescription{Fn: (*Handler).handleRNTO}

	// Directory handling.
	commandsMap[ftp.CWD] = &CommandDescription{Fn: (*Handler).handleCWD}
	commandsMap[ftp.CDUP] = &CommandDescription{Fn: (*Handler).handleCDUP}
	commandsMap[ftp.PWD] = &CommandDescription{Fn: (*Handler).handlePWD}
	commandsMap[ftp.LIST] = &CommandDescription{Fn: (*Handler).handleLIST}
	commandsMap[ftp.MKD] = &CommandDescription{Fn: (*Handler).handleMKD}
	commandsMap[ftp.RMD] = &CommandDescription{Fn: (*Handler).handleRMD}

	// Connection handling.
	commandsMap[ftp.PASV] = &CommandDescription{Fn: (*Handler).handlePASV}
	commandsMap[ftp.PORT] = &CommandDescription{Fn: (*Handler).handlePORT}
	commandsMap[ftp.QUIT] = &CommandDescription{Fn: (*Handler).handleQUIT, Open: true}
}
