package client

import (
	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/registry"
	"github.com/evftp/evftp/transfer"
)

// The connection variants form a closed set: every registered descriptor is
// exactly one of these, and the dispatcher handles each event kind with an
// exhaustive type switch.

// ControlConn is the client's persistent command/response connection.
type ControlConn struct {
	fd int
	id string // session id, for log correlation

	// Response is the pending reply buffer plus its optional deferred
	// action. Workers reset it under the registry slot lock.
	Response ftp.PendingResponse

	// Data links the current data-role connection, 0 when none. A new
	// PORT/PASV overwrites it after tearing down an unconnected
	// predecessor.
	Data registry.Token

	user      string // USER argument awaiting PASS
	loginUser string // authenticated user
	home      string // session root, every path resolves inside it
	path      string // current directory, relative to home
	rnfr      string // rename source pending RNTO
}

func NewControlConn(fd int, id string) *ControlConn {
	return &ControlConn{
		fd:   fd,
		id:   id,
		home: "/",
		path: "/",
	}
}

func (c *ControlConn) FD() int { return c.fd }

// ID is the session id assigned at accept time.
func (c *ControlConn) ID() string { return c.id }

// Path provides the current working directory of the client.
func (c *ControlConn) Path() string {
	return c.path
}

// SetPath changes the current working directory.
func (c *ControlConn) SetPath(path string) {
	c.path = path
}

// ActiveDataConn is a server-dialed data channel, created by the PORT
// worker's successful connect.
type ActiveDataConn struct {
	fd       int
	Owner    registry.Token
	Transfer transfer.Transfer
}

func NewActiveDataConn(fd int, owner registry.Token) *ActiveDataConn {
	return &ActiveDataConn{fd: fd, Owner: owner}
}

func (c *ActiveDataConn) FD() int { return c.fd }

// PassiveDataConn is a client-dialed data channel, converted in place from a
// PassiveListener on accept.
type PassiveDataConn struct {
	fd       int
	Owner    registry.Token
	Transfer transfer.Transfer
}

func (c *PassiveDataConn) FD() int { return c.fd }

// PassiveListener is the single-use listening socket opened by PASV. If the
// deferred payload attach fires before the client's connect is accepted,
// the transfer waits in Pending and moves onto the data channel at accept.
type PassiveListener struct {
	fd      int
	Owner   registry.Token
	Pending transfer.Transfer
}

func NewPassiveListener(fd int, owner registry.Token) *PassiveListener {
	return &PassiveListener{fd: fd, Owner: owner}
}

func (c *PassiveListener) FD() int { return c.fd }
