package kit

import (
	"bufio"
	"net"
)

// Conn is a test-side connection. Control replies are read through one
// persistent buffered reader: the server may flush two replies back to back
// (a 150 followed by a 226) and a throwaway reader would swallow the second
// one with its buffer.
type Conn struct {
	net.Conn

	r *bufio.Reader
}

func wrapConn(c net.Conn) *Conn {
	return &Conn{Conn: c, r: bufio.NewReader(c)}
}
