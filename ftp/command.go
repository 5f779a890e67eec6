package ftp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	USER = "USER"
	PASS = "PASS"
	NOOP = "NOOP"
	SYST = "SYST"
	TYPE = "TYPE"
	RETR = "RETR"
	STOR = "STOR"
	DELE = "DELE"
	RNFR = "RNFR"
	RNTO = "RNTO"
	CWD  = "CWD"
	CDUP = "CDUP"
	PWD  = "PWD"
	LIST = "LIST"
	MKD  = "MKD"
	RMD  = "RMD"
	PASV = "PASV"
	PORT = "PORT"
	QUIT = "QUIT"
)

// MaxCommandSize is the largest control line the server accepts in one read.
// A read that fills this buffer is fatal to the control connection: the line
// is never partially parsed.
const MaxCommandSize = 1024

var knownVerbs = map[string]bool{
	USER: true, PASS: true, NOOP: true, SYST: true, TYPE: true,
	RETR: true, STOR: true, DELE: true, RNFR: true, RNTO: true,
	CWD: true, CDUP: true, PWD: true, LIST: true, MKD: true, RMD: true,
	PASV: true, PORT: true, QUIT: true,
}

// Command is one parsed control line.
type Command struct {
	Verb  string // upper-cased verb
	Param string // raw argument, may be empty
}

// ParseCommand decodes exactly one `VERB [SP argument] CRLF` line out of one
// readiness event's worth of bytes. There is no buffering of a command split
// across reads: a fragment is a parse error like any other malformed line.
func ParseCommand(line []byte) (Command, error) {
	s := string(line)
	// Tolerate a bare LF terminator so interactive netcat sessions work.
	if !strings.HasSuffix(s, "\n") {
		return Command{}, &ParseError{Msg: "line not terminated by CRLF"}
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")

	if s == "" {
		return Command{}, &ParseError{Msg: "empty command line"}
	}

	verb, param := s, ""
	if i := strings.Index(s, " "); i >= 0 {
		verb, param = s[:i], strings.TrimSpace(s[i+1:])
	}
	verb = strings.ToUpper(verb)

	if !knownVerbs[verb] {
		return Command{}, &ParseError{Msg: fmt.Sprintf("unknown command %q", verb)}
	}
	return Command{Verb: verb, Param: param}, nil
}

// ParseHostPort decodes the PORT wire form `h1,h2,h3,h4,p1,p2` into a TCP
// address with port p1*256+p2.
func ParseHostPort(param string) (*net.TCPAddr, error) {
	parts := strings.Split(param, ",")
	if len(parts) != 6 {
		return nil, &ParseError{Msg: fmt.Sprintf("expected 6 comma-separated bytes, got %d", len(parts))}
	}

	b := make([]int, 6)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return nil, &ParseError{Msg: fmt.Sprintf("invalid byte value %q", p)}
		}
		b[i] = v
	}

	return &net.TCPAddr{
		IP:   net.IPv4(byte(b[0]), byte(b[1]), byte(b[2]), byte(b[3])),
		Port: b[4]*256 + b[5],
	}, nil
}

// FormatHostPort encodes host and port in PORT wire form, for 227 replies.
func FormatHostPort(host string, port int) string {
	quads := strings.Split(host, ".")
	return fmt.Sprintf("%s,%s,%s,%s,%d,%d", quads[0], quads[1], quads[2], quads[3], port/256, port%256)
}
