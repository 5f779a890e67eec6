package ftp

import "fmt"

// The error taxonomy of the command/data core. Every fallible operation in
// the state machine yields one of these (or a plain I/O error) and is
// consumed at its call site: parse, sequence and path errors produce a reply
// and keep the control connection alive, I/O errors are fatal to the owning
// connection only.

// ParseError is a malformed command line.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Msg
}

// SequenceError is a well-formed command received in the wrong mode state,
// e.g. RETR with no data connection declared.
type SequenceError struct {
	Verb string
	Msg  string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("bad sequence of commands: %s: %s", e.Verb, e.Msg)
}

// PathError is a path that escapes the session root or cannot be resolved.
type PathError struct {
	Path string
	Msg  string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q: %s", e.Path, e.Msg)
}
