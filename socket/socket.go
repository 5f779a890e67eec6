// Package socket wraps the raw non-blocking socket syscalls the reactor
// multiplexes. Everything here works on plain file descriptors so that one
// epoll instance can watch listeners, control channels and data channels
// alike.
package socket

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock reports that a non-blocking read or write found no readiness.
// It is not a failure: the caller re-arms the same interest and retries on
// the next readiness event.
var ErrWouldBlock = errors.New("socket: operation would block")

func sockaddr(addr *net.TCPAddr) (*unix.SockaddrInet4, error) {
	ip := addr.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("socket: not an IPv4 address: %v", addr.IP)
	}
	sa := &unix.SockaddrInet4{Port: addr.Port}
	copy(sa.Addr[:], ip)
	return sa, nil
}

// Listen opens a non-blocking IPv4 listener and returns its fd and the port
// actually bound (useful with port 0).
func Listen(host string, port int) (fd, boundPort int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, 0, err
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, 0, err
	}

	sa, err := sockaddr(&net.TCPAddr{IP: net.ParseIP(host), Port: port})
	if err != nil {
		unix.Close(fd)
		return -1, 0, err
	}
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, 0, err
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, 0, err
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return -1, 0, err
	}
	return fd, bound.(*unix.SockaddrInet4).Port, nil
}

// Accept takes one pending connection off a listener, already non-blocking.
func Accept(fd int) (int, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return -1, ErrWouldBlock
	}
	if err != nil {
		return -1, err
	}
	return nfd, nil
}

// Dial performs a blocking IPv4 connect with a send timeout, then switches
// the socket to non-blocking mode for the reactor. It is meant to be called
// from the short-lived PORT worker, never from the reactor goroutine.
func Dial(addr *net.TCPAddr, timeout time.Duration) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		unix.Close(fd)
		return -1, err
	}

	sa, err := sockaddr(addr)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err = unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("could not establish active connection: %v", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Read reads at most len(p) bytes. io.EOF means orderly shutdown by the peer.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		switch err {
		case nil:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Write writes at most len(p) bytes. Short writes are expected and handled
// by the caller re-arming writable interest.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Close releases the descriptor.
func Close(fd int) error {
	return unix.Close(fd)
}
