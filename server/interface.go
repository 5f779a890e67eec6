package server

import (
	"net"

	"github.com/beyondstorage/go-storage/v4/types"

	"github.com/evftp/evftp/config"
)

type Server interface {
	// Start binds the control listener.
	Start()
	// Serve runs the dispatch loop until Stop.
	Serve()
	// Stop stops the server and release the resource.
	Stop()
	// Port return the bound control port.
	Port() int
	// PassiveTransferFactory return a bound single-use data listener and its port.
	PassiveTransferFactory(listenHost string, portRange *config.PortRange) (fd, port int, err error)
	// ActiveTransferFactory dial the address announced by a PORT command.
	ActiveTransferFactory(addr *net.TCPAddr) (fd int, err error)
	// Setting return the server setting
	Setting() *config.ServerSettings
	// Storager return the root storager of the server
	Storager() types.Storager
}
