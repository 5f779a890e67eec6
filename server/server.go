// Package server provides all the tools to build your own FTP server: The core library and the driver.
package server

import (
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	_ "github.com/beyondstorage/go-service-memory"
	"github.com/beyondstorage/go-storage/v4/types"
	"github.com/pengsrc/go-shared/check"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/evftp/evftp/client"
	"github.com/evftp/evftp/config"
	"github.com/evftp/evftp/constants"
	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/metrics"
	"github.com/evftp/evftp/reactor"
	"github.com/evftp/evftp/registry"
	"github.com/evftp/evftp/socket"
	"github.com/evftp/evftp/utils"
)

// activeConnectTimeout bounds the PORT worker's blocking dial.
const activeConnectTimeout = 5 * time.Second

// acceptor is the control listener's registry entry. It only exists so the
// listener owns a token like every other registered descriptor.
type acceptor struct {
	fd int
}

func (a *acceptor) FD() int { return a.fd }

// FTPServer runs every connection on one polling goroutine.
// We want to keep it as simple as possible.
type FTPServer struct {
	StartTime time.Time // Time when the server was started

	setting  *config.ServerSettings
	storager types.Storager

	reactor  *reactor.Reactor
	registry *registry.Registry
	handler  *client.Handler

	listenFD    int
	listenToken registry.Token
	boundPort   int

	stopped *atomic.Bool
}

func (s *FTPServer) Storager() types.Storager {
	return s.storager
}

func (s *FTPServer) Setting() *config.ServerSettings {
	return s.setting
}

// Port is the control listener's bound port, for configs that ask the
// system to pick one.
func (s *FTPServer) Port() int {
	return s.boundPort
}

// Start binds the control listener and registers it with the poller.
func (s *FTPServer) Start() {
	fd, port, err := socket.Listen(s.setting.ListenHost, s.setting.ListenPort)
	if err != nil {
		utils.Logger.Fatalf("Cannot listen: %v", err)
	}
	s.listenFD = fd
	s.boundPort = port

	s.listenToken = s.registry.Add(&acceptor{fd: fd})
	err = s.reactor.Register(fd, s.listenToken, reactor.Readable)
	check.ErrorForExit(constants.Name, err)

	utils.Logger.Infof("Listening... %s:%d", s.setting.ListenHost, port)
}

// Serve is the dispatch loop. It returns after Stop.
func (s *FTPServer) Serve() {
	events := make([]reactor.Event, 128)
	for {
		n, err := s.reactor.Poll(events)
		if err != nil {
			utils.Logger.Errorf("Poll error: %v", err)
			return
		}
		for i := 0; i < n; i++ {
			if events[i].Token == s.listenToken {
				s.acceptClients()
				continue
			}
			s.handler.Dispatch(events[i])
		}
		if s.stopped.Load() {
			return
		}
	}
}

// acceptClients drains the listener backlog, then re-arms it.
func (s *FTPServer) acceptClients() {
	for {
		fd, err := socket.Accept(s.listenFD)
		if err == socket.ErrWouldBlock {
			break
		}
		if err != nil {
			utils.Logger.Errorf("Accept error: %v", err)
			break
		}

		id := strings.Replace(uuid.NewV4().String(), "-", "", -1)
		c := client.NewControlConn(fd, id)
		c.Response.Reset(ftp.StatusServiceReady, "Welcome to EvFTP Server")

		t := s.registry.Add(c)
		if err := s.reactor.Register(fd, t, reactor.Writable); err != nil {
			utils.Logger.Errorf("Register client error: %v", err)
			s.registry.Remove(t)
			_ = socket.Close(fd)
			continue
		}

		metrics.ClientsTotal.Inc()
		metrics.OpenConnections.Inc()
		zap.L().Debug("client connected",
			zap.String("id", id), zap.Int("total", s.registry.Len()))
	}
	s.reactor.Defer(reactor.Action{FD: s.listenFD, Token: s.listenToken, Interest: reactor.Readable})
}

// PassiveTransferFactory opens a single-use data listener inside the
// configured port range.
func (s *FTPServer) PassiveTransferFactory(listenHost string, portRange *config.PortRange) (int, int, error) {
	span := portRange.End - portRange.Start
	if span < 1 {
		// A collapsed range means exactly this port.
		span = 1
	}

	var lastErr error
	for attempt := 0; attempt < span; attempt++ {
		port := portRange.Start + rand.Intn(span)
		fd, bound, err := socket.Listen(listenHost, port)
		if err == nil {
			return fd, bound, nil
		}
		lastErr = err
	}

	utils.Logger.Errorf("Could not listen: %v", lastErr)
	return 0, 0, errors.New("cannot listen")
}

// ActiveTransferFactory dials the address a PORT command announced. It
// blocks up to the connect timeout and must only run on a worker goroutine.
func (s *FTPServer) ActiveTransferFactory(addr *net.TCPAddr) (int, error) {
	return socket.Dial(addr, activeConnectTimeout)
}

// Stop makes Serve return after the current dispatch cycle and closes the
// control listener.
func (s *FTPServer) Stop() {
	if !s.stopped.CAS(false, true) {
		return
	}
	if s.listenFD != 0 {
		_ = s.reactor.Deregister(s.listenFD)
		_ = socket.Close(s.listenFD)
	}
	_ = s.reactor.Wake()
}

// NewFTPServer creates a new FTPServer instance.
func NewFTPServer(c *config.Config) (*FTPServer, error) {
	return NewFTPServerFromSettings(config.GetServerSetting(c))
}

// NewFTPServerFromSettings creates a server from already-built settings.
func NewFTPServerFromSettings(setting *config.ServerSettings) (*FTPServer, error) {
	storager, err := utils.NewStoragerFromString(setting.Service)
	if err != nil {
		return nil, err
	}

	r, err := reactor.New()
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	s := &FTPServer{
		StartTime: time.Now().UTC(),
		setting:   setting,
		storager:  storager,
		reactor:   r,
		registry:  reg,
		stopped:   atomic.NewBool(false),
	}
	s.handler = client.NewHandler(r, reg, setting, storager,
		s.PassiveTransferFactory, s.ActiveTransferFactory)
	return s, nil
}
