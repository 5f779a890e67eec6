package kit

import (
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"sort"
	"strconv"
	"strings"
	"testing"

	_ "github.com/beyondstorage/go-service-memory"
	"github.com/stretchr/testify/assert"

	"github.com/evftp/evftp/config"
	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/server"
	"github.com/evftp/evftp/utils"
)

var (
	DefaultServerSetting = &config.ServerSettings{
		Service:    "memory:///ftp",
		ListenHost: "127.0.0.1",
		ListenPort: 0, // system picks a free one
		PublicHost: "127.0.0.1",
		DataPortRange: &config.PortRange{
			Start: 10240,
			End:   20480,
		},
		Users: map[string]string{"anonymous": ""},
	}
)

// TestKit runs one real server on a loopback port and speaks real TCP to
// it, the same path production clients take.
type TestKit struct {
	t *testing.T

	s    *server.FTPServer
	addr string
}

func NewTestKit(t *testing.T) *TestKit {
	return NewTestKitWithConfig(t, DefaultServerSetting)
}

func NewTestKitWithConfig(t *testing.T, settings *config.ServerSettings) *TestKit {
	s, err := server.NewFTPServerFromSettings(settings)
	utils.MustNil(err)
	s.Start()
	go s.Serve()

	return &TestKit{
		t:    t,
		s:    s,
		addr: fmt.Sprintf("127.0.0.1:%d", s.Port()),
	}
}

func (k *TestKit) Dail() *Conn {
	conn, err := net.Dial("tcp", k.addr)
	utils.MustNil(err)
	c := wrapConn(conn)
	response(c)
	return c
}

func (k *TestKit) Stop() {
	k.s.Stop()
}

func (k TestKit) TransferConnReceive(r io.Reader) []byte {
	bytes, err := ioutil.ReadAll(r)
	utils.MustNil(err)
	return bytes
}

func (k TestKit) TransferConnSend(conn *Conn, data []byte) {
	n, err := conn.Write(data)
	utils.MustNil(err)
	assert.Equal(k.t, len(data), n)
	utils.MustNil(conn.Close())
}

// PassivePort issues PASV and decodes the data port out of the 227 reply.
func (k *TestKit) PassivePort(conn *Conn) int {
	isNumber := func(b byte) bool {
		return byte('0') <= b && b <= byte('9')
	}
	port := k.Send(conn, ftp.PASV).Success().message()[0]
	addr := make([]int, 6)
	c := 0
	for i := 0; i < len(port); i++ {
		if isNumber(port[i]) {
			for i1 := i; i1 < len(port); i1++ {
				if isNumber(port[i1]) {
					addr[c] *= 10
					addr[c] += int(port[i1]) - int('0')
					continue
				}
				i = i1
				break
			}
			c++
		}
	}
	return addr[4]*256 + addr[5]
}

// PassiveConn issues PASV and dials the announced port.
func (k *TestKit) PassiveConn(conn *Conn) *Conn {
	data, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", k.PassivePort(conn)))
	utils.MustNil(err)
	return wrapConn(data)
}

// ActiveConn opens a local listener, announces it with PORT and hands back
// the connection the server dialed.
func (k *TestKit) ActiveConn(conn *Conn) *Conn {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	utils.MustNil(err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		utils.MustNil(err)
		accepted <- c
	}()

	k.Send(conn, fmt.Sprintf("PORT 127,0,0,1,%d,%d", port/256, port%256)).Auto().Success()
	return wrapConn(<-accepted)
}

func (k *TestKit) MustSuccess(conn *Conn, cmd string) {
	k.sendWithExpectStates(conn, cmd, success, another)
}

func (k *TestKit) MustFailure(conn *Conn, cmd string) {
	k.sendWithExpectStates(conn, cmd, failure)
}

func (k *TestKit) MustError(conn *Conn, cmd string) {
	k.sendWithExpectStates(conn, cmd, erro)
}

func (k *TestKit) sendWithExpectStates(conn *Conn, cmd string, ss ...state) {
	k.Send(conn, cmd).Auto().Expect(ss...)
}

func (k *TestKit) AnonymousLogin() *Conn {
	conn := k.Dail()
	k.Send(conn, "user anonymous").Auto().Another()
	k.Send(conn, "pass").Auto().Success()
	return conn
}

func (k *TestKit) List(conn *Conn, path string) []string {
	passive := k.PassiveConn(conn)

	var data string

	k.Send(conn, fmt.Sprintf("LIST %s", path)).Expect(wait).TakeAction(func() {
		data = string(k.TransferConnReceive(passive))
	}).Success()
	data = data[:len(data)-2]
	fileList := strings.Split(data, "\r\n")
	sort.Strings(fileList)

	return fileList
}

func (k *TestKit) Store(conn *Conn, path string, data []byte) {
	passive := k.PassiveConn(conn)
	k.Send(conn, fmt.Sprintf("STOR %s", path)).Expect(wait).TakeAction(func() {
		k.TransferConnSend(passive, data)
	}).Success()
}

func (k *TestKit) Retrieve(conn *Conn, path string) []byte {
	passive := k.PassiveConn(conn)

	var data []byte
	k.Send(conn, fmt.Sprintf("RETR %s", path)).Expect(wait).TakeAction(func() {
		data = k.TransferConnReceive(passive)
	}).Success()

	return data
}

func (k *TestKit) Send(conn *Conn, cmd string) *model {
	switch strings.ToUpper(strings.Split(cmd, " ")[0]) {
	case ftp.DELE, ftp.CWD, ftp.CDUP, ftp.NOOP, ftp.PASV, ftp.QUIT, ftp.PORT, ftp.SYST,
		ftp.RMD, ftp.MKD, ftp.PWD, ftp.TYPE:
		return replyModel(k.t, conn).Begin(cmd)
	case ftp.LIST, ftp.RETR, ftp.STOR:
		return waitReplyModel(k.t, conn).Begin(cmd)
	case ftp.USER, ftp.PASS:
		return loginModel(k.t, conn).Begin(cmd)
	case ftp.RNTO:
		return acctOrRntoModel(k.t, conn).Begin(cmd)
	case ftp.RNFR:
		return rnfrModel(k.t, conn).Begin(cmd)
	}
	// Anything else gets exactly one reply.
	return replyModel(k.t, conn).Begin(cmd)
}

func send(conn *Conn, cmd string) {
	_, err := conn.Write([]byte(fmt.Sprintf("%s\r\n", cmd)))
	utils.MustNil(err)
}

func response(conn *Conn) (code, string) {
	respString, err := conn.r.ReadString('\n')
	utils.MustNil(err)

	respString = strings.TrimRight(respString, "\r\n")
	resp := strings.SplitN(respString, " ", 2)
	c, err := strconv.Atoi(resp[0])
	utils.MustNil(err)
	msg := ""
	if len(resp) > 1 {
		msg = resp[1]
	}
	return code(c), msg
}
