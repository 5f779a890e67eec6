package client

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/beyondstorage/go-storage/v4/pairs"
	"github.com/beyondstorage/go-storage/v4/services"
	"github.com/beyondstorage/go-storage/v4/types"

	"github.com/evftp/evftp/ftp"
	"github.com/evftp/evftp/registry"
	"github.com/evftp/evftp/transfer"
)

// resolve maps a client-supplied path onto the session's subtree. It walks
// the segments with an explicit stack so that ".." can never climb above
// the session root: an underflow is an error, not a silent clamp.
//
// real is the storage path (rooted at home), virtual the path the client
// sees (rooted at "/").
func resolve(home, cwd, p string) (real, virtual string, err error) {
	base := cwd
	if path.IsAbs(p) {
		base = "/"
	}

	var stack []string
	for _, seg := range strings.Split(base, "/") {
		if seg != "" {
			stack = append(stack, seg)
		}
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", "", &ftp.PathError{Path: p, Msg: "escapes the session root"}
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}

	virtual = "/" + strings.Join(stack, "/")
	real = virtual
	if home != "/" {
		real = path.Join(home, virtual)
	}
	return real, virtual, nil
}

func (h *Handler) handleCWD(t registry.Token, c *ControlConn, param string) {
	if param == ".." {
		h.handleCDUP(t, c, "")
		return
	}

	defer h.armWrite(t, c)

	real, virtual, err := resolve(c.home, c.path, param)
	if err == nil {
		_, err = h.getDirInfo(real)
	}
	if err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("CD issue: %v", err))
		return
	}
	c.SetPath(virtual)
	c.Response.Reset(ftp.StatusFileOK, fmt.Sprintf("CD worked on %s", virtual))
}

func (h *Handler) handleCDUP(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	if c.Path() == "/" {
		c.Response.Reset(ftp.StatusActionNotTaken, "cannot CDUP")
		return
	}
	parent := path.Dir(c.Path())
	c.SetPath(parent)
	c.Response.Reset(ftp.StatusFileOK, fmt.Sprintf("CDUP worked on %s", parent))
}

func (h *Handler) handlePWD(t registry.Token, c *ControlConn, param string) {
	c.Response.Reset(ftp.StatusPathCreated, "\""+c.Path()+"\" is the current directory")
	h.armWrite(t, c)
}

func (h *Handler) handleMKD(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	real, virtual, err := resolve(c.home, c.path, param)
	if err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, err.Error())
		return
	}
	_, err = h.getDirInfo(real)
	if err == nil {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("Dir already exists: %s", virtual))
		return
	}
	if !errors.Is(err, services.ErrObjectNotExist) {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("Could not create %s : %v", virtual, err))
		return
	}
	direr, ok := h.storager.(types.Direr)
	if !ok {
		c.Response.Reset(ftp.StatusCommandNotImplemented, "This type of storage is not support create dir")
		return
	}
	if _, err := direr.CreateDir(real); err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("Could not create %s : %v", virtual, err))
		return
	}

	c.Response.Reset(ftp.StatusPathCreated, fmt.Sprintf("Created dir %s", virtual))
}

func (h *Handler) handleRMD(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	real, virtual, err := resolve(c.home, c.path, param)
	if err == nil {
		err = h.storager.Delete(real)
	}
	if err != nil {
		c.Response.Reset(ftp.StatusActionNotTaken, fmt.Sprintf("Could not delete dir %s: %v", virtual, err))
		return
	}
	c.Response.Reset(ftp.StatusFileOK, fmt.Sprintf("Deleted dir %s", virtual))
}

// handleLIST only acknowledges; the listing itself is built once the 150 is
// fully flushed, so the client never sees payload before acknowledgement.
func (h *Handler) handleLIST(t registry.Token, c *ControlConn, param string) {
	defer h.armWrite(t, c)

	if c.Data == 0 {
		err := &ftp.SequenceError{Verb: ftp.LIST, Msg: "PORT or PASV must be issued first"}
		c.Response.Reset(ftp.StatusBadCommandSequence, err.Error())
		return
	}
	c.Response.Reset(ftp.StatusFileStatusOK, "File status okay; about to open data connection.")
	if err := c.Response.Attach(ftp.Deferred{Kind: ftp.DeferredSendBuffer, Path: param}); err != nil {
		c.Response.Reset(ftp.StatusBadCommandSequence, "Another transfer is pending")
	}
}

// listingPayload renders a directory to the wire format LIST sends.
func (h *Handler) listingPayload(home, cwd, param string) (transfer.Transfer, error) {
	real, _, err := resolve(home, cwd, param)
	if err != nil {
		return nil, err
	}
	fileInfos, err := h.listFile(real)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	for _, file := range fileInfos {
		fmt.Fprintf(buf, "%s\r\n", fileStat(file))
	}
	return transfer.NewBufferPayload(buf.Bytes()), nil
}

func (h *Handler) listFile(p string) ([]*fileInfo, error) {
	iterator, err := h.storager.List(p)
	if err != nil {
		return nil, err
	}

	var files []*fileInfo
	for {
		o, err := iterator.Next()
		if err != nil {
			if errors.Is(err, types.IterateDone) {
				break
			}
			return nil, err
		}
		files = append(files, &fileInfo{o})
	}
	return files, nil
}

func (h *Handler) getFileInfo(p string) (*fileInfo, error) {
	o, err := h.storager.Stat(p)
	return &fileInfo{o}, err
}

func (h *Handler) getDirInfo(p string) (*fileInfo, error) {
	o, err := h.storager.Stat(p, pairs.WithObjectMode(types.ModeDir))
	return &fileInfo{o}, err
}

func fileStat(file *fileInfo) string {
	return fmt.Sprintf(
		"%s 1 ftp ftp %12d %s %s",
		file.Mode(),
		file.Size(),
		file.ModTime().Format(" Jan _2 15:04 "),
		file.Name(),
	)
}

type fileInfo struct {
	*types.Object
}

func (f *fileInfo) Mode() os.FileMode {
	if f.GetMode().IsDir() {
		return os.ModeDir
	}
	return os.ModePerm
}

func (f *fileInfo) Size() int64 {
	return f.MustGetContentLength()
}

func (f *fileInfo) Name() string {
	return path.Base(f.GetPath())
}

func (f *fileInfo) ModTime() time.Time {
	modified, _ := f.GetLastModified()
	return modified
}
