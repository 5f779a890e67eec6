package transfer

import (
	"bytes"
	"io"

	"github.com/beyondstorage/go-storage/v4/types"

	"github.com/evftp/evftp/socket"
	"github.com/evftp/evftp/utils"
)

// UploadSink receives client bytes chunk by chunk and persists them through
// the storager once the peer shuts its side down.
type UploadSink struct {
	path     string
	storager types.Storager

	buf      bytes.Buffer
	received int64
	read     [ChunkSize]byte
}

func NewUploadSink(path string, storager types.Storager) *UploadSink {
	return &UploadSink{path: path, storager: storager}
}

func (u *UploadSink) Direction() Direction {
	return Upload
}

// Received is the number of bytes accepted so far.
func (u *UploadSink) Received() int64 {
	return u.received
}

func (u *UploadSink) Step(fd int) (bool, error) {
	n, err := socket.Read(fd, u.read[:])
	if err == socket.ErrWouldBlock {
		return false, nil
	}
	if err == io.EOF {
		return true, u.persist()
	}
	if err != nil {
		return false, err
	}
	u.buf.Write(u.read[:n])
	u.received += int64(n)
	return false, nil
}

func (u *UploadSink) persist() error {
	w := utils.NewStoragerWriter(u.path, u.storager)
	if _, err := w.ReadFrom(&u.buf); err != nil {
		return err
	}
	return w.Complete()
}
