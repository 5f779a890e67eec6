package transfer

import (
	"bytes"
	"math/rand"
	"testing"

	_ "github.com/beyondstorage/go-service-memory"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/evftp/evftp/socket"
	"github.com/evftp/evftp/utils"
)

// socketPair returns two connected non-blocking stream sockets.
func socketPair(t *testing.T) (a, b int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	assert.NoError(t, err)
	assert.NoError(t, unix.SetNonblock(fds[0], true))
	assert.NoError(t, unix.SetNonblock(fds[1], true))
	return fds[0], fds[1]
}

// drain reads whatever is buffered on fd right now.
func drain(t *testing.T, fd int, into *bytes.Buffer) {
	buf := make([]byte, 64*1024)
	for {
		n, err := socket.Read(fd, buf)
		if err == socket.ErrWouldBlock {
			return
		}
		assert.NoError(t, err)
		into.Write(buf[:n])
	}
}

func TestBufferPayloadDrains(t *testing.T) {
	a, b := socketPair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	payload := make([]byte, 300*1024) // forces many chunked steps
	rand.Read(payload)
	tr := NewBufferPayload(payload)
	assert.Equal(t, Download, tr.Direction())

	var got bytes.Buffer
	for {
		done, err := tr.Step(a)
		assert.NoError(t, err)
		drain(t, b, &got)
		if done {
			break
		}
	}

	assert.Equal(t, payload, got.Bytes())
	assert.Equal(t, 0, tr.Remaining())
	assert.Equal(t, len(payload), tr.Sent())
}

func TestBufferPayloadEmpty(t *testing.T) {
	a, b := socketPair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	done, err := NewBufferPayload(nil).Step(a)
	assert.NoError(t, err)
	assert.True(t, done)
}

func TestFileStreamDownload(t *testing.T) {
	storager, err := utils.NewStoragerFromString("memory:///t")
	assert.NoError(t, err)

	content := make([]byte, 100*1024)
	rand.Read(content)
	_, err = storager.Write("file1", bytes.NewReader(content), int64(len(content)))
	assert.NoError(t, err)

	a, b := socketPair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	tr, err := NewFileStream("file1", storager)
	assert.NoError(t, err)
	assert.Equal(t, Download, tr.Direction())

	var got bytes.Buffer
	for {
		done, err := tr.Step(a)
		assert.NoError(t, err)
		drain(t, b, &got)
		if done {
			break
		}
	}

	assert.Equal(t, content, got.Bytes())
	assert.Equal(t, int64(len(content)), tr.Offset())
}

func TestFileStreamMissingFile(t *testing.T) {
	storager, err := utils.NewStoragerFromString("memory:///t")
	assert.NoError(t, err)

	// The stat happens up front, before any data could move.
	_, err = NewFileStream("no-such-file", storager)
	assert.Error(t, err)
}

func TestUploadSinkPersistsOnEOF(t *testing.T) {
	storager, err := utils.NewStoragerFromString("memory:///t")
	assert.NoError(t, err)

	a, b := socketPair(t)
	defer unix.Close(a)

	content := make([]byte, 100*1024)
	rand.Read(content)

	tr := NewUploadSink("upload1", storager)
	assert.Equal(t, Upload, tr.Direction())

	sent := 0
	for sent < len(content) {
		n, err := socket.Write(b, content[sent:])
		if err == socket.ErrWouldBlock {
			n = 0
		} else {
			assert.NoError(t, err)
		}
		sent += n

		done, err := tr.Step(a)
		assert.NoError(t, err)
		assert.False(t, done)
	}
	unix.Close(b)

	// EOF both finishes the transfer and persists the object.
	for {
		done, err := tr.Step(a)
		assert.NoError(t, err)
		if done {
			break
		}
	}
	assert.Equal(t, int64(len(content)), tr.Received())
	assert.Equal(t, 0, tr.buf.Len())

	var got bytes.Buffer
	_, err = storager.Read("upload1", &got)
	assert.NoError(t, err)
	assert.Equal(t, content, got.Bytes())
}
