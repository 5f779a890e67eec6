package transfer

import (
	"bytes"

	"github.com/beyondstorage/go-storage/v4/pairs"
	"github.com/beyondstorage/go-storage/v4/types"

	"github.com/evftp/evftp/socket"
)

// FileStream downloads an object through the storager, one chunk at a time.
// The next chunk is only fetched once the previous one is fully on the wire,
// so at most ChunkSize bytes of the file are in memory at any point.
type FileStream struct {
	path     string
	size     int64
	offset   int64 // next storager offset to fetch
	storager types.Storager

	chunk    bytes.Buffer // fetched but unsent bytes
	chunkOff int
}

// NewFileStream opens path for download. Stat runs up front so that a
// missing object fails before any data-channel traffic.
func NewFileStream(path string, storager types.Storager) (*FileStream, error) {
	o, err := storager.Stat(path)
	if err != nil {
		return nil, err
	}
	return &FileStream{
		path:     path,
		size:     o.MustGetContentLength(),
		storager: storager,
	}, nil
}

func (f *FileStream) Direction() Direction {
	return Download
}

// Offset is the number of file bytes fetched so far.
func (f *FileStream) Offset() int64 {
	return f.offset
}

func (f *FileStream) Step(fd int) (bool, error) {
	if f.chunkOff >= f.chunk.Len() {
		if f.offset >= f.size {
			return true, nil
		}
		n := f.size - f.offset
		if n > ChunkSize {
			n = ChunkSize
		}
		f.chunk.Reset()
		f.chunkOff = 0
		read, err := f.storager.Read(f.path, &f.chunk, pairs.WithOffset(f.offset), pairs.WithSize(n))
		if err != nil {
			return false, err
		}
		f.offset += read
	}

	pending := f.chunk.Bytes()[f.chunkOff:]
	n, err := socket.Write(fd, pending)
	if err == socket.ErrWouldBlock {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	f.chunkOff += n
	return f.offset >= f.size && f.chunkOff >= f.chunk.Len(), nil
}
