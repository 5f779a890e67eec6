package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evftp/evftp/ftp"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		home    string
		cwd     string
		arg     string
		real    string
		virtual string
	}{
		{"/", "/", "", "/", "/"},
		{"/", "/", "a", "/a", "/a"},
		{"/", "/a", "b/c", "/a/b/c", "/a/b/c"},
		{"/", "/a", "/b", "/b", "/b"},
		{"/", "/a/b", "..", "/a", "/a"},
		{"/", "/a", "../a/./b", "/a/b", "/a/b"},
		{"/", "/", "a//b/./c", "/a/b/c", "/a/b/c"},
		{"/alice", "/", "doc", "/alice/doc", "/doc"},
		{"/alice", "/x", "y", "/alice/x/y", "/x/y"},
		{"/alice", "/x", "/y", "/alice/y", "/y"},
	}

	for _, tt := range tests {
		real, virtual, err := resolve(tt.home, tt.cwd, tt.arg)
		assert.NoError(t, err, tt.arg)
		assert.Equal(t, tt.real, real, tt.arg)
		assert.Equal(t, tt.virtual, virtual, tt.arg)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	tests := []struct {
		home string
		cwd  string
		arg  string
	}{
		{"/", "/", ".."},
		{"/", "/", "../x"},
		{"/", "/a", "../.."},
		{"/", "/a/b", "../../../etc"},
		{"/", "/", "a/../.."},
		{"/alice", "/", "../bob"},
		{"/alice", "/x", "/../bob"},
	}

	for _, tt := range tests {
		_, _, err := resolve(tt.home, tt.cwd, tt.arg)
		assert.Error(t, err, tt.arg)
		assert.IsType(t, &ftp.PathError{}, err, tt.arg)
	}
}
