package ftp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line  string
		verb  string
		param string
		ok    bool
	}{
		{"NOOP\r\n", NOOP, "", true},
		{"noop\r\n", NOOP, "", true},
		{"NOOP\n", NOOP, "", true},
		{"USER anonymous\r\n", USER, "anonymous", true},
		{"STOR my file.txt\r\n", STOR, "my file.txt", true},
		{"LIST \r\n", LIST, "", true},
		{"cwd /a/b\r\n", CWD, "/a/b", true},
		{"PORT 127,0,0,1,4,1\r\n", PORT, "127,0,0,1,4,1", true},
		{"\r\n", "", "", false},
		{"NOOP", "", "", false}, // fragment without terminator
		{"XYZZY\r\n", "", "", false},
		{"SIZE file\r\n", "", "", false},
	}

	for _, tt := range tests {
		cmd, err := ParseCommand([]byte(tt.line))
		if !tt.ok {
			assert.Error(t, err, tt.line)
			assert.IsType(t, &ParseError{}, err, tt.line)
			continue
		}
		assert.NoError(t, err, tt.line)
		assert.Equal(t, tt.verb, cmd.Verb, tt.line)
		assert.Equal(t, tt.param, cmd.Param, tt.line)
	}
}

func TestParseHostPort(t *testing.T) {
	addr, err := ParseHostPort("127,0,0,1,4,1")
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1", addr.IP.String())
	assert.Equal(t, 4*256+1, addr.Port)

	for _, bad := range []string{
		"",
		"127,0,0,1",
		"127,0,0,1,4,1,9",
		"256,0,0,1,4,1",
		"127,0,0,1,-1,1",
		"a,b,c,d,e,f",
	} {
		_, err := ParseHostPort(bad)
		assert.Error(t, err, bad)
	}
}

func TestHostPortRoundTrip(t *testing.T) {
	for _, port := range []int{0, 1, 255, 256, 1024, 20480, 65535} {
		param := FormatHostPort("192.168.1.7", port)
		addr, err := ParseHostPort(param)
		assert.NoError(t, err, param)
		assert.Equal(t, "192.168.1.7", addr.IP.String())
		assert.Equal(t, port, addr.Port, param)
	}
}

func TestFormatHostPort(t *testing.T) {
	assert.Equal(t, "127,0,0,1,4,1", FormatHostPort("127.0.0.1", 4*256+1))
	assert.Equal(t, fmt.Sprintf("10,0,0,2,%d,%d", 65535/256, 65535%256), FormatHostPort("10.0.0.2", 65535))
}
