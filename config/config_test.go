package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetDefaultValue(t *testing.T) {
	c := &Config{}
	assert.NoError(t, setDefaultValue(c))
	assert.Equal(t, "memory:///ftp", c.Service)
	assert.Equal(t, "127.0.0.1", c.PublicHost)
	assert.Equal(t, 21, c.ListenPort)
	assert.Equal(t, "", c.Users["anonymous"])
}

func TestPublicHostMustBeIPv4(t *testing.T) {
	assert.NoError(t, setDefaultValue(&Config{PublicHost: "10.0.0.2"}))
	assert.Error(t, setDefaultValue(&Config{PublicHost: "ftp.example.com"}))
	assert.Error(t, setDefaultValue(&Config{PublicHost: "::1"}))
}
