package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatalError(t *testing.T) {
	assert.True(t, IsFatalError(errors.New("rod: Target crashed")))
	assert.True(t, IsFatalError(errors.New("websocket: close 1006 (abnormal closure)")))
	assert.True(t, IsFatalError(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsFatalError(errors.New("session closed")))

	assert.False(t, IsFatalError(nil))
	assert.False(t, IsFatalError(errors.New("element not found: .headline")))
	assert.False(t, IsFatalError(errors.New("navigation timeout")))
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}
	c.defaults()
	assert.Equal(t, 1920, c.ViewportWidth)
	assert.Equal(t, 1080, c.ViewportHeight)
	assert.NotEmpty(t, c.UserAgent)
	assert.NotEmpty(t, c.ProfileRoot)
	assert.NotNil(t, c.Logger)
}

func TestConfigDefaultsKeepExplicitValues(t *testing.T) {
	c := Config{ViewportWidth: 1280, ViewportHeight: 720, UserAgent: "ua", ProfileRoot: "/tmp/x"}
	c.defaults()
	assert.Equal(t, 1280, c.ViewportWidth)
	assert.Equal(t, 720, c.ViewportHeight)
	assert.Equal(t, "ua", c.UserAgent)
	assert.Equal(t, "/tmp/x", c.ProfileRoot)
}
