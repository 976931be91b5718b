package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/michaelsproul/ewok/name"
)

func TestCandidatesTimeOut(t *testing.T) {
	c := NewCandidates()
	c.Add(name.Name(1), 10)

	assert.Empty(t, c.TimedOut(15, 20))
	assert.NotEmpty(t, c.TimedOut(40, 20))
}

func TestConnectionsIdempotentDisconnect(t *testing.T) {
	c := NewConnections()
	c.Connect(name.Name(1))
	assert.True(t, c.IsConnected(name.Name(1)))

	c.Disconnect(name.Name(1))
	c.Disconnect(name.Name(1))
	assert.False(t, c.IsConnected(name.Name(1)))
}

func TestRequestConnectAvoidsDuplicate(t *testing.T) {
	c := NewConnections()
	assert.True(t, c.RequestConnect(name.Name(1)))
	assert.False(t, c.RequestConnect(name.Name(1)))
}
