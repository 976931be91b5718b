// Package peer tracks a node's view of the peers around it: candidates
// awaiting admission and the connections it currently holds.
package peer

import (
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

// Candidates is a map from a name awaiting admission to the step it was
// first seen, used to time out candidates that never get voted in.
type Candidates struct {
	addedAt map[name.Name]uint64
}

// NewCandidates returns an empty candidate table.
func NewCandidates() *Candidates {
	return &Candidates{addedAt: make(map[name.Name]uint64)}
}

// Add records n as a candidate first seen at step, if not already known.
func (c *Candidates) Add(n name.Name, step uint64) {
	if _, ok := c.addedAt[n]; !ok {
		c.addedAt[n] = step
	}
}

// Remove drops n from the candidate table, e.g. once it has been admitted
// or timed out.
func (c *Candidates) Remove(n name.Name) {
	delete(c.addedAt, n)
}

// Contains reports whether n is a pending candidate.
func (c *Candidates) Contains(n name.Name) bool {
	_, ok := c.addedAt[n]
	return ok
}

// TimedOut returns the candidates first seen more than joinTimeout steps
// before now.
func (c *Candidates) TimedOut(now, joinTimeout uint64) []name.Name {
	var out []name.Name
	for n, added := range c.addedAt {
		if now-added > joinTimeout {
			out = append(out, n)
		}
	}
	return out
}

// Names returns every pending candidate.
func (c *Candidates) Names() xset.Set[name.Name] {
	out := xset.New[name.Name](len(c.addedAt))
	for n := range c.addedAt {
		out.Add(n)
	}
	return out
}

// Connections tracks the peers a node has a live connection to, and the
// peers it has issued a Connect to but not yet confirmed.
type Connections struct {
	Live      xset.Set[name.Name]
	Requested xset.Set[name.Name]
}

// NewConnections returns an empty connection tracker.
func NewConnections() *Connections {
	return &Connections{
		Live:      xset.New[name.Name](0),
		Requested: xset.New[name.Name](0),
	}
}

// Connect marks n as connected, idempotently: duplicate Connects from an
// already-connected peer are accepted without complaint.
func (c *Connections) Connect(n name.Name) {
	c.Live.Add(n)
	c.Requested.Remove(n)
}

// Disconnect removes n from the live set, idempotently: a duplicate or
// out-of-order disconnect for a peer we've already dropped is a no-op
// rather than an error.
func (c *Connections) Disconnect(n name.Name) {
	c.Live.Remove(n)
	c.Requested.Remove(n)
}

// RequestConnect records that we've sent n a Connect and are awaiting its
// reply, unless we're connected or already waiting.
func (c *Connections) RequestConnect(n name.Name) bool {
	if c.Live.Contains(n) || c.Requested.Contains(n) {
		return false
	}
	c.Requested.Add(n)
	return true
}

// IsConnected reports whether we hold a live connection to n.
func (c *Connections) IsConnected(n name.Name) bool {
	return c.Live.Contains(n)
}
