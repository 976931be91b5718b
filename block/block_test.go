package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

func shortName(b uint8) name.Name {
	return name.Name(uint64(b) << 56)
}

func TestGenesisAndAddNode(t *testing.T) {
	g := Genesis(name.Name(0))
	require.Equal(t, uint64(0), g.Version)
	assert.True(t, g.Members.Contains(name.Name(0)))

	added := g.AddNode(shortName(0b10000000))
	assert.Equal(t, uint64(1), added.Version)
	assert.Equal(t, 2, added.Members.Len())
	assert.True(t, added.IsAdmissibleAfter(g))
}

func TestRemoveNode(t *testing.T) {
	g := Genesis(name.Name(0)).AddNode(shortName(1))
	removed := g.RemoveNode(shortName(1))
	assert.Equal(t, 1, removed.Members.Len())
	assert.True(t, removed.IsAdmissibleAfter(g))
}

func TestIsAdmissibleAfterSplit(t *testing.T) {
	parent := Block{
		Prefix:  name.Empty,
		Version: 0,
		Members: xset.Of[name.Name](name.Name(0), shortName(0b10000000)),
	}
	child := Block{
		Prefix:  name.New(1, name.Name(0)),
		Version: 1,
		Members: xset.Of[name.Name](name.Name(0)),
	}
	assert.True(t, child.IsAdmissibleAfter(parent))
}

func TestOutranksSamePrefix(t *testing.T) {
	small := Block{Prefix: name.Empty, Version: 1, Members: xset.Of[name.Name](name.Name(0))}
	big := Block{Prefix: name.Empty, Version: 1, Members: xset.Of[name.Name](name.Name(0), name.Name(1))}
	assert.True(t, big.Outranks(small))
	assert.False(t, small.Outranks(big))
}

func TestOutranksPrefix(t *testing.T) {
	parent := Block{Prefix: name.Empty, Version: 0, Members: xset.Of[name.Name](name.Name(0))}
	child := Block{Prefix: name.New(1, name.Name(0)), Version: 1, Members: xset.Of[name.Name](name.Name(0))}
	assert.True(t, parent.Outranks(child))
	assert.False(t, child.Outranks(parent))
}

func TestIsQuorumOf(t *testing.T) {
	members := xset.Of[name.Name](name.Name(0), name.Name(1), name.Name(2))
	voters := xset.Of[name.Name](name.Name(0), name.Name(1))
	assert.True(t, IsQuorumOf(voters, members))

	voters = xset.Of[name.Name](name.Name(0))
	assert.False(t, IsQuorumOf(voters, members))
}

func TestBlockIDStable(t *testing.T) {
	b := Genesis(name.Name(42))
	assert.Equal(t, b.ID(), b.ID())

	other := Genesis(name.Name(43))
	assert.NotEqual(t, b.ID(), other.ID())
}
