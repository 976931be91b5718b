package name

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixMatches(t *testing.T) {
	p := New(2, Name(0b10000000<<56))
	assert.True(t, p.Matches(Name(0b10100000<<56)))
	assert.False(t, p.Matches(Name(0b01100000<<56)))
}

func TestPrefixPushPop(t *testing.T) {
	p := Empty.Pushed(true).Pushed(false).Pushed(true)
	require.Equal(t, 3, p.BitCount())
	assert.True(t, p.Bits().Bit(0))
	assert.False(t, p.Bits().Bit(1))
	assert.True(t, p.Bits().Bit(2))

	popped := p.Popped()
	assert.Equal(t, 2, popped.BitCount())
	assert.True(t, popped.Equal(Empty.Pushed(true).Pushed(false)))
}

func TestPrefixSibling(t *testing.T) {
	p := Empty.Pushed(true).Pushed(false)
	sib, ok := p.Sibling()
	require.True(t, ok)
	assert.True(t, sib.Equal(Empty.Pushed(true).Pushed(true)))

	_, ok = Empty.Sibling()
	assert.False(t, ok)
}

func TestPrefixIsNeighbour(t *testing.T) {
	p := Empty.Pushed(true).Pushed(false)
	sib, _ := p.Sibling()
	assert.True(t, p.IsNeighbour(sib))
	assert.False(t, p.IsNeighbour(Empty.Pushed(false)))
	assert.False(t, p.IsNeighbour(p))
}

func TestPrefixIsCompatible(t *testing.T) {
	parent := Empty.Pushed(true)
	child := parent.Pushed(false)
	assert.True(t, parent.IsCompatible(child))
	assert.True(t, child.IsCompatible(parent))

	other := Empty.Pushed(false)
	assert.False(t, parent.IsCompatible(other))
}

func TestPrefixIsCoveredBy(t *testing.T) {
	left := Empty.Pushed(false)
	right := Empty.Pushed(true)
	assert.True(t, Empty.IsCoveredBy([]Prefix{left, right}))
	assert.False(t, Empty.IsCoveredBy([]Prefix{left}))
	assert.True(t, Empty.IsCoveredBy([]Prefix{Empty}))
}

func TestNameBit(t *testing.T) {
	n := Name(uint64(1) << 63)
	assert.True(t, n.Bit(0))
	assert.False(t, n.Bit(1))
}

func TestCommonPrefixLen(t *testing.T) {
	a := Name(0)
	b := Name(uint64(1) << 63)
	assert.Equal(t, 0, a.CommonPrefixLen(b))
	assert.Equal(t, 64, a.CommonPrefixLen(a))
}
