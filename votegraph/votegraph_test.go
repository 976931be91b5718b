package votegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

func TestNewlyValidAddNode(t *testing.T) {
	s := block.NewStore()
	n0 := name.Name(0)
	n1 := name.Name(uint64(1) << 56)

	genesis := block.Genesis(n0)
	genesisID := s.Insert(genesis)

	next := genesis.AddNode(n1)
	nextID := s.Insert(next)

	voteCounts := block.VoteCounts{}
	v := block.Vote{From: genesisID, To: nextID}
	voteCounts.Add(v, n0)

	validBlocks := xset.Of(genesisID)

	newly := NewlyValid(s, validBlocks, voteCounts, []block.Vote{v})
	require.Len(t, newly, 1)
	assert.Equal(t, nextID, newly[0].Vote.To)
}

func TestNewlyValidRequiresQuorum(t *testing.T) {
	s := block.NewStore()
	n0 := name.Name(0)
	n1 := name.Name(uint64(1) << 56)
	n2 := name.Name(uint64(2) << 56)

	genesis := block.Block{Prefix: name.Empty, Version: 0, Members: xset.Of(n0, n1, n2)}
	genesisID := s.Insert(genesis)

	next := genesis.AddNode(name.Name(uint64(3) << 56))
	nextID := s.Insert(next)

	voteCounts := block.VoteCounts{}
	v := block.Vote{From: genesisID, To: nextID}
	voteCounts.Add(v, n0)

	validBlocks := xset.Of(genesisID)

	newly := NewlyValid(s, validBlocks, voteCounts, []block.Vote{v})
	assert.Empty(t, newly)
}
