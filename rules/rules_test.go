package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

func shortName(b uint8) name.Name {
	return name.Name(uint64(b) << 56)
}

func TestAddProposesCandidate(t *testing.T) {
	s := block.NewStore()
	us := name.Name(0)
	genesis := block.Genesis(us)
	genesisID := s.Insert(genesis)

	candidate := shortName(1)
	v := View{
		Store:         s,
		OurName:       us,
		CurrentBlocks: xset.Of(genesisID),
		Candidates:    xset.Of(candidate),
		Connected:     xset.New[name.Name](0),
		MinSplitSize:  4,
	}

	proposals := Add(v)
	require.Len(t, proposals, 1)
	assert.True(t, proposals[0].NewBlock.Members.Contains(candidate))
}

func TestDropProposesDisconnectedPeer(t *testing.T) {
	s := block.NewStore()
	us := name.Name(0)
	peerName := shortName(1)
	b := block.Genesis(us).AddNode(peerName)
	bID := s.Insert(b)

	v := View{
		Store:         s,
		OurName:       us,
		CurrentBlocks: xset.Of(bID),
		Candidates:    xset.New[name.Name](0),
		Connected:     xset.New[name.Name](0),
	}

	proposals := Drop(v)
	require.Len(t, proposals, 1)
	assert.False(t, proposals[0].NewBlock.Members.Contains(peerName))
}

func TestSplitRequiresBothHalvesAboveThreshold(t *testing.T) {
	s := block.NewStore()
	us := name.Name(0)
	members := xset.Of(us, shortName(0b10000000))
	b := block.Block{Members: members}
	bID := s.Insert(b)

	v := View{
		Store:         s,
		OurName:       us,
		CurrentBlocks: xset.Of(bID),
		Candidates:    xset.New[name.Name](0),
		Connected:     xset.New[name.Name](0),
		MinSplitSize:  4,
	}
	assert.Empty(t, Split(v))
}

func TestMergeSizeTargetsSibling(t *testing.T) {
	s := block.NewStore()
	us := name.Name(0)

	left := block.Block{Prefix: leftPrefix(), Version: 1, Members: xset.Of(us)}
	right := block.Block{Prefix: rightPrefix(), Version: 1, Members: xset.Of(shortName(0b11000000))}
	leftID := s.Insert(left)
	rightID := s.Insert(right)

	v := View{
		Store:          s,
		OurName:        us,
		CurrentBlocks:  xset.Of(leftID, rightID),
		Candidates:     xset.New[name.Name](0),
		Connected:      xset.New[name.Name](0),
		MinSectionSize: 4,
	}
	proposals := MergeSize(v)
	require.NotEmpty(t, proposals)
	assert.Equal(t, 2, proposals[0].NewBlock.Members.Len())
}

func leftPrefix() name.Prefix  { return name.New(1, name.Name(0)) }
func rightPrefix() name.Prefix { return name.Empty.Pushed(true) }
