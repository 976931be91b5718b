package current

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

func shortName(b uint8) name.Name {
	return name.Name(uint64(b) << 56)
}

// Covering: a deeper-prefix, higher-version block holding only part of
// its parent's members (with no current block for the sibling half) does
// not displace the parent: the parent stays current and the child is
// outranked by it.
func TestCoveringSelectsParentWhenChildIncomplete(t *testing.T) {
	s := block.NewStore()

	block1 := block.Block{
		Prefix:  name.Empty,
		Version: 0,
		Members: xset.Of(name.Name(0), shortName(0b10000000)),
	}
	block1ID := s.Insert(block1)

	block2 := block.Block{
		Prefix:  name.New(1, name.Name(0)),
		Version: 1,
		Members: xset.Of(name.Name(0)),
	}
	block2ID := s.Insert(block2)

	validBlocks := xset.Of(block1ID, block2ID)

	candidates := Candidates(s, validBlocks)
	result := Select(s, candidates)

	assert.True(t, result.Contains(block1ID))
	assert.False(t, result.Contains(block2ID))
}
