package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/config"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/logging"
	"github.com/michaelsproul/ewok/message"
	"github.com/michaelsproul/ewok/name"
)

func testName(b uint8) name.Name {
	return name.Name(uint64(b) << 56)
}

func xsetSingle(s xset.Set[block.BlockID]) block.BlockID {
	return xset.Sorted(s)[0]
}

func xsetSingle2(id block.BlockID) xset.Set[block.BlockID] {
	return xset.Of(id)
}

func TestNewGenesisStartsValidAndCurrent(t *testing.T) {
	n := NewGenesis(testName(0), config.DefaultNodeParams(), logging.NoLog{}, 0)
	require.Equal(t, 1, n.CurrentBlocks().Len())
	require.Equal(t, 1, n.ValidBlocks().Len())
}

func TestAddVoteMakesSuccessorValid(t *testing.T) {
	params := config.DefaultNodeParams()
	n := NewGenesis(testName(0), params, logging.NoLog{}, 0)

	genesisID := xsetSingle(n.ValidBlocks())
	genesis := n.Store.MustGet(genesisID)
	next := genesis.AddNode(testName(1))
	n.Store.Insert(next)

	v := block.Vote{From: genesisID, To: next.ID()}
	n.recordVote(v, testName(0))
	_, err := n.UpdateState(1)
	require.NoError(t, err)

	assert.True(t, n.ValidBlocks().Contains(next.ID()))
	assert.True(t, n.CurrentBlocks().Contains(next.ID()))
}

func TestHandleNodeJoinedRepliesConnectAndBootstrap(t *testing.T) {
	n := NewGenesis(testName(0), config.DefaultNodeParams(), logging.NoLog{}, 0)

	joiner := testName(1)
	out := n.HandleMessage(message.Message{
		Sender: joiner, Recipient: testName(0),
		Content: message.Content{Kind: message.KindNodeJoined},
	}, 1)

	require.Len(t, out, 2)
	kinds := map[message.Kind]bool{}
	for _, m := range out {
		kinds[m.Content.Kind] = true
		assert.Equal(t, joiner, m.Recipient)
	}
	assert.True(t, kinds[message.KindConnect])
	assert.True(t, kinds[message.KindBootstrap])
	assert.True(t, n.candidates.Contains(joiner))
}

func TestFindProofReturnsChainToAcceptedBlock(t *testing.T) {
	n := NewGenesis(testName(0), config.DefaultNodeParams(), logging.NoLog{}, 0)
	genesisID := xsetSingle(n.ValidBlocks())
	genesis := n.Store.MustGet(genesisID)

	mid := genesis.AddNode(testName(1))
	midID := n.Store.Insert(mid)
	leaf := mid.AddNode(testName(2))
	leafID := n.Store.Insert(leaf)

	n.recordVote(block.Vote{From: genesisID, To: midID}, testName(0))
	n.recordVote(block.Vote{From: midID, To: leafID}, testName(0))
	n.recordVote(block.Vote{From: midID, To: leafID}, testName(1))

	theirCurrents := xsetSingle2(genesisID)
	path := n.findProof(leafID, theirCurrents)
	require.Len(t, path, 3)
	assert.Equal(t, leafID, path[0])
	assert.Equal(t, genesisID, path[2])
}

func TestFindProofNoPathReturnsNil(t *testing.T) {
	n := NewGenesis(testName(0), config.DefaultNodeParams(), logging.NoLog{}, 0)
	genesisID := xsetSingle(n.ValidBlocks())
	genesis := n.Store.MustGet(genesisID)

	orphan := genesis.AddNode(testName(9))
	orphanID := n.Store.Insert(orphan)

	path := n.findProof(orphanID, xsetSingle2(genesisID))
	assert.Nil(t, path)
}
