package message

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

func TestVoteRecipientsIncludesBothEndpoints(t *testing.T) {
	s := block.NewStore()
	n0, n1 := name.Name(0), name.Name(uint64(1)<<56)

	from := block.Genesis(n0)
	fromID := s.Insert(from)
	to := from.AddNode(n1)
	toID := s.Insert(to)

	c := Content{Kind: KindVote, VoteEdge: VoteEdge{Vote: block.Vote{From: fromID, To: toID}}}
	recipients := Recipients(s, xset.Of(fromID), n0, c)

	assert.True(t, recipients.Contains(n0))
	assert.True(t, recipients.Contains(n1))
}

func TestVoteAgreedExcludesUninvolvedNode(t *testing.T) {
	s := block.NewStore()
	n0 := name.Name(0)
	n1 := name.Name(uint64(1) << 56)
	n2 := name.Name(uint64(2) << 56)

	from := block.Block{Prefix: name.Empty, Version: 0, Members: xset.Of(n1)}
	fromID := s.Insert(from)
	to := from.AddNode(n2)
	toID := s.Insert(to)

	c := Content{Kind: KindVoteAgreed, VoteEdge: VoteEdge{Vote: block.Vote{From: fromID, To: toID}}}
	recipients := Recipients(s, xset.Of(fromID), n0, c)
	assert.Equal(t, 0, recipients.Len())
}

func TestMessageHashDeterministic(t *testing.T) {
	m := Message{Sender: name.Name(1), Recipient: name.Name(2), Content: Content{Kind: KindConnect}}
	assert.Equal(t, m.Hash(), m.Hash())
}
