// Package message defines the gossip envelope exchanged between nodes:
// the closed set of message variants and, for each, the function that
// decides who should receive it.
package message

import (
	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

// Kind identifies a message variant.
type Kind int

const (
	KindVote Kind = iota
	KindVoteAgreed
	KindVoteBundle
	KindNodeJoined
	KindBootstrap
	KindConnect
	KindDisconnect
	KindRequestProof
	KindNoProof
)

func (k Kind) String() string {
	switch k {
	case KindVote:
		return "Vote"
	case KindVoteAgreed:
		return "VoteAgreed"
	case KindVoteBundle:
		return "VoteBundle"
	case KindNodeJoined:
		return "NodeJoined"
	case KindBootstrap:
		return "Bootstrap"
	case KindConnect:
		return "Connect"
	case KindDisconnect:
		return "Disconnect"
	case KindRequestProof:
		return "RequestProof"
	case KindNoProof:
		return "NoProof"
	default:
		return "Unknown"
	}
}

// VoteEdge pairs a vote with the voters endorsing it, as carried on the wire.
type VoteEdge struct {
	Vote   block.Vote
	Voters xset.Set[name.Name]
}

// Content is the union of data any message variant may carry. Only the
// fields relevant to Kind are populated; this mirrors the original's
// closed enum using a tagged struct, which keeps the type Go-idiomatic
// (easy to log) without reflection or interface assertions.
type Content struct {
	Kind Kind

	// Vote, VoteAgreed
	VoteEdge VoteEdge

	// VoteBundle
	Bundle []VoteEdge

	// NodeJoined
	Joiner name.Name

	// Bootstrap
	VoteCounts block.VoteCounts

	// RequestProof, NoProof
	Block         block.BlockID
	TheirCurrents xset.Set[block.BlockID]
}

// Message is an envelope in flight between two nodes.
type Message struct {
	Sender    name.Name
	Recipient name.Name
	Content   Content
}

// Hash is used by the send-filter to suppress retransmission of an
// identical message. Connect/Disconnect are exempted by callers since
// their idempotence across reconnects is weaker. A Bootstrap's vote
// counts are not hashed, so two Bootstraps between the same pair of
// nodes hash alike.
func (m Message) Hash() uint64 {
	h := uint64(14695981039346656037)
	const prime = 1099511628211
	mix := func(v uint64) {
		h ^= v
		h *= prime
	}
	mix(uint64(m.Sender))
	mix(uint64(m.Recipient))
	mix(uint64(m.Content.Kind))
	mix(uint64(m.Content.VoteEdge.Vote.From))
	mix(uint64(m.Content.VoteEdge.Vote.To))
	mix(uint64(m.Content.Block))
	mix(uint64(m.Content.Joiner))
	mixVoters := func(voters xset.Set[name.Name]) {
		for _, v := range xset.Sorted(voters) {
			mix(uint64(v))
		}
	}
	mixVoters(m.Content.VoteEdge.Voters)
	for _, e := range m.Content.Bundle {
		mix(uint64(e.Vote.From))
		mix(uint64(e.Vote.To))
		mixVoters(e.Voters)
	}
	for _, id := range xset.Sorted(m.Content.TheirCurrents) {
		mix(uint64(id))
	}
	return h
}

// Recipients computes who should receive content, given the block store,
// the sender's view of its own current blocks, and the sender's name.
//
// store resolves block ids to members; currents is the sender's current
// block id set.
func Recipients(store *block.Store, currents xset.Set[block.BlockID], ourName name.Name, c Content) xset.Set[name.Name] {
	switch c.Kind {
	case KindVote, KindVoteAgreed:
		return voteRecipients(store, currents, ourName, c)

	case KindVoteBundle, KindBootstrap, KindRequestProof, KindNoProof:
		return everyCurrentMember(store, currents)

	case KindNodeJoined:
		return everyCurrentMember(store, currents)

	case KindConnect, KindDisconnect:
		// Recipient is fixed by the caller at message-construction time;
		// no broadcast fan-out applies.
		return xset.New[name.Name](0)

	default:
		return xset.New[name.Name](0)
	}
}

func voteRecipients(store *block.Store, currents xset.Set[block.BlockID], ourName name.Name, c Content) xset.Set[name.Name] {
	fromBlock, okFrom := store.Get(c.VoteEdge.Vote.From)
	toBlock, okTo := store.Get(c.VoteEdge.Vote.To)

	if c.Kind == KindVote {
		out := xset.New[name.Name](0)
		if okFrom {
			out.Union(fromBlock.Members)
		}
		if okTo {
			out.Union(toBlock.Members)
		}
		return out
	}

	// VoteAgreed: only broadcast if we are a member of from or to, then
	// fan out to the closest current section among neighbours compatible
	// with either endpoint's prefix.
	weAreInvolved := (okFrom && fromBlock.Members.Contains(ourName)) ||
		(okTo && toBlock.Members.Contains(ourName))
	if !weAreInvolved {
		return xset.New[name.Name](0)
	}

	out := xset.New[name.Name](0)
	currentBlocks := store.Contents(xset.Sorted(currents))

	for _, candidateBlock := range currentBlocks {
		compatible := (okFrom && candidateBlock.Prefix.IsCompatible(fromBlock.Prefix)) ||
			(okTo && candidateBlock.Prefix.IsCompatible(toBlock.Prefix))
		if !compatible {
			continue
		}
		if isClosestCurrentSection(currentBlocks, candidateBlock, ourName) {
			out.Union(candidateBlock.Members)
		}
	}

	return out
}

// isClosestCurrentSection reports whether, among currentBlocks, candidate
// is the one whose prefix bit pattern is XOR-closest to ourName — i.e. we
// are the natural representative to forward evidence to that section.
func isClosestCurrentSection(currentBlocks []block.Block, candidate block.Block, ourName name.Name) bool {
	for _, other := range currentBlocks {
		if other.Prefix.Equal(candidate.Prefix) {
			continue
		}
		if ourName.CloserTo(other.Prefix.Bits(), candidate.Prefix.Bits()) {
			return false
		}
	}
	return true
}

func everyCurrentMember(store *block.Store, currents xset.Set[block.BlockID]) xset.Set[name.Name] {
	out := xset.New[name.Name](0)
	for _, b := range store.Contents(xset.Sorted(currents)) {
		out.Union(b.Members)
	}
	return out
}
