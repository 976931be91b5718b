package node

import (
	"fmt"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/message"
	"github.com/michaelsproul/ewok/name"
)

// voteVersionBand bounds how far a vote's From block version may be from
// that of some compatible block we hold valid for us to request a proof of
// it; votes further away are recorded without a proof request.
const voteVersionBand = 4

// HandleMessage processes one delivered message and returns the node's
// reply messages, already run through the send-filter.
func (n *Node) HandleMessage(m message.Message, step uint64) []message.Message {
	var out []message.Message

	switch m.Content.Kind {
	case message.KindNodeJoined:
		n.candidates.Add(m.Sender, step)
		n.connections.Connect(m.Sender)
		out = append(out, message.Message{
			Sender: n.OurName, Recipient: m.Sender,
			Content: message.Content{Kind: message.KindConnect},
		})
		out = append(out, message.Message{
			Sender: n.OurName, Recipient: m.Sender,
			Content: message.Content{Kind: message.KindBootstrap, VoteCounts: n.voteCounts},
		})

	case message.KindVote:
		n.recordVote(m.Content.VoteEdge.Vote, m.Sender)
		out = append(out, n.maybeRequestProof(m.Content.VoteEdge.Vote)...)

	case message.KindVoteAgreed:
		if line := agreementLine(n.OurName, m.Content.VoteEdge.Vote, n.Store, m.Sender); line != "" {
			n.Logger.Info(line)
		}
		for _, voter := range xset.Sorted(m.Content.VoteEdge.Voters) {
			n.recordVote(m.Content.VoteEdge.Vote, voter)
		}
		out = append(out, n.maybeRequestProof(m.Content.VoteEdge.Vote)...)

	case message.KindVoteBundle:
		out = append(out, n.handleVoteBundle(m)...)

	case message.KindRequestProof:
		out = append(out, n.handleRequestProof(m)...)

	case message.KindNoProof:
		// Diagnostic only; the requester already gave up on this path.

	case message.KindBootstrap:
		for from, succs := range m.Content.VoteCounts {
			for to, voters := range succs {
				for _, voter := range xset.Sorted(voters) {
					n.recordVote(block.Vote{From: from, To: to}, voter)
				}
			}
		}

	case message.KindConnect:
		n.connections.Connect(m.Sender)
		if n.connections.RequestConnect(m.Sender) {
			out = append(out, message.Message{
				Sender: n.OurName, Recipient: m.Sender,
				Content: message.Content{Kind: message.KindConnect},
			})
		}

	case message.KindDisconnect:
		n.connections.Disconnect(m.Sender)
	}

	return n.applySendFilter(out)
}

// maybeRequestProof asks every member of our current blocks for a proof
// of the vote's From block when we don't yet
// consider its From block valid but it's plausible enough (not wildly
// ahead of anything we know) to be worth chasing down.
func (n *Node) maybeRequestProof(v block.Vote) []message.Message {
	if n.validBlocks.Contains(v.From) {
		return nil
	}
	fromBlock, ok := n.Store.Get(v.From)
	if !ok {
		return nil
	}
	if !n.withinVersionBand(fromBlock) {
		return nil
	}
	return n.broadcast(message.Content{
		Kind:          message.KindRequestProof,
		Block:         v.From,
		TheirCurrents: n.currentBlocks.Clone(),
	})
}

// agreementLine renders a received-agreement notification in the exact
// format the original analysis tooling's AGREEMENT_RE expects, or "" if
// either block in the vote isn't in our store (the message carries only
// block ids, not the blocks themselves).
func agreementLine(self name.Name, v block.Vote, store *block.Store, sender name.Name) string {
	from, okFrom := store.Get(v.From)
	to, okTo := store.Get(v.To)
	if !okFrom || !okTo {
		return ""
	}
	return fmt.Sprintf("Node(%s): received agreement for DebugVote { from: %s, to: %s } from %s",
		self.Short(), from.DebugString(), to.DebugString(), sender.Short())
}

func (n *Node) withinVersionBand(b block.Block) bool {
	for _, id := range xset.Sorted(n.validBlocks) {
		known := n.Store.MustGet(id)
		if !known.Prefix.IsCompatible(b.Prefix) {
			continue
		}
		diff := int64(b.Version) - int64(known.Version)
		if diff < 0 {
			diff = -diff
		}
		if diff <= voteVersionBand {
			return true
		}
	}
	return false
}

// handleVoteBundle requests proof for any base block we cannot validate
// locally, then integrates every edge in the bundle.
func (n *Node) handleVoteBundle(m message.Message) []message.Message {
	var out []message.Message
	for _, edge := range m.Content.Bundle {
		if !n.validBlocks.Contains(edge.Vote.From) {
			out = append(out, n.maybeRequestProof(edge.Vote)...)
		}
		for _, voter := range xset.Sorted(edge.Voters) {
			n.recordVote(edge.Vote, voter)
		}
	}
	return out
}

// handleRequestProof runs the reverse-BFS proof search (spec §4.6.1) and
// replies with a VoteBundle on success or NoProof on failure.
func (n *Node) handleRequestProof(m message.Message) []message.Message {
	path := n.findProof(m.Content.Block, m.Content.TheirCurrents)
	if len(path) < 2 {
		return []message.Message{{
			Sender: n.OurName, Recipient: m.Sender,
			Content: message.Content{Kind: message.KindNoProof, Block: m.Content.Block},
		}}
	}

	bundle := make([]message.VoteEdge, 0, len(path)-1)
	for i := len(path) - 1; i > 0; i-- {
		from, to := path[i], path[i-1]
		v := block.Vote{From: from, To: to}
		bundle = append(bundle, message.VoteEdge{Vote: v, Voters: n.voteCounts.Voters(v)})
	}

	return []message.Message{{
		Sender: n.OurName, Recipient: m.Sender,
		Content: message.Content{Kind: message.KindVoteBundle, Bundle: bundle},
	}}
}

// findProof performs a reverse BFS from target over quorum-backed edges,
// returning the chain of block ids [target, ..., accepted] where accepted
// is a block the requester already accepts (present in theirCurrents, or
// compatible with and strictly older than one that is). Returns nil if no
// such chain exists.
func (n *Node) findProof(target block.BlockID, theirCurrents xset.Set[block.BlockID]) []block.BlockID {
	if n.accepts(target, theirCurrents) {
		return []block.BlockID{target}
	}

	type frame struct {
		id   block.BlockID
		path []block.BlockID
	}

	visited := xset.Of(target)
	queue := []frame{{id: target, path: []block.BlockID{target}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for from, voters := range n.revVoteCounts[cur.id] {
			if visited.Contains(from) {
				continue
			}
			if !block.IsQuorumOf(voters, n.Store.MustGet(from).Members) {
				continue
			}
			visited.Add(from)
			path := append(append([]block.BlockID{}, cur.path...), from)

			if n.accepts(from, theirCurrents) {
				return path
			}
			queue = append(queue, frame{id: from, path: path})
		}
	}

	return nil
}

// accepts reports whether id is something the requester already accepts:
// a member of theirCurrents, or compatible with and strictly older than
// a block they already hold current.
func (n *Node) accepts(id block.BlockID, theirCurrents xset.Set[block.BlockID]) bool {
	if theirCurrents.Contains(id) {
		return true
	}
	b := n.Store.MustGet(id)
	for _, other := range n.Store.Contents(xset.Sorted(theirCurrents)) {
		if other.Prefix.IsCompatible(b.Prefix) && other.Version > b.Version {
			return true
		}
	}
	return false
}
