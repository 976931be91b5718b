// Package node implements the per-node state machine: ingesting gossip,
// voting, broadcasting, pruning stale blocks, and deciding when to give up
// and self-shutdown.
package node

import (
	"container/list"
	"fmt"
	"strings"

	"github.com/luxfi/log"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/config"
	"github.com/michaelsproul/ewok/current"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/message"
	"github.com/michaelsproul/ewok/name"
	"github.com/michaelsproul/ewok/peer"
	"github.com/michaelsproul/ewok/rules"
	"github.com/michaelsproul/ewok/votegraph"
)

const sendFilterCapacity = 1024

// sendFilter is a bounded FIFO of recently-sent message hashes, used to
// suppress retransmission. Connect/Disconnect are exempt by callers since
// their idempotence across reconnects is weaker than other messages'.
type sendFilter struct {
	seen  map[uint64]struct{}
	order *list.List
}

func newSendFilter() *sendFilter {
	return &sendFilter{seen: make(map[uint64]struct{}), order: list.New()}
}

// Admit reports whether h is new, recording it either way.
func (f *sendFilter) Admit(h uint64) bool {
	if _, ok := f.seen[h]; ok {
		return false
	}
	f.seen[h] = struct{}{}
	f.order.PushBack(h)
	if f.order.Len() > sendFilterCapacity {
		oldest := f.order.Remove(f.order.Front()).(uint64)
		delete(f.seen, oldest)
	}
	return true
}

// Node is a single simulated participant.
type Node struct {
	OurName   name.Name
	StepAdded uint64
	Params    config.NodeParams
	Logger    log.Logger

	Store *block.Store

	voteCounts    block.VoteCounts
	revVoteCounts block.VoteCounts
	validBlocks   xset.Set[block.BlockID]
	currentBlocks xset.Set[block.BlockID]
	prevCurrent   xset.Set[block.BlockID]

	recentVotes []block.Vote

	connections *peer.Connections
	candidates  *peer.Candidates

	filter *sendFilter
}

// NewGenesis creates the first node of a simulation, owning the whole
// namespace by itself.
func NewGenesis(ourName name.Name, params config.NodeParams, logger log.Logger, step uint64) *Node {
	s := block.NewStore()
	genesisID := s.Insert(block.Genesis(ourName))

	n := &Node{
		OurName:       ourName,
		StepAdded:     step,
		Params:        params,
		Logger:        logger,
		Store:         s,
		voteCounts:    block.VoteCounts{},
		revVoteCounts: block.VoteCounts{},
		validBlocks:   xset.Of(genesisID),
		currentBlocks: xset.Of(genesisID),
		prevCurrent:   xset.New[block.BlockID](0),
		connections:   peer.NewConnections(),
		candidates:    peer.NewCandidates(),
		filter:        newSendFilter(),
	}
	return n
}

// NewFromGenesisSet creates an active node seeded with an existing set of
// genesis blocks (e.g. the per-prefix version-0 blocks of a
// multi-section starting configuration, or the running network's
// original genesis set for a node joining later). All of them are
// immediately valid and current.
func NewFromGenesisSet(ourName name.Name, genesis []block.Block, params config.NodeParams, logger log.Logger, step uint64) *Node {
	s := block.NewStore()
	ids := xset.New[block.BlockID](len(genesis))
	for _, b := range genesis {
		ids.Add(s.Insert(b))
	}

	return &Node{
		OurName:       ourName,
		StepAdded:     step,
		Params:        params,
		Logger:        logger,
		Store:         s,
		voteCounts:    block.VoteCounts{},
		revVoteCounts: block.VoteCounts{},
		validBlocks:   ids.Clone(),
		currentBlocks: ids.Clone(),
		prevCurrent:   xset.New[block.BlockID](0),
		connections:   peer.NewConnections(),
		candidates:    peer.NewCandidates(),
		filter:        newSendFilter(),
	}
}

// NewJoining creates a node that starts with no blocks of its own; it
// becomes active once it receives a Bootstrap reply to its NodeJoined
// broadcast.
func NewJoining(ourName name.Name, params config.NodeParams, logger log.Logger, step uint64) *Node {
	return &Node{
		OurName:       ourName,
		StepAdded:     step,
		Params:        params,
		Logger:        logger,
		Store:         block.NewStore(),
		voteCounts:    block.VoteCounts{},
		revVoteCounts: block.VoteCounts{},
		validBlocks:   xset.New[block.BlockID](0),
		currentBlocks: xset.New[block.BlockID](0),
		prevCurrent:   xset.New[block.BlockID](0),
		connections:   peer.NewConnections(),
		candidates:    peer.NewCandidates(),
		filter:        newSendFilter(),
	}
}

// CurrentBlocks returns the node's current set.
func (n *Node) CurrentBlocks() xset.Set[block.BlockID] { return n.currentBlocks.Clone() }

// ValidBlocks returns the node's valid set.
func (n *Node) ValidBlocks() xset.Set[block.BlockID] { return n.validBlocks.Clone() }

// recordVote adds voter's endorsement of v to both indices and queues it
// for the next update_state pass if it is new.
func (n *Node) recordVote(v block.Vote, voter name.Name) {
	if !n.voteCounts.Add(v, voter) {
		return
	}
	n.revVoteCounts.Add(block.Vote{From: v.To, To: v.From}, voter)
	n.recentVotes = append(n.recentVotes, v)
}

// selfCast applies a proposal as if we had voted for it ourselves: it
// inserts any new block and records our own vote.
func (n *Node) selfCast(p rules.Proposal) {
	if p.NewBlock != nil {
		n.Store.Insert(*p.NewBlock)
	}
	n.recordVote(p.Vote, n.OurName)
}

// view assembles the rules.View the section-change rules need from our
// current state.
func (n *Node) view() rules.View {
	return rules.View{
		Store:          n.Store,
		OurName:        n.OurName,
		CurrentBlocks:  n.currentBlocks,
		Candidates:     n.candidates.Names(),
		Connected:      n.connections.Live,
		MinSectionSize: n.Params.MinSectionSize,
		MinSplitSize:   n.Params.MinSectionSize + n.Params.SplitBuffer,
	}
}

// UpdateState is the per-step operation: it drains recently received
// votes into the validity engine, recomputes current blocks, prunes
// irrelevant ones, reconciles connections, and generates and broadcasts
// new votes. Returns the outbound messages for the network to carry, or
// rules.ErrTooManyConflictingBlocks if a (prefix, version) pair has
// accumulated max_conflicting_blocks valid blocks — a consensus bug the
// driver should abort on rather than let the simulation run degrade
// further.
func (n *Node) UpdateState(step uint64) ([]message.Message, error) {
	newlyValid := n.drainRecentVotes()
	n.prevCurrent = n.currentBlocks.Clone()

	if err := rules.CheckConflicts(n.Store.Contents(xset.Sorted(n.validBlocks)), n.Params.MaxConflictingBlocks); err != nil {
		return nil, err
	}

	var out []message.Message

	// Broadcast agreements before pruning, so a block isn't dropped from
	// our view before we've told anyone else it became valid.
	for _, nv := range newlyValid {
		if nv.Vote.IsWitnessing(n.Store) {
			continue
		}
		out = append(out, n.broadcast(message.Content{
			Kind:     message.KindVoteAgreed,
			VoteEdge: message.VoteEdge{Vote: nv.Vote, Voters: nv.Voters},
		})...)
	}

	n.prune()
	out = append(out, n.reconcileConnections()...)

	for _, p := range rules.All(n.view()) {
		n.selfCast(p)
		out = append(out, n.broadcast(message.Content{
			Kind:     message.KindVote,
			VoteEdge: message.VoteEdge{Vote: p.Vote, Voters: xset.Of(n.OurName)},
		})...)
	}

	return n.applySendFilter(out), nil
}

// Dump renders the node's internal state for diagnosis, e.g. when the
// driver aborts on a rules.ErrTooManyConflictingBlocks.
func (n *Node) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "node %s (added at step %d)\n", n.OurName, n.StepAdded)

	fmt.Fprintf(&b, "valid blocks (%d):\n", n.validBlocks.Len())
	for _, id := range xset.Sorted(n.validBlocks) {
		blk := n.Store.MustGet(id)
		fmt.Fprintf(&b, "  %s: %s\n", id, blk.DebugString())
	}

	fmt.Fprintf(&b, "current blocks (%d):\n", n.currentBlocks.Len())
	for _, id := range xset.Sorted(n.currentBlocks) {
		blk := n.Store.MustGet(id)
		fmt.Fprintf(&b, "  %s: %s\n", id, blk.DebugString())
	}

	return b.String()
}

// drainRecentVotes feeds every vote received since the last update_state
// into the validity engine and folds newly-valid blocks into both the
// valid and current sets.
func (n *Node) drainRecentVotes() []votegraph.Vote {
	pending := n.recentVotes
	n.recentVotes = nil
	if len(pending) == 0 {
		return nil
	}

	newlyValid := votegraph.NewlyValid(n.Store, n.validBlocks, n.voteCounts, pending)
	for _, nv := range newlyValid {
		n.validBlocks.Add(nv.Vote.To)
	}

	potentiallyCurrent := n.currentBlocks.Clone()
	for _, nv := range newlyValid {
		potentiallyCurrent.Add(nv.Vote.To)
	}
	n.currentBlocks = current.Compute(n.Store, potentiallyCurrent)

	return newlyValid
}

// prune drops current blocks whose prefix is neither our own section's
// nor a neighbour of it: once our section has moved on (split, merged),
// unrelated blocks are no longer relevant to our local view.
func (n *Node) prune() {
	ourPrefixes := n.Store.OurPrefixes(xset.Sorted(n.currentBlocks), n.OurName)
	if len(ourPrefixes) == 0 {
		return
	}

	kept := xset.New[block.BlockID](n.currentBlocks.Len())
	for _, id := range xset.Sorted(n.currentBlocks) {
		b := n.Store.MustGet(id)
		relevant := false
		for _, p := range ourPrefixes {
			if b.Prefix.Equal(p) || b.Prefix.IsNeighbour(p) {
				relevant = true
				break
			}
		}
		if relevant {
			kept.Add(id)
		}
	}
	n.currentBlocks = kept
}

// reconcileConnections issues Connect to desired peers we haven't yet
// requested, and Disconnect to held connections that are no longer
// desired and aren't a live candidate.
func (n *Node) reconcileConnections() []message.Message {
	desired := xset.New[name.Name](0)
	for _, b := range n.Store.Contents(xset.Sorted(n.currentBlocks)) {
		desired.Union(b.Members)
	}
	desired.Remove(n.OurName)

	var out []message.Message
	for _, p := range xset.Sorted(desired) {
		if n.connections.RequestConnect(p) {
			out = append(out, message.Message{
				Sender: n.OurName, Recipient: p,
				Content: message.Content{Kind: message.KindConnect},
			})
		}
	}

	for _, p := range xset.Sorted(n.connections.Live) {
		if desired.Contains(p) || n.candidates.Contains(p) {
			continue
		}
		n.connections.Disconnect(p)
		out = append(out, message.Message{
			Sender: n.OurName, Recipient: p,
			Content: message.Content{Kind: message.KindDisconnect},
		})
	}

	return out
}

// broadcast computes recipients for content under the message envelope's
// policy and materializes one message per recipient.
func (n *Node) broadcast(c message.Content) []message.Message {
	recipients := message.Recipients(n.Store, n.currentBlocks, n.OurName, c)
	var out []message.Message
	for _, r := range xset.Sorted(recipients) {
		if r == n.OurName {
			continue
		}
		out = append(out, message.Message{Sender: n.OurName, Recipient: r, Content: c})
	}
	return out
}

// applySendFilter drops outbound messages identical to ones recently
// sent, except Connect/Disconnect, whose idempotence across reconnects is
// weaker than the filter assumes.
func (n *Node) applySendFilter(msgs []message.Message) []message.Message {
	var out []message.Message
	for _, m := range msgs {
		if m.Content.Kind == message.KindConnect || m.Content.Kind == message.KindDisconnect {
			out = append(out, m)
			continue
		}
		if n.filter.Admit(m.Hash()) {
			out = append(out, m)
		}
	}
	return out
}

// ShouldShutdown reports whether this node has given up: either it never
// found a current block containing it within SelfShutdownTimeout steps of
// joining, or its live connections have fallen below half of some
// current block it belongs to.
func (n *Node) ShouldShutdown(step uint64) bool {
	ourBlocks := n.Store.OurBlocks(xset.Sorted(n.currentBlocks), n.OurName)
	if len(ourBlocks) == 0 {
		return step-n.StepAdded > n.Params.SelfShutdownTimeout
	}

	for _, b := range ourBlocks {
		connected := 0
		for _, m := range xset.Sorted(b.Members) {
			if m == n.OurName || n.connections.IsConnected(m) {
				connected++
			}
		}
		if connected*2 < b.Members.Len() {
			return true
		}
	}
	return false
}
