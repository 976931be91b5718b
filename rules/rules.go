// Package rules generates the votes a node proposes from its local view:
// admitting candidates, dropping unreachable peers, splitting oversized
// sections, merging undersized ones, and witnessing other sections'
// progress.
package rules

import (
	"errors"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

// ErrTooManyConflictingBlocks is returned when a single (prefix, version)
// pair accumulates max_conflicting_blocks or more distinct valid blocks —
// the consensus invariant that at most one block should ever be valid per
// (prefix, version) has broken down, and continuing would just pile up
// more forks.
var ErrTooManyConflictingBlocks = errors.New("rules: too many conflicting blocks for one (prefix, version)")

// CheckConflicts counts validBlocks by (prefix, version) and returns
// ErrTooManyConflictingBlocks if any group reaches max.
func CheckConflicts(validBlocks []block.Block, max int) error {
	type key struct {
		prefix  name.Prefix
		version uint64
	}
	counts := make(map[key]int, len(validBlocks))
	for _, b := range validBlocks {
		k := key{prefix: b.Prefix, version: b.Version}
		counts[k]++
		if counts[k] >= max {
			return ErrTooManyConflictingBlocks
		}
	}
	return nil
}

// View is the slice of a node's state the rules need: which blocks it's
// in, which blocks are current, its connections and candidates.
type View struct {
	Store          *block.Store
	OurName        name.Name
	CurrentBlocks  xset.Set[block.BlockID]
	Candidates     xset.Set[name.Name]
	Connected      xset.Set[name.Name]
	MinSectionSize int
	MinSplitSize   int
}

// Proposal is a vote together with the block it introduces, if any. Rules
// that invent brand new content (add/drop/split/merge) populate NewBlock
// so the caller can insert it before recording the vote; Witness targets
// an already-current block and leaves it nil.
type Proposal struct {
	Vote     block.Vote
	NewBlock *block.Block
}

// Add proposes admitting each pending candidate into each of our blocks
// that it belongs under, provided that block isn't already splittable
// (admitting a node into a block we're about to split just creates churn
// we'll immediately have to split again).
func Add(v View) []Proposal {
	var out []Proposal
	for _, b := range v.Store.OurBlocks(xset.Sorted(v.CurrentBlocks), v.OurName) {
		if shouldSplit(b, v.MinSplitSize) {
			continue
		}
		for _, c := range xset.Sorted(v.Candidates) {
			if b.Members.Contains(c) || !b.Prefix.Matches(c) {
				continue
			}
			next := b.AddNode(c)
			out = append(out, Proposal{Vote: block.Vote{From: b.ID(), To: next.ID()}, NewBlock: &next})
		}
	}
	return out
}

// Drop proposes removing members of our blocks that we're not connected
// to and that aren't pending candidates (a candidate still establishing
// its connections shouldn't be evicted for the gap).
func Drop(v View) []Proposal {
	var out []Proposal
	for _, b := range v.Store.OurBlocks(xset.Sorted(v.CurrentBlocks), v.OurName) {
		for _, p := range xset.Sorted(b.Members) {
			if p == v.OurName || v.Connected.Contains(p) || v.Candidates.Contains(p) {
				continue
			}
			next := b.RemoveNode(p)
			out = append(out, Proposal{Vote: block.Vote{From: b.ID(), To: next.ID()}, NewBlock: &next})
		}
	}
	return out
}

func shouldSplit(b block.Block, minSplitSize int) bool {
	p0 := b.Prefix.Pushed(false)
	p1 := b.Prefix.Pushed(true)
	var n0, n1 int
	for _, m := range xset.Sorted(b.Members) {
		if p0.Matches(m) {
			n0++
		} else {
			n1++
		}
	}
	return n0 >= minSplitSize && n1 >= minSplitSize
}

// Split proposes splitting each of our blocks whose both halves, and
// every current block neighbouring it in the prefix tree, already meet
// the minimum split size.
func Split(v View) []Proposal {
	var out []Proposal
	for _, b := range v.Store.OurBlocks(xset.Sorted(v.CurrentBlocks), v.OurName) {
		if !shouldSplit(b, v.MinSplitSize) || !neighboursOK(v, b) {
			continue
		}

		p0 := b.Prefix.Pushed(false)
		p1 := b.Prefix.Pushed(true)
		m0 := xset.New[name.Name](0)
		m1 := xset.New[name.Name](0)
		for _, m := range xset.Sorted(b.Members) {
			if p0.Matches(m) {
				m0.Add(m)
			} else {
				m1.Add(m)
			}
		}

		b0 := block.Block{Prefix: p0, Version: b.Version + 1, Members: m0}
		b1 := block.Block{Prefix: p1, Version: b.Version + 1, Members: m1}
		out = append(out, Proposal{Vote: block.Vote{From: b.ID(), To: b0.ID()}, NewBlock: &b0})
		out = append(out, Proposal{Vote: block.Vote{From: b.ID(), To: b1.ID()}, NewBlock: &b1})
	}
	return out
}

// neighboursOK requires every current block that is a sibling of b or one
// of b's ancestors to already be at the split threshold, so a split
// doesn't immediately strand a neighbouring section below minimum size.
func neighboursOK(v View, b block.Block) bool {
	for _, other := range v.Store.Contents(xset.Sorted(v.CurrentBlocks)) {
		if other.Prefix.IsSiblingOfAncestorOf(b.Prefix) && other.Members.Len() < v.MinSplitSize {
			return false
		}
	}
	return true
}

// MergeSize proposes merging every current block below min section size
// with its sibling(s), from whichever side of the merge we're on.
func MergeSize(v View) []Proposal {
	var out []Proposal
	current := v.Store.Contents(xset.Sorted(v.CurrentBlocks))

	small := findSmallBlocks(current, v.MinSectionSize)
	for _, candidate := range small {
		sib, ok := candidate.Prefix.Sibling()
		if !ok {
			continue
		}

		if candidate.Members.Contains(v.OurName) {
			for _, sibBlock := range blocksForPrefix(current, sib) {
				target := mergedBlock(candidate, sibBlock)
				out = append(out, Proposal{Vote: block.Vote{From: candidate.ID(), To: target.ID()}, NewBlock: &target})
			}
			continue
		}

		for _, ourBlock := range v.Store.OurBlocks(xset.Sorted(v.CurrentBlocks), v.OurName) {
			if !sib.IsPrefixOf(ourBlock.Prefix) {
				continue
			}
			blockSib, ok := ourBlock.Prefix.Sibling()
			if !ok {
				continue
			}
			for _, sibBlock := range blocksForPrefix(current, blockSib) {
				target := mergedBlock(sibBlock, ourBlock)
				out = append(out, Proposal{Vote: block.Vote{From: ourBlock.ID(), To: target.ID()}, NewBlock: &target})
			}
		}
	}
	return out
}

// MergeForce proposes merging a current block whose connected membership
// has fallen to or below half its recorded size: a deadlock-breaker for
// partitions that merge-by-size can't see because the block's membership
// list still looks large on paper.
func MergeForce(v View) []Proposal {
	var out []Proposal
	current := v.Store.Contents(xset.Sorted(v.CurrentBlocks))

	for _, b := range current {
		if !b.Members.Contains(v.OurName) {
			continue
		}
		connectedCount := 0
		for _, m := range xset.Sorted(b.Members) {
			if m == v.OurName || v.Connected.Contains(m) {
				connectedCount++
			}
		}
		if connectedCount*2 > b.Members.Len() {
			continue
		}

		sib, ok := b.Prefix.Sibling()
		if !ok {
			continue
		}
		for _, sibBlock := range blocksForPrefix(current, sib) {
			target := mergedBlock(b, sibBlock)
			out = append(out, Proposal{Vote: block.Vote{From: b.ID(), To: target.ID()}, NewBlock: &target})
		}
	}
	return out
}

// Witness proposes witness edges from our own current blocks to current
// blocks in sections we don't belong to, carrying evidence across the
// section boundary without asserting succession. The target block is
// already current, so no NewBlock is attached.
func Witness(v View) []Proposal {
	var out []Proposal
	current := v.Store.Contents(xset.Sorted(v.CurrentBlocks))
	ourBlocks := v.Store.OurBlocks(xset.Sorted(v.CurrentBlocks), v.OurName)

	for _, b := range current {
		if b.Members.Contains(v.OurName) {
			continue
		}
		for _, ourBlock := range ourBlocks {
			if ourBlock.Prefix.IsNeighbour(b.Prefix) {
				out = append(out, Proposal{Vote: block.Vote{From: ourBlock.ID(), To: b.ID()}})
			}
		}
	}
	return out
}

func findSmallBlocks(current []block.Block, minSectionSize int) []block.Block {
	var out []block.Block
	for _, b := range current {
		if b.Prefix.BitCount() > 0 && b.Members.Len() < minSectionSize {
			out = append(out, b)
		}
	}
	return out
}

func blocksForPrefix(current []block.Block, p name.Prefix) []block.Block {
	var out []block.Block
	for _, b := range current {
		if b.Prefix.Equal(p) {
			out = append(out, b)
		}
	}
	return out
}

// mergedBlock combines two sibling blocks into their shared-parent
// successor: one version past the newer of the two, with the union of
// their members.
func mergedBlock(b0, b1 block.Block) block.Block {
	members := b0.Members.Clone()
	members.Union(b1.Members)
	version := b0.Version
	if b1.Version > version {
		version = b1.Version
	}
	return block.Block{Prefix: b0.Prefix.Popped(), Version: version + 1, Members: members}
}

// All runs every rule in the order the node state machine applies them
// and concatenates their output.
func All(v View) []Proposal {
	var out []Proposal
	out = append(out, Add(v)...)
	out = append(out, Drop(v)...)
	out = append(out, Split(v)...)
	out = append(out, MergeSize(v)...)
	out = append(out, MergeForce(v)...)
	out = append(out, Witness(v)...)
	return out
}
