// Package votegraph computes which blocks become valid as new votes
// arrive, by walking forward from the already-valid frontier along
// quorum-backed, admissible (or neighbour-witnessing) edges.
package votegraph

import (
	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

// Vote pairs a graph edge with the voters recorded for it at the time it
// was discovered.
type Vote struct {
	Vote   block.Vote
	Voters xset.Set[name.Name]
}

// NewlyValid returns the votes whose To block becomes valid as a result of
// newVotes having just been recorded in voteCounts, expanding outward from
// any edge that starts at an already-valid block.
//
// voteCounts must already include newVotes, while validBlocks is the set
// that was valid before them (a block already in it is never reported);
// this walks the graph rather than recomputing it, so it is cheap to call
// after every single vote.
func NewlyValid(s *block.Store, validBlocks xset.Set[block.BlockID], voteCounts block.VoteCounts, newVotes []block.Vote) []Vote {
	frontier := map[block.Vote]xset.Set[name.Name]{}
	for _, nv := range newVotes {
		if validBlocks.Contains(nv.From) {
			frontier[block.Vote{From: nv.From, To: nv.From}] = xset.New[name.Name](0)
		}
	}

	visitedEdges := xset.New[block.Vote](len(frontier))
	var newlyValid []Vote

	for len(frontier) > 0 {
		newFrontier := map[block.Vote]xset.Set[name.Name]{}

		for v := range frontier {
			visitedEdges.Add(v)
		}

		for v, voters := range frontier {
			for _, succ := range successors(s, voteCounts, v.To) {
				if !visitedEdges.Contains(succ.Vote) {
					newFrontier[succ.Vote] = succ.Voters
				}
			}
			if !validBlocks.Contains(v.To) {
				newlyValid = append(newlyValid, Vote{Vote: v, Voters: voters})
			}
		}

		frontier = newFrontier
	}

	return newlyValid
}

// successors returns quorum-backed votes for blocks that succeed from,
// where succeeding means either witnessing (a neighbour prefix) or a
// genuinely admissible direct successor.
func successors(s *block.Store, voteCounts block.VoteCounts, from block.BlockID) []Vote {
	fromBlock := s.MustGet(from)

	var out []Vote
	for to, voters := range voteCounts.Successors(from) {
		toBlock := s.MustGet(to)
		if !(toBlock.Prefix.IsNeighbour(fromBlock.Prefix) || toBlock.IsAdmissibleAfter(fromBlock)) {
			continue
		}
		if !block.IsQuorumOf(voters, fromBlock.Members) {
			continue
		}
		out = append(out, Vote{Vote: block.Vote{From: from, To: to}, Voters: voters})
	}
	return out
}
