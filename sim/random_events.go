package sim

import (
	"github.com/michaelsproul/ewok/config"
	"github.com/michaelsproul/ewok/internal/randsrc"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
	"github.com/michaelsproul/ewok/node"
)

// RandomEvents samples membership churn for the current phase's event
// probabilities.
type RandomEvents struct {
	nodeParams config.NodeParams
	rng        *randsrc.Source
}

// NewRandomEvents returns a sampler bound to rng and nodeParams.
func NewRandomEvents(nodeParams config.NodeParams, rng *randsrc.Source) *RandomEvents {
	return &RandomEvents{nodeParams: nodeParams, rng: rng}
}

// Sample draws this step's random events given probs, the live node set.
func (r *RandomEvents) Sample(probs config.EventProbabilities, nodes map[name.Name]*node.Node) []Event {
	var events []Event

	if r.rng.WithProbability(probs.Join) {
		events = append(events, Event{Kind: EventAddNode, Name: name.Name(r.rng.Uint64())})
	}

	if r.rng.WithProbability(probs.Drop) {
		if target, ok := r.findNodeToRemove(nodes); ok {
			events = append(events, Event{Kind: EventRemoveNode, Name: target})
		}
	}

	return events
}

// findNodeToRemove picks a random node whose current section keeps more
// than a quorum of live members after losing it, the quorum being taken
// over the larger of the section's recorded size and the minimum section
// size. It does not keep the section at or above the minimum section
// size. This is the quorum-aware variant of the historical ambiguity
// around this function (spec's Open Question (c)).
func (r *RandomEvents) findNodeToRemove(nodes map[name.Name]*node.Node) (name.Name, bool) {
	candidates := make([]name.Name, 0, len(nodes))
	for n := range nodes {
		candidates = append(candidates, n)
	}
	r.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	liveNames := xset.New[name.Name](len(nodes))
	for n := range nodes {
		liveNames.Add(n)
	}

	for _, candidate := range candidates {
		n := nodes[candidate]
		ourBlocks := n.Store.OurBlocks(xset.Sorted(n.CurrentBlocks()), candidate)
		if len(ourBlocks) == 0 {
			continue
		}
		ourBlock := ourBlocks[0]

		numLive := 0
		for _, m := range xset.Sorted(ourBlock.Members) {
			if liveNames.Contains(m) {
				numLive++
			}
		}

		expectedSize := ourBlock.Members.Len()
		if r.nodeParams.MinSectionSize > expectedSize {
			expectedSize = r.nodeParams.MinSectionSize
		}
		minNodes := quorumSize(expectedSize)

		if numLive >= minNodes+2 {
			return candidate, true
		}
	}

	return name.Name(0), false
}

// quorumSize returns the smallest count that forms a strict majority of n.
func quorumSize(n int) int {
	return n/2 + 1
}
