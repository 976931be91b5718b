package sim

import (
	"fmt"

	"github.com/luxfi/log"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/config"
	"github.com/michaelsproul/ewok/internal/randsrc"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
	"github.com/michaelsproul/ewok/node"
)

// maxNameGuesses bounds the retries generateNameWithPrefix spends trying
// to land a random name inside a requested prefix.
const maxNameGuesses = 1000

// GenerateNetwork builds a node table and genesis block set matching the
// requested per-prefix section sizes. sections must cover the whole
// namespace under name.Empty.IsCoveredBy.
func GenerateNetwork(sections map[name.Prefix]int, params config.NodeParams, logger log.Logger, rng *randsrc.Source, step uint64) (map[name.Name]*node.Node, []block.Block, error) {
	prefixes := make([]name.Prefix, 0, len(sections))
	for p := range sections {
		prefixes = append(prefixes, p)
	}
	if !name.Empty.IsCoveredBy(prefixes) {
		return nil, nil, fmt.Errorf("sim: sections do not cover the whole namespace")
	}

	genesis := make([]block.Block, 0, len(sections))
	membersByPrefix := make(map[name.Prefix]xset.Set[name.Name], len(sections))

	for p, size := range sections {
		members := xset.New[name.Name](size)
		for len(members) < size {
			n, err := generateNameWithPrefix(p, rng)
			if err != nil {
				return nil, nil, err
			}
			members.Add(n)
		}
		membersByPrefix[p] = members
		genesis = append(genesis, block.Block{Prefix: p, Version: 0, Members: members})
	}

	nodes := make(map[name.Name]*node.Node)
	for _, members := range membersByPrefix {
		for _, n := range xset.Sorted(members) {
			nodes[n] = node.NewFromGenesisSet(n, genesis, params, logger, step)
		}
	}

	return nodes, genesis, nil
}

func generateNameWithPrefix(p name.Prefix, rng *randsrc.Source) (name.Name, error) {
	for i := 0; i < maxNameGuesses; i++ {
		candidate := name.Name(rng.Uint64())
		if p.Matches(candidate) {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("sim: couldn't generate a name matching %s", p)
}
