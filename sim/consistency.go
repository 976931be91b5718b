package sim

import (
	"fmt"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
	"github.com/michaelsproul/ewok/node"
)

// CheckConsistency verifies that every live node's current blocks agree,
// prefix by prefix, that the resulting sections do not overlap and meet
// the minimum section size, and that every member is a live node. It does
// not check that the sections cover the whole namespace. Returns the final
// prefix -> block map on success.
func CheckConsistency(nodes map[name.Name]*node.Node, minSectionSize int) (map[name.Prefix]block.Block, error) {
	sections := map[name.Prefix]map[block.BlockID]block.Block{}

	for _, n := range nodes {
		for _, b := range n.Store.Contents(xset.Sorted(n.CurrentBlocks())) {
			if sections[b.Prefix] == nil {
				sections[b.Prefix] = map[block.BlockID]block.Block{}
			}
			sections[b.Prefix][b.ID()] = b
		}
	}

	numSections := len(sections)
	result := make(map[name.Prefix]block.Block, numSections)
	var problems []string

	for prefix, versions := range sections {
		if len(versions) > 1 {
			problems = append(problems, fmt.Sprintf("multiple versions of %s", prefix))
			continue
		}

		var b block.Block
		for _, only := range versions {
			b = only
		}

		switch {
		case numSections == 1 && b.Members.Len()*2 <= minSectionSize:
			problems = append(problems, fmt.Sprintf("section %s too small: %d members", prefix, b.Members.Len()))
		case numSections > 1 && b.Members.Len() < minSectionSize:
			problems = append(problems, fmt.Sprintf("section %s too small: %d members", prefix, b.Members.Len()))
		}

		for _, member := range xset.Sorted(b.Members) {
			if _, alive := nodes[member]; !alive {
				problems = append(problems, fmt.Sprintf("node %s is dead but appears in block for %s", member, prefix))
			}
		}

		result[prefix] = b
	}

	prefixes := make([]name.Prefix, 0, len(result))
	for p := range result {
		prefixes = append(prefixes, p)
	}
	for i := 0; i < len(prefixes); i++ {
		for j := i + 1; j < len(prefixes); j++ {
			if prefixes[i].IsCompatible(prefixes[j]) {
				problems = append(problems, fmt.Sprintf("prefixes %s and %s overlap", prefixes[i], prefixes[j]))
			}
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("network not consistent: %v", problems)
	}
	return result, nil
}
