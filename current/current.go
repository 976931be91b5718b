// Package current selects the "current" blocks from the set of valid
// blocks: the most up to date, most specific view of section membership,
// in two passes.
package current

import (
	"sort"

	"github.com/michaelsproul/ewok/block"
	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

// Candidates performs the first pass: starting from the newest blocks and
// working backward by version, keep a block only if its prefix isn't
// already covered by the prefixes of newer blocks already kept.
func Candidates(s *block.Store, validBlocks xset.Set[block.BlockID]) xset.Set[block.BlockID] {
	byVersion := map[uint64][]block.BlockID{}
	versions := xset.New[uint64](0)
	for id := range validBlocks {
		v := s.MustGet(id).Version
		byVersion[v] = append(byVersion[v], id)
		versions.Add(v)
	}

	sortedVersions := xset.Sorted(versions)
	candidates := xset.New[block.BlockID](0)
	var currentPfxs []name.Prefix

	for i := len(sortedVersions) - 1; i >= 0; i-- {
		ids := byVersion[sortedVersions[i]]
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		for _, id := range ids {
			b := s.MustGet(id)
			if !b.Prefix.IsCoveredBy(currentPfxs) {
				candidates.Add(id)
				currentPfxs = append(currentPfxs, b.Prefix)
			}
		}
	}

	return candidates
}

// Select performs the second pass: from the candidate set, drop any block
// that is outranked by another candidate (smaller membership on the same
// prefix, or a deeper prefix nested inside one that's still current).
func Select(s *block.Store, candidates xset.Set[block.BlockID]) xset.Set[block.BlockID] {
	blocks := s.Contents(xset.Sorted(candidates))
	result := xset.New[block.BlockID](candidates.Len())

	for _, b := range blocks {
		outranked := false
		for _, c := range blocks {
			if c.Outranks(b) {
				outranked = true
				break
			}
		}
		if !outranked {
			result.Add(b.ID())
		}
	}

	return result
}

// Compute runs both passes, returning the current blocks for validBlocks.
func Compute(s *block.Store, validBlocks xset.Set[block.BlockID]) xset.Set[block.BlockID] {
	return Select(s, Candidates(s, validBlocks))
}
