// Package block defines the content-addressed Block type and the
// insert-only store that nodes use to hold every block they've ever seen,
// valid or not.
package block

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

// BlockID is the content address of a Block: a hash of its prefix,
// version and sorted member set. Blocks are immutable once inserted, so
// the id never needs recomputing.
type BlockID uint64

func (id BlockID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}

// Block is a single proposed state of a section: the set of nodes that
// believe they own a given prefix of the namespace, at a given version.
type Block struct {
	Prefix  name.Prefix
	Version uint64
	Members xset.Set[name.Name]
}

// Genesis returns the single-member, version-0 block that seeds a
// simulation: the whole namespace, owned by one node.
func Genesis(n name.Name) Block {
	return Block{
		Prefix:  name.Empty,
		Version: 0,
		Members: xset.Of(n),
	}
}

// AddNode returns the successor block with added inserted into the
// membership, one version on.
func (b Block) AddNode(added name.Name) Block {
	members := b.Members.Clone()
	members.Add(added)
	return Block{Prefix: b.Prefix, Version: b.Version + 1, Members: members}
}

// RemoveNode returns the successor block with removed deleted from the
// membership, one version on. removed must be a current member.
func (b Block) RemoveNode(removed name.Name) Block {
	members := b.Members.Clone()
	members.Remove(removed)
	return Block{Prefix: b.Prefix, Version: b.Version + 1, Members: members}
}

// ID computes the block's content address.
func (b Block) ID() BlockID {
	h := fnv.New64a()
	var buf [8]byte
	putUint64(buf[:], b.Prefix.Bits())
	h.Write(buf[:])
	h.Write([]byte{byte(b.Prefix.BitCount())})
	putUint64(buf[:], name.Name(b.Version))
	h.Write(buf[:])
	for _, m := range xset.Sorted(b.Members) {
		putUint64(buf[:], m)
		h.Write(buf[:])
	}
	return BlockID(h.Sum64())
}

// DebugString renders b in the exact format the original analysis
// tooling's log-line regexes expect (see log_parse.rs's AGREEMENT_RE).
func (b Block) DebugString() string {
	members := make([]string, 0, b.Members.Len())
	for _, m := range xset.Sorted(b.Members) {
		members = append(members, m.Short())
	}
	return fmt.Sprintf("Block { prefix: %s, version: %d, members: {%s} }", b.Prefix, b.Version, strings.Join(members, ", "))
}

func putUint64(buf []byte, n name.Name) {
	v := uint64(n)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

// IsAdmissibleAfter reports whether b is a legitimate direct successor of
// other: strictly newer, and related by exactly one of the add/remove,
// split or merge member-set transformations.
func (b Block) IsAdmissibleAfter(other Block) bool {
	if b.Version <= other.Version {
		return false
	}

	switch {
	case b.Prefix.Equal(other.Prefix):
		// Add/remove case: membership changes by exactly one name.
		return b.Members.SymmetricDifference(other.Members).Len() == 1

	case other.Prefix.Equal(b.Prefix.Popped()):
		// Split case: b keeps only other's members matching its (longer) prefix.
		return sameMembers(b.Members, filterMatching(other.Members, b.Prefix))

	case b.Prefix.Equal(other.Prefix.Popped()):
		// Merge case: other keeps only b's members matching its (longer) prefix.
		return sameMembers(other.Members, filterMatching(b.Members, other.Prefix))

	default:
		return false
	}
}

func filterMatching(members xset.Set[name.Name], p name.Prefix) xset.Set[name.Name] {
	out := xset.New[name.Name](members.Len())
	for _, m := range xset.Sorted(members) {
		if p.Matches(m) {
			out.Add(m)
		}
	}
	return out
}

func sameMembers(a, b xset.Set[name.Name]) bool {
	return a.Equals(b)
}

// Outranks reports whether other should be dropped from the current-block
// set when b is also a current candidate: b wins ties on membership size,
// then lexicographic membership order, and otherwise the shallower of two
// compatible prefixes wins (the parent that hasn't finished splitting, or
// the merge target).
func (b Block) Outranks(other Block) bool {
	if b.Prefix.Equal(other.Prefix) {
		if b.Members.Len() != other.Members.Len() {
			return b.Members.Len() > other.Members.Len()
		}
		return lexicographicallyGreater(xset.Sorted(b.Members), xset.Sorted(other.Members))
	}
	return b.Prefix.IsCompatible(other.Prefix) && b.Prefix.BitCount() < other.Prefix.BitCount()
}

func lexicographicallyGreater(a, b []name.Name) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) > len(b)
}

// Vote is a directed edge in the vote graph: a claim that the block from
// should be succeeded by the block to.
type Vote struct {
	From BlockID
	To   BlockID
}

// IsWitnessing reports whether this vote is a witness edge: a neighbour
// prefix simply acknowledging from, rather than a genuine successor
// relationship requiring admissibility.
func (v Vote) IsWitnessing(s *Store) bool {
	from, okFrom := s.Get(v.From)
	to, okTo := s.Get(v.To)
	if !okFrom || !okTo {
		return false
	}
	return to.Prefix.IsNeighbour(from.Prefix)
}

// IsQuorumOf reports whether voters forms a strict majority of members.
func IsQuorumOf(voters, members xset.Set[name.Name]) bool {
	validVoters := voters.Intersect(members)
	return validVoters.Len()*2 > members.Len()
}
