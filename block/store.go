package block

import (
	"sync"

	"github.com/michaelsproul/ewok/internal/xset"
	"github.com/michaelsproul/ewok/name"
)

// VoteCounts indexes votes by from -> to -> voters. It only ever grows:
// once a name is recorded as having voted for an edge, it stays recorded.
type VoteCounts map[BlockID]map[BlockID]xset.Set[name.Name]

// Add records that voter cast vote v, returning true if this voter's
// support for the edge is new.
func (vc VoteCounts) Add(v Vote, voter name.Name) bool {
	inner, ok := vc[v.From]
	if !ok {
		inner = make(map[BlockID]xset.Set[name.Name])
		vc[v.From] = inner
	}
	voters, ok := inner[v.To]
	if !ok {
		voters = xset.New[name.Name](1)
		inner[v.To] = voters
	}
	if voters.Contains(voter) {
		return false
	}
	voters.Add(voter)
	return true
}

// Voters returns the set of names recorded as having cast v.
func (vc VoteCounts) Voters(v Vote) xset.Set[name.Name] {
	if inner, ok := vc[v.From]; ok {
		if voters, ok := inner[v.To]; ok {
			return voters
		}
	}
	return xset.New[name.Name](0)
}

// Successors returns every to-block recorded as a vote target from id,
// paired with its voter set.
func (vc VoteCounts) Successors(id BlockID) map[BlockID]xset.Set[name.Name] {
	return vc[id]
}

// Store is the insert-only, concurrency-safe table of every block a node
// has ever learned about, keyed by content address.
type Store struct {
	mu     sync.RWMutex
	blocks map[BlockID]Block
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{blocks: make(map[BlockID]Block)}
}

// Insert adds block to the store if not already present, and returns its id.
func (s *Store) Insert(b Block) BlockID {
	id := b.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[id]; !ok {
		s.blocks[id] = b
	}
	return id
}

// Get looks up a block by id.
func (s *Store) Get(id BlockID) (Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	return b, ok
}

// MustGet looks up a block by id, panicking if it is unknown. Used where
// the caller holds an id that was obtained from this same store (e.g. a
// vote's From/To) and its absence indicates a programming error.
func (s *Store) MustGet(id BlockID) Block {
	b, ok := s.Get(id)
	if !ok {
		panic("block: unknown block id " + id.String())
	}
	return b
}

// Contents resolves a slice of ids into their blocks, in the same order.
func (s *Store) Contents(ids []BlockID) []Block {
	out := make([]Block, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.MustGet(id))
	}
	return out
}

// OurBlocks returns the blocks among ids that ourName belongs to.
func (s *Store) OurBlocks(ids []BlockID, ourName name.Name) []Block {
	var out []Block
	for _, b := range s.Contents(ids) {
		if b.Members.Contains(ourName) {
			out = append(out, b)
		}
	}
	return out
}

// OurPrefixes returns the distinct prefixes of OurBlocks.
func (s *Store) OurPrefixes(ids []BlockID, ourName name.Name) []name.Prefix {
	var out []name.Prefix
	for _, b := range s.OurBlocks(ids, ourName) {
		out = append(out, b.Prefix)
	}
	return out
}

