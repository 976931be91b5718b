// Package name implements the 64-bit identifier space that section
// membership partitions, and the binary prefixes used to address regions
// of it.
package name

import (
	"fmt"
	"math/bits"
)

// Name is a node identifier drawn from the 64-bit namespace.
type Name uint64

// CommonPrefixLen returns the number of leading bits shared by n and other.
func (n Name) CommonPrefixLen(other Name) int {
	return bits.LeadingZeros64(uint64(n ^ other))
}

// Distance returns the XOR distance between n and other.
func (n Name) Distance(other Name) uint64 {
	return uint64(n ^ other)
}

// CloserTo reports whether lhs is strictly closer to n than rhs is, under
// XOR distance.
func (n Name) CloserTo(lhs, rhs Name) bool {
	return n.Distance(lhs) < n.Distance(rhs)
}

// Bit returns the i-th bit of n, counting from the most significant bit.
func (n Name) Bit(i int) bool {
	if i < 0 || i >= 64 {
		return false
	}
	return uint64(n)&(uint64(1)<<(63-i)) != 0
}

// WithBit returns a copy of n with its i-th bit (from the most significant)
// set to bit. Indices outside [0,64) leave n unchanged.
func (n Name) WithBit(i int, bit bool) Name {
	if i < 0 || i >= 64 {
		return n
	}
	mask := uint64(1) << (63 - i)
	if bit {
		return Name(uint64(n) | mask)
	}
	return Name(uint64(n) &^ mask)
}

// setRemaining returns a copy of n with the first keep bits preserved and
// the rest forced to val.
func (n Name) setRemaining(keep int, val bool) Name {
	if keep >= 64 {
		return n
	}
	mask := ^uint64(0) >> uint(keep)
	if val {
		return Name(uint64(n) | mask)
	}
	return Name(uint64(n) &^ mask)
}

func (n Name) String() string {
	return fmt.Sprintf("%016x", uint64(n))
}

// Short renders the six-hex-character truncated form the original log
// line format (and its post-processor regexes) expect, e.g. "abcdef..".
func (n Name) Short() string {
	return n.String()[:6] + ".."
}

// Prefix is a sequence of leading bits identifying a region of the
// namespace: every Name whose first BitCount bits equal Bits.
type Prefix struct {
	bitCount uint8
	bits     Name
}

// Empty is the zero-length prefix, matching every name.
var Empty = Prefix{}

// New returns the prefix made of the first bitCount bits of n, with all
// other bits canonicalized to zero.
func New(bitCount int, n Name) Prefix {
	return Prefix{
		bitCount: uint8(bitCount),
		bits:     n.setRemaining(bitCount, false),
	}
}

// BitCount returns the number of significant bits in the prefix.
func (p Prefix) BitCount() int {
	return int(p.bitCount)
}

// Bits returns the canonical (trailing-zeroed) bit pattern of the prefix.
func (p Prefix) Bits() Name {
	return p.bits
}

// Pushed returns p with an extra bit appended.
func (p Prefix) Pushed(bit bool) Prefix {
	return Prefix{
		bitCount: p.bitCount + 1,
		bits:     p.bits.WithBit(int(p.bitCount), bit),
	}
}

// Popped returns p with its last bit removed, or p unchanged if it is
// already Empty.
func (p Prefix) Popped() Prefix {
	if p.bitCount == 0 {
		return p
	}
	newCount := p.bitCount - 1
	return Prefix{
		bitCount: newCount,
		bits:     p.bits.WithBit(int(newCount), false),
	}
}

// Sibling returns the prefix differing from p only in its final bit, and
// false if p is Empty (which has no sibling).
func (p Prefix) Sibling() (Prefix, bool) {
	if p.bitCount == 0 {
		return Prefix{}, false
	}
	lastIdx := int(p.bitCount) - 1
	return Prefix{
		bitCount: p.bitCount,
		bits:     p.bits.WithBit(lastIdx, !p.bits.Bit(lastIdx)),
	}, true
}

// Matches reports whether n falls within p's region of the namespace.
func (p Prefix) Matches(n Name) bool {
	return p.bits.CommonPrefixLen(n) >= int(p.bitCount)
}

// IsCompatible reports whether one of p, other is a prefix of the other.
func (p Prefix) IsCompatible(other Prefix) bool {
	common := p.bits.CommonPrefixLen(other.bits)
	return common >= int(p.bitCount) || common >= int(other.bitCount)
}

// IsPrefixOf reports whether p is a prefix of other (p is shallower than or
// equal to other and matches it).
func (p Prefix) IsPrefixOf(other Prefix) bool {
	return p.bits.CommonPrefixLen(other.bits) >= int(p.bitCount) && p.bitCount <= other.bitCount
}

// Equal reports structural equality on (bitCount, canonical bits).
func (p Prefix) Equal(other Prefix) bool {
	return p.bitCount == other.bitCount && p.IsCompatible(other)
}

// IsNeighbour reports whether p and other have the same depth and differ
// in exactly one bit among their significant bits.
func (p Prefix) IsNeighbour(other Prefix) bool {
	if p.bitCount != other.bitCount {
		return false
	}
	diff := uint64(p.bits ^ other.bits)
	if p.bitCount < 64 {
		diff &^= ^uint64(0) >> p.bitCount // ignore insignificant (trailing) bits
	}
	return bits.OnesCount64(diff) == 1
}

// IsSiblingOfAncestorOf reports whether p is the sibling of other or of
// one of other's ancestors: i.e. other's prefix tree branches away from p
// at p's depth. These are the blocks whose membership must stay above the
// split threshold for other to split.
func (p Prefix) IsSiblingOfAncestorOf(other Prefix) bool {
	for depth := other.bitCount; ; depth-- {
		ancestor := truncate(other, int(depth))
		if sib, ok := ancestor.Sibling(); ok && sib.Equal(p) {
			return true
		}
		if depth == 0 {
			return false
		}
	}
}

func truncate(p Prefix, bitCount int) Prefix {
	if bitCount >= int(p.bitCount) {
		return p
	}
	return New(bitCount, p.bits)
}

// IsCoveredBy reports whether the prefixes in set, taken together, subsume
// p: some prefix in set is compatible with p and no deeper, or both of p's
// children are (recursively) covered.
func (p Prefix) IsCoveredBy(set []Prefix) bool {
	for _, q := range set {
		if p.IsCompatible(q) && q.bitCount <= p.bitCount {
			return true
		}
	}
	// No prefix in set compresses all the way up to p. p is only covered
	// if both of its children are, recursively — and that bottoms out
	// once we run off the end of the namespace with nothing left to cover us.
	if p.bitCount >= 64 {
		return false
	}
	return p.Pushed(false).IsCoveredBy(set) && p.Pushed(true).IsCoveredBy(set)
}

func (p Prefix) String() string {
	s := make([]byte, p.bitCount)
	for i := range s {
		if p.bits.Bit(i) {
			s[i] = '1'
		} else {
			s[i] = '0'
		}
	}
	return fmt.Sprintf("Prefix(%s)", s)
}
