// Package xset provides a small generic set, used throughout ewok for
// member sets, voter sets, and connection sets. Block identity and the
// lexicographic membership ordering used by the current-block selector
// both need a deterministic iteration order, so this package favours the
// sorted view returned by Sorted over the teacher's random Peek()/Pop().
package xset

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

const minSetSize = 16

// Set is a set of elements.
type Set[T comparable] map[T]struct{}

// Of returns a Set initialized with elts.
func Of[T comparable](elts ...T) Set[T] {
	s := New[T](len(elts))
	s.Add(elts...)
	return s
}

// New returns a new set with initial capacity size.
func New[T comparable](size int) Set[T] {
	if size < 0 {
		return Set[T]{}
	}
	return make(map[T]struct{}, size)
}

func (s *Set[T]) resize(size int) {
	if *s == nil {
		if size < minSetSize {
			size = minSetSize
		}
		*s = make(map[T]struct{}, size)
	}
}

// Add inserts elts into the set.
func (s *Set[T]) Add(elts ...T) {
	s.resize(2 * len(elts))
	for _, elt := range elts {
		(*s)[elt] = struct{}{}
	}
}

// Union adds every element of other into s.
func (s *Set[T]) Union(other Set[T]) {
	s.resize(2 * other.Len())
	for elt := range other {
		(*s)[elt] = struct{}{}
	}
}

// Intersect returns a new set holding only elements present in both s and other.
func (s Set[T]) Intersect(other Set[T]) Set[T] {
	small, big := s, other
	if small.Len() > big.Len() {
		small, big = big, small
	}
	result := New[T](small.Len())
	for elt := range small {
		if _, ok := big[elt]; ok {
			result.Add(elt)
		}
	}
	return result
}

// Difference removes every element of other from s.
func (s *Set[T]) Difference(other Set[T]) {
	for elt := range other {
		delete(*s, elt)
	}
}

// SymmetricDifference returns the elements present in exactly one of s, other.
func (s Set[T]) SymmetricDifference(other Set[T]) Set[T] {
	result := New[T](s.Len() + other.Len())
	for elt := range s {
		if _, ok := other[elt]; !ok {
			result.Add(elt)
		}
	}
	for elt := range other {
		if _, ok := s[elt]; !ok {
			result.Add(elt)
		}
	}
	return result
}

// Contains returns true iff the set contains elt.
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// Overlaps returns true if s and other share any element.
func (s Set[T]) Overlaps(other Set[T]) bool {
	small, big := s, other
	if small.Len() > big.Len() {
		small, big = big, small
	}
	for elt := range small {
		if _, ok := big[elt]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of elements in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// Remove deletes elts from the set.
func (s *Set[T]) Remove(elts ...T) {
	for _, elt := range elts {
		delete(*s, elt)
	}
}

// Equals returns true if s and other contain the same elements.
func (s Set[T]) Equals(other Set[T]) bool {
	return maps.Equal(s, other)
}

// Clone returns a shallow copy of the set.
func (s Set[T]) Clone() Set[T] {
	return maps.Clone(s)
}

// Sorted returns the set's elements in ascending order. Used wherever the
// spec requires a canonical, hashable, or lexicographically-comparable
// view of a member set (block ids, membership comparisons in outranks).
func Sorted[T cmp.Ordered](s Set[T]) []T {
	elts := maps.Keys(s)
	slices.Sort(elts)
	return elts
}

func (s Set[T]) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for _, elt := range s.unsortedList() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%v", elt)
	}
	sb.WriteString("}")
	return sb.String()
}

func (s Set[T]) unsortedList() []T {
	return maps.Keys(s)
}
