// Package setutil provides a small generic set for id collections.
package setutil

import (
	"cmp"
	"maps"
	"slices"
)

// Set is an unordered collection of distinct values. The zero value is not
// usable; build one with New.
type Set[T cmp.Ordered] struct {
	items map[T]struct{}
}

// New returns a set holding vals.
func New[T cmp.Ordered](vals ...T) *Set[T] {
	s := &Set[T]{items: make(map[T]struct{}, len(vals))}
	s.AddAll(vals)
	return s
}

func (s *Set[T]) Add(v T) {
	s.items[v] = struct{}{}
}

func (s *Set[T]) AddAll(vals []T) {
	for _, v := range vals {
		s.items[v] = struct{}{}
	}
}

func (s *Set[T]) Remove(v T) {
	delete(s.items, v)
}

func (s *Set[T]) Has(v T) bool {
	_, ok := s.items[v]
	return ok
}

func (s *Set[T]) Len() int {
	return len(s.items)
}

// Sorted returns the members in ascending order.
func (s *Set[T]) Sorted() []T {
	return slices.Sorted(maps.Keys(s.items))
}

// Clone returns an independent copy.
func (s *Set[T]) Clone() *Set[T] {
	return &Set[T]{items: maps.Clone(s.items)}
}
