package ds

import (
	"maps"
	"slices"
)

// mapSet backs the frame selections sent by clients. It is not safe for
// concurrent use, a selection lives for one request.
type mapSet[T comparable] struct {
	data map[T]void
}

func (s *mapSet[T]) Add(item T) {
	s.data[item] = empty
}

func (s *mapSet[T]) Remove(item T) {
	delete(s.data, item)
}

func (s *mapSet[T]) Contains(item T) bool {
	_, ok := s.data[item]
	return ok
}

func (s *mapSet[T]) Size() int {
	return len(s.data)
}

// ToSlice returns the items in no particular order. Callers that need an
// order, such as export, sort the resolved frames themselves.
func (s *mapSet[T]) ToSlice() []T {
	return slices.Collect(maps.Keys(s.data))
}

func (s *mapSet[T]) Clear() {
	clear(s.data)
}
