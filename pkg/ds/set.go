package ds

type void struct{}

var empty void

type Set[T comparable] interface {
	Add(item T)
	Remove(item T)
	Contains(item T) bool
	Size() int
	ToSlice() []T
	Clear()
}

func NewSet[T comparable]() Set[T] {
	return &mapSet[T]{data: make(map[T]void)}
}

// NewSetOf builds a set holding the given items, duplicates collapse.
func NewSetOf[T comparable](items ...T) Set[T] {
	s := &mapSet[T]{data: make(map[T]void, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}
