package pagination

import (
	"sort"
	"sync"
)

// Accumulator collects the pages of one search. Merging is keyed by page
// offset, so a page delivered twice is only counted once.
type Accumulator[T any] struct {
	mu       sync.RWMutex
	total    int
	items    []T
	finished map[int]struct{}
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator[T any]() *Accumulator[T] {
	return &Accumulator[T]{
		finished: make(map[int]struct{}),
	}
}

// Merge adds the page fetched at offset. It returns false and leaves the
// accumulator untouched when that offset was already merged.
func (a *Accumulator[T]) Merge(offset int, page Page[T]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, done := a.finished[offset]; done {
		return false
	}

	a.total = page.Total
	a.items = append(a.items, page.Items...)
	a.finished[offset] = struct{}{}
	return true
}

// Finished reports whether the page at offset has been merged.
func (a *Accumulator[T]) Finished(offset int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, done := a.finished[offset]
	return done
}

// Total returns the result size reported by the server.
func (a *Accumulator[T]) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

// Len returns the number of items merged so far.
func (a *Accumulator[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Complete reports whether at least Total items have been merged.
func (a *Accumulator[T]) Complete() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items) >= a.total
}

// Items returns a copy of the merged items in arrival order.
func (a *Accumulator[T]) Items() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}

// Offsets returns the merged page offsets in ascending order.
func (a *Accumulator[T]) Offsets() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int, 0, len(a.finished))
	for offset := range a.finished {
		out = append(out, offset)
	}
	sort.Ints(out)
	return out
}
