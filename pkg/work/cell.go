package work

import "sync"

// Cell is a value guarded by its own lock. It lets a holder of an otherwise
// read-only handle mutate one field without locking the enclosing structure.
//
// The zero value holds the zero T and is ready to use. A Cell must not be
// copied after first use.
type Cell[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewCell returns a Cell holding v.
func NewCell[T any](v T) *Cell[T] {
	return &Cell[T]{v: v}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Set replaces the value.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Swap replaces the value and returns the previous one.
func (c *Cell[T]) Swap(v T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.v
	c.v = v
	return old
}

// Update applies fn to the value under the lock and returns the new value.
// fn must not call back into the Cell.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = fn(c.v)
	return c.v
}
