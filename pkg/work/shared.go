package work

import (
	"fmt"
	"sync/atomic"
)

// Shared is a handle to a value held by several owners. Each owner gets its
// own handle from Clone and gives it back with Release; the release hook
// runs exactly once, when the last handle is released.
type Shared[T any] struct {
	state *sharedState[T]
	done  atomic.Bool
}

type sharedState[T any] struct {
	value   T
	count   atomic.Int64
	release func(T)
}

// NewShared returns the first handle to v. release may be nil.
func NewShared[T any](v T, release func(T)) *Shared[T] {
	st := &sharedState[T]{value: v, release: release}
	st.count.Store(1)
	return &Shared[T]{state: st}
}

// Clone returns a new handle to the same value and increments the count.
// Cloning a released handle panics.
func (s *Shared[T]) Clone() *Shared[T] {
	if s.done.Load() {
		panic("work: Clone of released Shared handle")
	}
	s.state.count.Add(1)
	return &Shared[T]{state: s.state}
}

// Value returns the shared value.
func (s *Shared[T]) Value() T {
	return s.state.value
}

// Count returns the number of live handles.
func (s *Shared[T]) Count() int64 {
	return s.state.count.Load()
}

// Release gives up this handle. It reports whether this call released the
// last handle. Releasing the same handle twice is a no-op.
func (s *Shared[T]) Release() bool {
	if !s.done.CompareAndSwap(false, true) {
		return false
	}
	n := s.state.count.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("work: Shared count went negative (%d)", n))
	}
	if n == 0 {
		if s.state.release != nil {
			s.state.release(s.state.value)
		}
		return true
	}
	return false
}
