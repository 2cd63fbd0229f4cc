package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrCompute is returned by FailOn for the configured inputs.
var ErrCompute = errors.New("simulated compute error")

// Square is the reference compute function used across package tests.
func Square(_ context.Context, x int) (int, error) {
	return x * x, nil
}

// FailOn returns a compute function that squares its input except for the
// listed values, for which it returns ErrCompute.
func FailOn(bad ...int) func(context.Context, int) (int, error) {
	set := make(map[int]struct{}, len(bad))
	for _, b := range bad {
		set[b] = struct{}{}
	}
	return func(ctx context.Context, x int) (int, error) {
		if _, ok := set[x]; ok {
			return 0, ErrCompute
		}
		return Square(ctx, x)
	}
}

// Gate is a compute function wrapper that holds every call until Open is
// called, recording the inputs it has started on.
type Gate struct {
	mu      sync.Mutex
	started []int
	open    chan struct{}
	once    sync.Once
	entered chan int
}

// NewGate creates a closed Gate.
func NewGate() *Gate {
	return &Gate{
		open:    make(chan struct{}),
		entered: make(chan int, 1024),
	}
}

// Compute squares x once the gate is open.
func (g *Gate) Compute(ctx context.Context, x int) (int, error) {
	g.mu.Lock()
	g.started = append(g.started, x)
	g.mu.Unlock()
	g.entered <- x

	select {
	case <-g.open:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return x * x, nil
}

// Entered delivers each input as a worker starts computing it.
func (g *Gate) Entered() <-chan int {
	return g.entered
}

// Open releases all held and future calls.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.open) })
}

// Started returns the inputs seen so far.
func (g *Gate) Started() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.started...)
}
