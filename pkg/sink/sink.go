// Package sink stores results as a supervisor drains them.
package sink

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/vnykmshr/workdist/pkg/work"
)

// Sink receives every result of a run. Put is called from the single
// consumer goroutine, in receive order.
type Sink[R any] interface {
	Put(ctx context.Context, runID string, r work.Result[R]) error
}

// Memory keeps results in process, grouped by run.
type Memory[R any] struct {
	mu   sync.Mutex
	runs map[string][]work.Result[R]
}

// NewMemory returns an empty Memory sink.
func NewMemory[R any]() *Memory[R] {
	return &Memory[R]{runs: make(map[string][]work.Result[R])}
}

// Put implements Sink.
func (m *Memory[R]) Put(_ context.Context, runID string, r work.Result[R]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = append(m.runs[runID], r)
	return nil
}

// Results returns the stored results for runID ordered by sequence number.
func (m *Memory[R]) Results(runID string) []work.Result[R] {
	m.mu.Lock()
	out := append([]work.Result[R](nil), m.runs[runID]...)
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Runs returns the IDs of all runs seen.
func (m *Memory[R]) Runs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tee returns a Sink that puts every result into each of sinks in order.
// All sinks are tried; their errors are joined.
func Tee[R any](sinks ...Sink[R]) Sink[R] {
	return tee[R](sinks)
}

type tee[R any] []Sink[R]

func (t tee[R]) Put(ctx context.Context, runID string, r work.Result[R]) error {
	var errs []error
	for _, s := range t {
		if err := s.Put(ctx, runID, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
