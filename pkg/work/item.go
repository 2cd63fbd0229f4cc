package work

import (
	"sync/atomic"
	"time"
)

// Item is a unit of input work. It is immutable once enqueued.
type Item[T any] struct {
	// Seq is unique and strictly increasing within one queue. The first
	// item submitted to a queue has Seq 1.
	Seq uint64

	// Payload is the caller's input.
	Payload T

	// SubmittedAt is when the item was accepted by the queue.
	SubmittedAt time.Time
}

// Sequencer hands out strictly increasing sequence numbers.
type Sequencer struct {
	last atomic.Uint64
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Last returns the most recently issued sequence number, or 0.
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}
