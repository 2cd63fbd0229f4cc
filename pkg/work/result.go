package work

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Result is the output, or failure record, for one Item.
type Result[R any] struct {
	Seq      uint64
	Output   R
	Err      error
	WorkerID int
	Duration time.Duration
}

// Succeeded builds a successful Result.
func Succeeded[R any](seq uint64, output R) Result[R] {
	return Result[R]{Seq: seq, Output: output}
}

// Failed builds the failure Result for seq. Err is always a *FailedError.
func Failed[R any](seq uint64, cause error) Result[R] {
	return Result[R]{Seq: seq, Err: &FailedError{Seq: seq, Cause: cause}}
}

// Failed reports whether the computation for this item returned an error.
func (r Result[R]) Failed() bool {
	return r.Err != nil
}

// Cause returns the underlying computation error, or nil on success.
func (r Result[R]) Cause() error {
	var ferr *FailedError
	if errors.As(r.Err, &ferr) {
		return ferr.Cause
	}
	return r.Err
}

// FailedError records a single item's computation error.
type FailedError struct {
	Seq   uint64
	Cause error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("item %d failed: %v", e.Seq, e.Cause)
}

func (e *FailedError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a panicking compute function
// together with the goroutine stack at the point of the panic.
type PanicError struct {
	Value any
	Stack string
}

// NewPanicError captures the current goroutine stack. Call it from the
// deferred recover.
func NewPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
