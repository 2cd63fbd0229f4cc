// Package work defines the values that flow through a workdist run.
//
// An Item is one unit of input with a sequence number assigned when it is
// submitted to a queue. A Result pairs that sequence number with either an
// output or a *FailedError. Results cross goroutine boundaries by value, so
// a worker never shares an Item or Result with another goroutine once it has
// handed it off.
//
// The package also carries two small synchronization helpers used by the
// pool and supervisor: Cell, a value guarded by its own lock, and Shared, a
// handle with an explicit holder count whose release hook runs when the last
// holder lets go.
package work
