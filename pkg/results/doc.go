// Package results provides the multi-producer, single-consumer channel that
// workers post results to.
//
// Unlike a Go channel, a results.Channel is unbounded, so a worker's Send
// never blocks and never has to race a shutdown signal. Send after Close
// returns ErrClosed instead of panicking, and Close may be called more than
// once. Receive blocks until a result arrives or the channel is closed and
// drained.
//
// Results from different workers arrive in no particular order; each carries
// the sequence number of its item so the consumer can reorder them.
package results
