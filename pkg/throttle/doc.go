// Package throttle provides a token bucket used to pace item submission.
//
// A supervisor configured with a Bucket waits for a token before each
// enqueue, so a run never submits faster than Rate items per second after
// an initial burst of Burst items.
//
//	limiter, err := throttle.New(50, 10) // 50 items/s, bursts of 10
//	if err != nil {
//		return err
//	}
//	cfg := supervisor.Config[int]{Capacity: 64, Workers: 8, Limiter: limiter}
package throttle
