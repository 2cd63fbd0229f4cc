package supervisor

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vnykmshr/workdist/pkg/work"
)

// Report describes one supervised run.
type Report[R any] struct {
	// RunID uniquely identifies the run.
	RunID string

	// Submitted is the number of items the queue accepted.
	Submitted int

	// Discarded is the number of accepted items dropped because the run
	// was canceled before a worker took them.
	Discarded int

	// Failed is the number of Failed results.
	Failed int

	// Results holds every result in the order it was received.
	Results []work.Result[R]

	// Elapsed is the wall time of the run.
	Elapsed time.Duration

	seen       map[uint64]struct{}
	duplicates []uint64
}

// Summary holds compute duration statistics for a run.
type Summary struct {
	Count  int
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	Max    time.Duration
}

func (r *Report[R]) add(res work.Result[R]) {
	if r.seen == nil {
		r.seen = make(map[uint64]struct{})
	}
	if _, dup := r.seen[res.Seq]; dup {
		r.duplicates = append(r.duplicates, res.Seq)
	}
	r.seen[res.Seq] = struct{}{}

	r.Results = append(r.Results, res)
	if res.Failed() {
		r.Failed++
	}
}

// check verifies that every submitted, non-discarded item produced exactly
// one result.
func (r *Report[R]) check() error {
	if len(r.duplicates) > 0 {
		return fmt.Errorf("%w: duplicate results for seq %v", ErrAccounting, r.duplicates)
	}
	if want := r.Submitted - r.Discarded; len(r.Results) != want {
		return fmt.Errorf("%w: got %d results, want %d", ErrAccounting, len(r.Results), want)
	}
	return nil
}

// Ordered returns the results sorted by sequence number.
func (r *Report[R]) Ordered() []work.Result[R] {
	out := append([]work.Result[R](nil), r.Results...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Outputs returns the outputs of successful results in sequence order.
func (r *Report[R]) Outputs() []R {
	out := make([]R, 0, len(r.Results)-r.Failed)
	for _, res := range r.Ordered() {
		if !res.Failed() {
			out = append(out, res.Output)
		}
	}
	return out
}

// Failures returns the failure records in sequence order.
func (r *Report[R]) Failures() []*work.FailedError {
	var out []*work.FailedError
	for _, res := range r.Ordered() {
		if !res.Failed() {
			continue
		}
		if ferr, ok := res.Err.(*work.FailedError); ok {
			out = append(out, ferr)
		} else {
			out = append(out, &work.FailedError{Seq: res.Seq, Cause: res.Err})
		}
	}
	return out
}

// Summary computes compute duration statistics over all results.
func (r *Report[R]) Summary() Summary {
	if len(r.Results) == 0 {
		return Summary{}
	}

	xs := make([]float64, len(r.Results))
	for i, res := range r.Results {
		xs[i] = float64(res.Duration)
	}
	sort.Float64s(xs)

	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	return Summary{
		Count:  len(xs),
		Mean:   time.Duration(mean),
		StdDev: time.Duration(std),
		P50:    time.Duration(stat.Quantile(0.5, stat.Empirical, xs, nil)),
		P95:    time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil)),
		Max:    time.Duration(floats.Max(xs)),
	}
}
