package sink

import (
	"errors"
	"time"

	"github.com/vnykmshr/workdist/pkg/work"
)

// record is the JSON form of a result.
type record[R any] struct {
	RunID      string `json:"run_id,omitempty"`
	Seq        uint64 `json:"seq"`
	Output     R      `json:"output"`
	Error      string `json:"error,omitempty"`
	WorkerID   int    `json:"worker_id"`
	DurationNS int64  `json:"duration_ns"`
}

func newRecord[R any](r work.Result[R]) record[R] {
	rec := record[R]{
		Seq:        r.Seq,
		Output:     r.Output,
		WorkerID:   r.WorkerID,
		DurationNS: int64(r.Duration),
	}
	if cause := r.Cause(); cause != nil {
		rec.Error = cause.Error()
	}
	return rec
}

// result rebuilds a Result. A failure comes back as a *work.FailedError
// whose cause carries only the original message.
func (rec record[R]) result() work.Result[R] {
	r := work.Succeeded(rec.Seq, rec.Output)
	if rec.Error != "" {
		r = work.Failed[R](rec.Seq, errors.New(rec.Error))
	}
	r.WorkerID = rec.WorkerID
	r.Duration = time.Duration(rec.DurationNS)
	return r
}
