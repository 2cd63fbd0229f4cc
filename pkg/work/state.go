package work

// State is the lifecycle state of a worker.
type State int32

const (
	// Idle means the worker is waiting on the queue.
	Idle State = iota

	// Processing means the worker holds an item and is computing it.
	Processing

	// Stopped means the worker observed a closed queue and exited.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// States lists every State, in order.
var States = []State{Idle, Processing, Stopped}
