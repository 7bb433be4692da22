package keyseq

// WorkerStats is a point-in-time view of one worker.
type WorkerStats struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Routed    uint64 `json:"routed"`    // jobs the control loop sent here
	Submitted uint64 `json:"submitted"` // jobs the worker accepted
	Completed uint64 `json:"completed"` // jobs finished, panicked ones included
	Pending   int64  `json:"pending"`
	Panics    uint64 `json:"panics"`
}

// Stats is a point-in-time view of an Executor.
type Stats struct {
	Name      string        `json:"name"`
	State     State         `json:"state"`
	Workers   []WorkerStats `json:"workers"`
	Misrouted uint64        `json:"misrouted"` // jobs dropped because the router returned a bad index
}

// Routed sums jobs routed across workers.
func (s Stats) Routed() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Routed
	}
	return n
}

// Completed sums completed jobs across workers.
func (s Stats) Completed() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Completed
	}
	return n
}

// Pending sums queued and running jobs across workers.
func (s Stats) Pending() int64 {
	var n int64
	for _, w := range s.Workers {
		n += w.Pending
	}
	return n
}

// Panics sums job panics across workers.
func (s Stats) Panics() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Panics
	}
	return n
}
