package concurrency

import (
	"context"
	"time"
)

// ExecutorStats is a snapshot of a pool.
type ExecutorStats struct {
	QueuedTasks      int64   // waiting in the queue
	ActiveWorkers    int     // worker goroutines
	CompletedTasks   int64   // finished, failed ones included
	FailedTasks      int64   // returned an error or panicked
	RejectedTasks    int64   // refused because the queue was full
	QueueCapacity    int     // queue size
	QueueUtilization float64 // QueuedTasks as a percentage of QueueCapacity
}

// Executor is an unordered worker pool sharing one bounded queue.
//
// Tasks run on whichever worker is free first, so no ordering holds between
// any two tasks. It is the baseline the keyed executor is measured against.
type Executor interface {
	// Submit queues task without waiting. A full queue returns ErrMailboxFull.
	Submit(task Task) error

	// SubmitWithTimeout waits up to timeout for queue space.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// SubmitContext waits for queue space until ctx is done.
	SubmitContext(ctx context.Context, task Task) error

	// Shutdown stops accepting tasks and waits for queued ones to finish,
	// or for ctx to end.
	Shutdown(ctx context.Context) error

	Stats() ExecutorStats
}
