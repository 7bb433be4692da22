package keyseq

import "errors"

var (
	// ErrInvalidWorkerCount is returned by New when the worker count is below one.
	ErrInvalidWorkerCount = errors.New("keyseq: worker count must be at least 1")

	// ErrExecutorStopped is returned by Submit once Stop has been called.
	// The rejected job is not run.
	ErrExecutorStopped = errors.New("keyseq: executor stopped")

	// ErrNilJob is returned by Submit for a nil job.
	ErrNilJob = errors.New("keyseq: nil job")

	// ErrInvalidBatchSize is returned by New for a negative batch size.
	ErrInvalidBatchSize = errors.New("keyseq: batch size must not be negative")
)
