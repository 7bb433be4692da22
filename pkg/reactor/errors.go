package reactor

import "errors"

var (
	// ErrStopped is returned when a post is attempted on a stopped reactor.
	ErrStopped = errors.New("reactor: stopped")

	// ErrNilFunc is returned when posting a nil function.
	ErrNilFunc = errors.New("reactor: nil function")
)
