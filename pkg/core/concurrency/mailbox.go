package concurrency

import (
	"context"
	"errors"
)

var (
	// ErrMailboxClosed is returned by Send after Close, and by receives once
	// a closed mailbox has been drained.
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrMailboxFull is returned when a bounded queue has no room (backpressure).
	ErrMailboxFull = errors.New("mailbox is full")
)

// Mailbox is a FIFO message queue with a single consumer.
//
// Messages are delivered in the order Send accepted them. Send is safe from
// any number of goroutines.
type Mailbox interface {
	// Send enqueues msg, or returns ErrMailboxClosed.
	Send(msg interface{}) error

	// Receive blocks until a message is available or ctx is done.
	// It returns ErrMailboxClosed once the mailbox is closed and drained.
	Receive(ctx context.Context) (interface{}, error)

	// ReceiveBatch blocks like Receive, then fills buf with as many queued
	// messages as fit and returns how many were written.
	ReceiveBatch(ctx context.Context, buf []interface{}) (int, error)

	// TryReceive returns (msg, true, nil) when a message was queued and
	// (nil, false, nil) when none was.
	TryReceive() (interface{}, bool, error)

	// Close stops Send. Queued messages can still be received.
	Close()

	// Capacity returns the maximum number of queued messages, or -1 if unbounded.
	Capacity() int

	// Size returns the number of queued messages.
	Size() int

	// IsClosed reports whether Close was called.
	IsClosed() bool
}
