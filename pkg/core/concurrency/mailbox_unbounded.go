package concurrency

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// unboundedMailbox implements Mailbox over a growable ring buffer.
// Send never blocks and never reports ErrMailboxFull.
//
// The consumer sleeps on notify (1-slot, coalescing) or closed; there is no
// polling interval. Every Send leaves a pending signal in notify, so a wake-up
// can never be lost between the consumer's empty check and its select.
type unboundedMailbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	closed bool

	notify   chan struct{}
	closedCh chan struct{}
}

// NewUnboundedMailbox creates a mailbox that grows to hold every message sent to it
func NewUnboundedMailbox() Mailbox {
	return &unboundedMailbox{
		q:        queue.New(),
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Send implements Mailbox interface
func (mb *unboundedMailbox) Send(msg interface{}) error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return ErrMailboxClosed
	}
	mb.q.Add(msg)
	mb.mu.Unlock()

	select {
	case mb.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive implements Mailbox interface
func (mb *unboundedMailbox) Receive(ctx context.Context) (interface{}, error) {
	for {
		msg, ok, err := mb.TryReceive()
		if ok || err != nil {
			return msg, err
		}
		if err := mb.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// ReceiveBatch implements Mailbox interface
func (mb *unboundedMailbox) ReceiveBatch(ctx context.Context, buf []interface{}) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		mb.mu.Lock()
		n := 0
		for n < len(buf) && mb.q.Length() > 0 {
			buf[n] = mb.q.Remove()
			n++
		}
		closed := mb.closed
		mb.mu.Unlock()

		if n > 0 {
			return n, nil
		}
		if closed {
			return 0, ErrMailboxClosed
		}
		if err := mb.wait(ctx); err != nil {
			return 0, err
		}
	}
}

// TryReceive implements Mailbox interface
func (mb *unboundedMailbox) TryReceive() (interface{}, bool, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.q.Length() > 0 {
		return mb.q.Remove(), true, nil
	}
	if mb.closed {
		return nil, false, ErrMailboxClosed
	}
	return nil, false, nil
}

// wait parks the consumer until a send, a close or ctx cancellation.
func (mb *unboundedMailbox) wait(ctx context.Context) error {
	select {
	case <-mb.notify:
		return nil
	case <-mb.closedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Mailbox interface
func (mb *unboundedMailbox) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if !mb.closed {
		mb.closed = true
		close(mb.closedCh)
	}
}

// Capacity implements Mailbox interface
func (mb *unboundedMailbox) Capacity() int {
	return -1
}

// Size implements Mailbox interface
func (mb *unboundedMailbox) Size() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.q.Length()
}

// IsClosed implements Mailbox interface
func (mb *unboundedMailbox) IsClosed() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.closed
}
