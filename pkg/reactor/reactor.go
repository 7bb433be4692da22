// Package reactor provides a single-goroutine event loop.
//
// Every function posted to a Reactor runs on the same goroutine, one at a
// time, in the order Post accepted it. State touched only from posted
// functions therefore needs no lock. Stop closes the inbox, lets the loop
// drain what was already accepted and then joins it.
package reactor

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/core/concurrency"
)

// DefaultBatchSize is the number of queued functions taken per mailbox lock.
const DefaultBatchSize = 256

// Config configures a Reactor
type Config struct {
	// BatchSize bounds how many functions the loop dequeues at once.
	BatchSize int

	// Logger receives panic reports. Default: core.NewDefaultLogger().
	Logger core.Logger

	// PanicHandler is called on the loop goroutine after a posted function
	// panicked and the panic was logged.
	PanicHandler func(recovered interface{})

	// OnStart runs on the loop goroutine before the first posted function.
	OnStart func()

	// OnDrained runs on the loop goroutine once the reactor is stopped and
	// its inbox is empty, before Done is closed.
	OnDrained func()
}

type Reactor struct {
	name    string
	cfg     Config
	mailbox concurrency.Mailbox
	logger  core.Logger

	startOnce sync.Once
	done      chan struct{}
	processed atomic.Uint64
}

// New creates a stopped reactor. Call Start to run its loop.
func New(name string, cfg Config) *Reactor {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}
	return &Reactor{
		name:    name,
		cfg:     cfg,
		mailbox: concurrency.NewUnboundedMailbox(),
		logger:  cfg.Logger,
		done:    make(chan struct{}),
	}
}

func (r *Reactor) Name() string {
	return r.name
}

// Start launches the loop goroutine. Calling it again has no effect.
func (r *Reactor) Start() {
	r.startOnce.Do(func() {
		go r.loop()
	})
}

// Post submits a function for execution on the reactor's event loop.
// It never blocks on execution; it returns ErrStopped once the reactor
// has been closed.
func (r *Reactor) Post(fn func()) error {
	if fn == nil {
		return ErrNilFunc
	}
	if err := r.mailbox.Send(fn); err != nil {
		if errors.Is(err, concurrency.ErrMailboxClosed) {
			return ErrStopped
		}
		return err
	}
	return nil
}

// Close stops accepting posts without waiting. Already accepted functions
// still run.
func (r *Reactor) Close() {
	r.mailbox.Close()
}

// Stop closes the reactor and waits until its loop has drained and exited,
// or ctx is done. A reactor that was never started is started so that
// accepted functions and OnDrained still run.
func (r *Reactor) Stop(ctx context.Context) error {
	r.Close()
	r.Start()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed after the loop has exited.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}

// Pending returns the number of accepted functions not yet started.
func (r *Reactor) Pending() int {
	return r.mailbox.Size()
}

// Processed returns the number of functions the loop has run.
func (r *Reactor) Processed() uint64 {
	return r.processed.Load()
}

func (r *Reactor) loop() {
	defer close(r.done)

	if r.cfg.OnStart != nil {
		r.safeExecute(r.cfg.OnStart)
	}

	buf := make([]interface{}, r.cfg.BatchSize)
	ctx := context.Background()
	for {
		n, err := r.mailbox.ReceiveBatch(ctx, buf)
		if err != nil {
			// Only ErrMailboxClosed: closed and drained.
			break
		}
		for i := 0; i < n; i++ {
			fn := buf[i].(func())
			buf[i] = nil
			r.safeExecute(fn)
			r.processed.Add(1)
		}
	}

	if r.cfg.OnDrained != nil {
		r.safeExecute(r.cfg.OnDrained)
	}
}

// safeExecute keeps a panicking function from taking the loop down.
func (r *Reactor) safeExecute(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("reactor %s: recovered panic: %v\n%s", r.name, rec, debug.Stack())
			if r.cfg.PanicHandler != nil {
				r.cfg.PanicHandler(rec)
			}
		}
	}()
	fn()
}
