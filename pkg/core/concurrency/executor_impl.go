package concurrency

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/keyseq/pkg/core"
)

// ErrExecutorClosed is returned by submissions after Shutdown has begun
var ErrExecutorClosed = errors.New("executor is closed")

// pool implements Executor with a buffered task channel drained by a fixed
// set of goroutines.
type pool struct {
	tasks     chan Task
	quit      chan struct{}
	workers   int
	queueSize int
	wg        sync.WaitGroup
	inflight  sync.WaitGroup // submitters between the closed check and the channel send
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	logger    core.Logger

	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	Workers   int         `yaml:"workers" json:"workers"`       // Number of worker goroutines
	QueueSize int         `yaml:"queue_size" json:"queue_size"` // Maximum queue size (bounded for backpressure)
	Logger    core.Logger `yaml:"-" json:"-"`
}

// DefaultExecutorConfig returns default executor configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Workers:   10,
		QueueSize: 1000,
	}
}

// NewExecutor starts a pool. Workers and QueueSize below 1 fall back to 1
// and 100. Cancelling ctx cancels the context tasks run with.
func NewExecutor(ctx context.Context, config ExecutorConfig) Executor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 100
	}
	if config.Logger == nil {
		config.Logger = core.NewDefaultLogger()
	}

	ctx, cancel := context.WithCancel(ctx)

	exec := &pool{
		tasks:     make(chan Task, config.QueueSize),
		quit:      make(chan struct{}),
		workers:   config.Workers,
		queueSize: config.QueueSize,
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}

	exec.start()
	return exec
}

func (e *pool) start() {
	e.wg.Add(e.workers)
	for i := 0; i < e.workers; i++ {
		go e.worker(i)
	}
}

// worker processes tasks until the queue is closed and empty
func (e *pool) worker(id int) {
	defer e.wg.Done()

	for task := range e.tasks {
		e.queued.Add(-1)
		e.run(id, task)
	}
}

func (e *pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			e.logger.Errorf("worker %d: task %s panicked: %v\n%s", id, task.Name(), r, debug.Stack())
		}
		e.completed.Add(1)
	}()

	if err := task.Execute(e.ctx); err != nil {
		e.failed.Add(1)
		e.logger.Errorf("task %s failed: %v", task.Name(), err)
	}
}

// enter registers a submitter; it fails once Shutdown has begun.
func (e *pool) enter(task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}
	e.inflight.Add(1)
	return nil
}

// Submit implements Executor interface
func (e *pool) Submit(task Task) error {
	if err := e.enter(task); err != nil {
		return err
	}
	defer e.inflight.Done()

	select {
	case e.tasks <- task:
		e.queued.Add(1)
		return nil
	case <-e.quit:
		return ErrExecutorClosed
	default:
		e.rejected.Add(1)
		return ErrMailboxFull
	}
}

// SubmitWithTimeout implements Executor interface
func (e *pool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := e.SubmitContext(ctx, task)
	if errors.Is(err, context.DeadlineExceeded) {
		e.rejected.Add(1)
		return fmt.Errorf("submit timeout after %v", timeout)
	}
	return err
}

// SubmitContext implements Executor interface
func (e *pool) SubmitContext(ctx context.Context, task Task) error {
	if err := e.enter(task); err != nil {
		return err
	}
	defer e.inflight.Done()

	select {
	case e.tasks <- task:
		e.queued.Add(1)
		return nil
	case <-e.quit:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown implements Executor interface
func (e *pool) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	// Release blocked submitters, then close the queue once none can send.
	close(e.quit)
	e.inflight.Wait()
	close(e.tasks)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		e.cancel()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// Stats implements Executor interface
func (e *pool) Stats() ExecutorStats {
	queued := e.queued.Load()
	queueUtilization := float64(queued) / float64(e.queueSize) * 100.0
	if queueUtilization > 100.0 {
		queueUtilization = 100.0
	}

	return ExecutorStats{
		QueuedTasks:      queued,
		ActiveWorkers:    e.workers,
		CompletedTasks:   e.completed.Load(),
		FailedTasks:      e.failed.Load(),
		RejectedTasks:    e.rejected.Load(),
		QueueCapacity:    e.queueSize,
		QueueUtilization: queueUtilization,
	}
}
