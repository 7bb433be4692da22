package keyseq

import (
	"context"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/reactor"
)

// workerEnv is the executor-wide context shared by all workers.
type workerEnv struct {
	executor  string
	logger    core.Logger
	metrics   MetricsRecorder
	timed     bool
	tracer    trace.Tracer
	onPanic   PanicHandler
	batchSize int
	pin       bool
}

// worker owns one reactor loop and runs its jobs in FIFO order.
//
// pending is incremented before a job is posted and decremented in a defer
// after the job returns or panics, so it reaches zero exactly when the loop
// has nothing left to run.
type worker struct {
	index  int
	label  string
	env    *workerEnv
	logger core.Logger
	loop   *reactor.Reactor

	pending   atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

func newWorker(index int, env *workerEnv) *worker {
	w := &worker{
		index: index,
		label: strconv.Itoa(index),
		env:   env,
	}
	w.logger = env.logger.WithFields(map[string]interface{}{
		"executor": env.executor,
		"worker":   w.label,
	})

	cfg := reactor.Config{
		BatchSize: env.batchSize,
		Logger:    w.logger,
	}
	if env.pin {
		cfg.OnStart = w.pin
	}
	w.loop = reactor.New(env.executor+"/worker-"+w.label, cfg)
	return w
}

func (w *worker) start() {
	w.loop.Start()
}

func (w *worker) pin() {
	cpu, err := pinCurrentThread(w.index)
	if err != nil {
		w.logger.Warnf("cpu pinning failed: %v", err)
		return
	}
	w.logger.Debugf("pinned to cpu %d", cpu)
}

// submit enqueues job without waiting for it to run.
func (w *worker) submit(key string, job Job) error {
	w.pending.Add(1)
	w.submitted.Add(1)

	var queuedAt time.Time
	if w.env.tracer != nil {
		queuedAt = time.Now()
	}

	err := w.loop.Post(func() { w.execute(key, job, queuedAt) })
	if err != nil {
		w.pending.Add(-1)
		w.submitted.Add(-1)
		return err
	}
	return nil
}

// requestStop closes the inbox. Jobs already queued still run.
func (w *worker) requestStop() {
	w.loop.Close()
}

// awaitCompletion blocks until the loop has drained and exited.
func (w *worker) awaitCompletion() {
	<-w.loop.Done()
}

func (w *worker) execute(key string, job Job, queuedAt time.Time) {
	var start time.Time
	if w.env.timed {
		start = time.Now()
	}

	var span trace.Span
	if w.env.tracer != nil {
		_, span = w.env.tracer.Start(context.Background(), "keyseq.job",
			trace.WithTimestamp(queuedAt),
			trace.WithAttributes(
				attribute.String("keyseq.executor", w.env.executor),
				attribute.String("keyseq.key", key),
				attribute.Int("keyseq.worker", w.index),
			),
		)
		span.AddEvent("job.start")
	}

	defer w.finish(key, start, span)
	job()
}

// finish is deferred by execute. It recovers a job panic so the loop and
// the counters stay consistent.
func (w *worker) finish(key string, start time.Time, span trace.Span) {
	rec := recover()
	if rec != nil {
		w.panics.Add(1)
		w.logger.Errorf("job for key %q panicked: %v\n%s", key, rec, debug.Stack())
		w.env.metrics.JobPanicked(w.env.executor, w.index)
		if span != nil {
			span.SetStatus(codes.Error, "job panicked")
			span.SetAttributes(attribute.String("keyseq.panic", toString(rec)))
		}
	}

	w.completed.Add(1)
	w.pending.Add(-1)

	if w.env.timed {
		w.env.metrics.JobCompleted(w.env.executor, w.index, time.Since(start))
	}
	if span != nil {
		span.End()
	}

	if rec != nil && w.env.onPanic != nil {
		w.env.onPanic(key, w.index, rec)
	}
}

func (w *worker) stats(routed uint64) WorkerStats {
	return WorkerStats{
		Index:     w.index,
		Label:     w.label,
		Routed:    routed,
		Submitted: uint64(w.submitted.Load()),
		Completed: uint64(w.completed.Load()),
		Pending:   w.pending.Load(),
		Panics:    uint64(w.panics.Load()),
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return "non-string panic value"
	}
}
