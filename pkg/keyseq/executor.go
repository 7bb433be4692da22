package keyseq

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/core/failfast"
	"github.com/fluxorio/keyseq/pkg/reactor"
)

// Job is a unit of work. It takes no arguments and returns nothing; results
// and failures travel through whatever the job captures.
type Job func()

// Executor runs jobs sequentially per key on a fixed pool of workers.
//
// An Executor is safe for concurrent use. It must be stopped with Stop,
// Shutdown or Close; one that becomes unreachable while still running is
// stopped by the garbage collector's cleanup, which drains it the same way.
type Executor struct {
	e *engine
}

// engine is everything the loops reference. Executor is a thin handle over
// it so the handle can become unreachable while the loops still run.
type engine struct {
	name    string
	router  Router
	logger  core.Logger
	metrics MetricsRecorder

	workers []*worker
	control *reactor.Reactor
	state   atomic.Int32

	// Owned by the control loop.
	routed    []uint64
	misrouted uint64
	final     Stats // written once in drainWorkers, read after control.Done()

	// Closed once routing has ended; routed and misrouted are read-only
	// from then on.
	draining chan struct{}

	stopOnce sync.Once
}

// New creates an executor with the given number of workers and default settings.
func New(workers int) (*Executor, error) {
	cfg := DefaultConfig()
	cfg.Workers = workers
	return NewWithConfig(cfg)
}

// NewWithConfig creates an executor and starts all of its loops before
// returning. An invalid configuration fails without starting anything.
func NewWithConfig(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "KeySequentialExecutor-" + uuid.NewString()
	}
	if cfg.Router == nil {
		cfg.Router = HashRouter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}

	e := &engine{
		name:     cfg.Name,
		router:   cfg.Router,
		logger:   cfg.Logger.WithFields(map[string]interface{}{"executor": cfg.Name}),
		metrics:  cfg.Metrics,
		routed:   make([]uint64, cfg.Workers),
		draining: make(chan struct{}),
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	e.state.Store(int32(StateCreated))

	env := &workerEnv{
		executor:  cfg.Name,
		logger:    cfg.Logger,
		metrics:   e.metrics,
		timed:     cfg.Metrics != nil,
		tracer:    cfg.Tracer,
		onPanic:   cfg.PanicHandler,
		batchSize: cfg.BatchSize,
		pin:       cfg.PinWorkers,
	}
	e.workers = make([]*worker, cfg.Workers)
	for i := range e.workers {
		e.workers[i] = newWorker(i, env)
		e.workers[i].start()
	}

	e.control = reactor.New(cfg.Name+"/control", reactor.Config{
		BatchSize: cfg.BatchSize,
		Logger:    e.logger,
		OnDrained: e.drainWorkers,
	})
	e.control.Start()

	e.state.Store(int32(StateRunning))
	e.logger.Debugf("started with %d workers", cfg.Workers)

	x := &Executor{e: e}
	runtime.AddCleanup(x, func(e *engine) {
		if e.currentState() == StateRunning {
			e.logger.Warnf("executor was not stopped before being discarded; stopping")
		}
		go e.stop()
	}, e)
	return x, nil
}

// Name returns the executor's instance name.
func (x *Executor) Name() string { return x.e.name }

// Workers returns the fixed worker count.
func (x *Executor) Workers() int { return len(x.e.workers) }

// State returns the current lifecycle state.
func (x *Executor) State() State { return x.e.currentState() }

// Route returns the worker index key is routed to.
func (x *Executor) Route(key string) int {
	return x.e.router.Route(key, len(x.e.workers))
}

// Submit hands job to the control loop and returns without waiting for it
// to run. Jobs with equal keys run in the order their Submit calls reached
// the control loop. After Stop it returns ErrExecutorStopped and the job
// never runs.
func (x *Executor) Submit(key string, job Job) error {
	return x.e.submit(key, job)
}

// Stop rejects further submissions and blocks until every accepted job has
// run and all loops have exited. Later and concurrent calls wait for the
// same completion.
func (x *Executor) Stop() {
	x.e.stop()
}

// Shutdown is Stop bounded by ctx. When ctx ends first the error is
// ctx.Err(); the drain continues in the background.
func (x *Executor) Shutdown(ctx context.Context) error {
	return x.e.shutdown(ctx)
}

// Close implements io.Closer. It calls Stop and always returns nil.
func (x *Executor) Close() error {
	x.e.stop()
	return nil
}

// Stats returns a snapshot of the executor. Routing counters are read on the
// control loop, so the snapshot reflects every submission accepted before
// the call. Once stopped, the final snapshot is returned.
func (x *Executor) Stats() Stats {
	return x.e.stats()
}

func (e *engine) currentState() State {
	return State(e.state.Load())
}

func (e *engine) submit(key string, job Job) error {
	if job == nil {
		return ErrNilJob
	}
	if e.currentState() != StateRunning {
		e.metrics.JobRejected(e.name)
		return ErrExecutorStopped
	}
	if err := e.control.Post(func() { e.route(key, job) }); err != nil {
		// Lost the race with stop.
		e.metrics.JobRejected(e.name)
		return ErrExecutorStopped
	}
	return nil
}

// route runs on the control loop.
func (e *engine) route(key string, job Job) {
	n := len(e.workers)
	idx := e.router.Route(key, n)
	if idx < 0 || idx >= n {
		e.misrouted++
		failfast.InRange(idx, n, "router index for key "+key)
	}

	e.routed[idx]++
	e.metrics.JobRouted(e.name, idx)
	if err := e.workers[idx].submit(key, job); err != nil {
		// Workers are only closed by drainWorkers, after routing has ended.
		e.logger.Errorf("worker %d rejected job for key %q: %v", idx, key, err)
	}
}

func (e *engine) beginStop() {
	e.stopOnce.Do(func() {
		e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		e.logger.Debugf("stopping")
		e.control.Close()
	})
}

func (e *engine) stop() {
	e.beginStop()
	<-e.control.Done()
}

func (e *engine) shutdown(ctx context.Context) error {
	e.beginStop()
	select {
	case <-e.control.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainWorkers runs on the control loop after its inbox is closed and empty:
// no job can be routed any more. Every worker is told to stop, then each is
// joined in index order.
func (e *engine) drainWorkers() {
	close(e.draining)

	for _, w := range e.workers {
		w.requestStop()
	}
	for _, w := range e.workers {
		w.awaitCompletion()
		e.logger.Debugf("worker %s drained: assigned %d", w.label, e.routed[w.index])
	}

	e.state.Store(int32(StateStopped))
	e.final = e.snapshot()
	e.logger.Debugf("stopped")
}

func (e *engine) stats() Stats {
	reply := make(chan Stats, 1)
	if err := e.control.Post(func() { reply <- e.snapshot() }); err == nil {
		// Accepted posts always run, even during a drain.
		return <-reply
	}

	// Closed control loop: it finishes routing what it accepted, then
	// closes draining before joining any worker. Waiting on Done here would
	// hang a job that asks for stats during Stop.
	<-e.draining
	select {
	case <-e.control.Done():
		return e.final
	default:
		return e.snapshot()
	}
}

// snapshot runs on the control loop, or anywhere once draining is closed.
func (e *engine) snapshot() Stats {
	s := Stats{
		Name:      e.name,
		State:     e.currentState(),
		Workers:   make([]WorkerStats, len(e.workers)),
		Misrouted: e.misrouted,
	}
	for i, w := range e.workers {
		s.Workers[i] = w.stats(e.routed[i])
	}
	return s
}
