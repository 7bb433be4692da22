package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/core/concurrency"
	"github.com/fluxorio/keyseq/pkg/keyseq"
	"github.com/fluxorio/keyseq/pkg/natsbus"
)

// sink keeps the busy loop from being optimized away.
var sink atomic.Uint64

// Result is one benchmark run.
type Result struct {
	Name    string
	Jobs    int
	Count   int64
	Elapsed time.Duration
}

func (r Result) String() string {
	rate := 0.0
	if r.Elapsed > 0 {
		rate = float64(r.Count) / r.Elapsed.Seconds()
	}
	return fmt.Sprintf("%s: function called %d times (%d submitted) in %v, %.0f jobs/s",
		r.Name, r.Count, r.Jobs, r.Elapsed.Round(time.Millisecond), rate)
}

// workload produces the per-job spin counts: reps plus reps times a
// random multiplier in [0, 5).
type workload struct {
	reps int
	rng  *rand.Rand
}

func newWorkload(reps int, seed int64) *workload {
	w := &workload{reps: reps}
	if seed != 0 {
		w.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	}
	return w
}

func (w *workload) next() int {
	var n int
	if w.rng != nil {
		n = w.rng.IntN(5)
	} else {
		n = rand.IntN(5)
	}
	return w.reps + w.reps*n
}

func spin(reps int) {
	var acc uint64
	for i := 0; i < reps; i++ {
		acc += uint64(i) ^ acc>>3
	}
	sink.Add(acc)
}

// runKeyed submits jobs keyed by their index and stops the executor, so the
// elapsed time covers every job running.
func runKeyed(x *keyseq.Executor, jobs int, w *workload) (Result, error) {
	var count atomic.Int64
	start := time.Now()
	for i := 0; i < jobs; i++ {
		reps := w.next()
		err := x.Submit(strconv.Itoa(i), func() {
			count.Add(1)
			spin(reps)
		})
		if err != nil {
			x.Stop()
			return Result{}, fmt.Errorf("submit job %d: %w", i, err)
		}
	}
	x.Stop()

	return Result{
		Name:    x.Name(),
		Jobs:    jobs,
		Count:   count.Load(),
		Elapsed: time.Since(start),
	}, nil
}

// runBaseline runs the same workload on the unordered shared-queue pool.
func runBaseline(ctx context.Context, pool concurrency.Executor, jobs int, w *workload) (Result, error) {
	var count atomic.Int64
	start := time.Now()
	for i := 0; i < jobs; i++ {
		reps := w.next()
		err := pool.SubmitContext(ctx, concurrency.Command(func() {
			count.Add(1)
			spin(reps)
		}))
		if err != nil {
			_ = pool.Shutdown(ctx)
			return Result{}, fmt.Errorf("submit task %d: %w", i, err)
		}
	}
	if err := pool.Shutdown(ctx); err != nil {
		return Result{}, fmt.Errorf("shutdown pool: %w", err)
	}

	return Result{
		Name:    "baseline-pool",
		Jobs:    jobs,
		Count:   count.Load(),
		Elapsed: time.Since(start),
	}, nil
}

// runNATS publishes messages spread over cfg.Keys keys and consumes them
// through x, checking that each key's sequence numbers arrive in order.
func runNATS(ctx context.Context, nc *nats.Conn, x *keyseq.Executor, cfg NATSConfig, w *workload, logger core.Logger) (Result, error) {
	next := make([]int, cfg.Keys) // touched only by the key's worker
	var count atomic.Int64

	sub, err := natsbus.Subscribe(nc, x, natsbus.Config{
		Subject: cfg.Subject,
		Queue:   cfg.Queue,
		Logger:  logger,
	}, func(key string, msg *nats.Msg) error {
		k, err := strconv.Atoi(key)
		if err != nil || k < 0 || k >= len(next) {
			return fmt.Errorf("unexpected key %q", key)
		}
		seq, err := strconv.Atoi(string(msg.Data))
		if err != nil {
			return fmt.Errorf("bad payload %q: %w", msg.Data, err)
		}
		if seq != next[k] {
			return fmt.Errorf("key %s: got seq %d, want %d", key, seq, next[k])
		}
		next[k]++
		count.Add(1)
		spin(w.reps)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	seqs := make([]int, cfg.Keys)
	for i := 0; i < cfg.Messages; i++ {
		k := i % cfg.Keys
		if err := natsbus.Publish(nc, cfg.Subject, strconv.Itoa(k), []byte(strconv.Itoa(seqs[k]))); err != nil {
			_ = sub.Close(ctx)
			return Result{}, fmt.Errorf("publish message %d: %w", i, err)
		}
		seqs[k]++
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		_ = sub.Close(ctx)
		return Result{}, fmt.Errorf("flush: %w", err)
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		s := sub.Stats()
		if s.Handled+s.Failed+s.Rejected >= int64(cfg.Messages) {
			break
		}
		select {
		case <-ctx.Done():
			break wait
		case <-ticker.C:
		}
	}
	if err := sub.Close(ctx); err != nil {
		logger.Warnf("closing subscription: %v", err)
	}
	x.Stop()

	s := sub.Stats()
	if s.Failed > 0 || s.Rejected > 0 {
		logger.Errorf("nats run: %d failed, %d rejected", s.Failed, s.Rejected)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("waiting for messages: %w", err)
	}
	return Result{
		Name:    "nats/" + x.Name(),
		Jobs:    cfg.Messages,
		Count:   count.Load(),
		Elapsed: time.Since(start),
	}, nil
}
