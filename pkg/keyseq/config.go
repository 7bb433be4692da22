package keyseq

import (
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/keyseq/pkg/core"
)

// PanicHandler receives a job's recovered panic on the worker that ran it.
type PanicHandler func(key string, worker int, recovered interface{})

// MetricsRecorder observes job flow. Methods are called from the control
// loop (JobRouted), from worker loops (JobCompleted, JobPanicked) and from
// submitting goroutines (JobRejected), so implementations must be safe for
// concurrent use.
type MetricsRecorder interface {
	JobRouted(executor string, worker int)
	JobCompleted(executor string, worker int, elapsed time.Duration)
	JobPanicked(executor string, worker int)
	JobRejected(executor string)
}

// Config configures an Executor.
type Config struct {
	// Name identifies the executor in logs, metrics and traces.
	// Default: "KeySequentialExecutor-<uuid>".
	Name string `yaml:"name" json:"name"`

	// Workers is the fixed pool size. Must be at least 1.
	Workers int `yaml:"workers" json:"workers"`

	// BatchSize bounds how many queued jobs a loop takes per wake-up.
	// Zero selects reactor.DefaultBatchSize.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// PinWorkers locks each worker goroutine to an OS thread bound to one CPU.
	PinWorkers bool `yaml:"pin_workers" json:"pin_workers"`

	// Router overrides key placement. Default: HashRouter.
	Router Router `yaml:"-" json:"-"`

	// Logger default: core.NewDefaultLogger().
	Logger core.Logger `yaml:"-" json:"-"`

	// Metrics, when set, is told about every job. Job durations are only
	// measured when Metrics is set.
	Metrics MetricsRecorder `yaml:"-" json:"-"`

	// Tracer, when set, records one span per job covering queue wait and run.
	Tracer trace.Tracer `yaml:"-" json:"-"`

	// PanicHandler, when set, is called after a job panic has been logged.
	PanicHandler PanicHandler `yaml:"-" json:"-"`
}

// DefaultConfig returns a configuration with one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers: runtime.NumCPU(),
	}
}

// Validate reports configuration errors. Invalid values are never clamped.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, c.Workers)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBatchSize, c.BatchSize)
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) JobRouted(string, int)                   {}
func (nopMetrics) JobCompleted(string, int, time.Duration) {}
func (nopMetrics) JobPanicked(string, int)                 {}
func (nopMetrics) JobRejected(string)                      {}
