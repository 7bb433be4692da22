package concurrency

import "context"

// Task is a unit of work for the pool.
type Task interface {
	// Execute runs the task. A returned error is logged and counted as failed.
	Execute(ctx context.Context) error

	// Name labels the task in logs.
	Name() string
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error { return f(ctx) }

func (f TaskFunc) Name() string { return "TaskFunc" }

// Named gives fn a name for log lines.
func Named(name string, fn TaskFunc) Task {
	return namedTask{name: name, fn: fn}
}

type namedTask struct {
	name string
	fn   TaskFunc
}

func (t namedTask) Execute(ctx context.Context) error { return t.fn(ctx) }

func (t namedTask) Name() string { return t.name }

// Command adapts a fire-and-forget func(), such as a benchmark job, to Task.
type Command func()

func (c Command) Execute(context.Context) error {
	c()
	return nil
}

func (c Command) Name() string { return "Command" }
