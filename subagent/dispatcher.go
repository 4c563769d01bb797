package subagent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/logging"
)

// DefaultMaxConcurrent caps concurrently running subagents when no explicit
// limit is configured.
const DefaultMaxConcurrent = 8

// Task describes one isolated child run. The child starts from a fresh
// context containing only Instructions and Input; it does not see the
// parent's history.
type Task struct {
	// ID identifies the task in results and logs. Assigned on spawn when
	// empty.
	ID string
	// Description is a short summary surfaced in progress output.
	Description string
	// Instructions is the system framing for the child run.
	Instructions string
	// Tools names the tools the child may use; empty means the parent's
	// tool set minus dispatch itself.
	Tools []string
	// Input is the task prompt.
	Input string
}

// Result is the outcome of one child run. Err is set for child errors,
// panics and cancellation; Output is only meaningful when Err is nil.
type Result struct {
	TaskID string
	Output string
	Err    error
}

// Runner executes a task to completion and returns its final answer. The
// runner package provides the production implementation; the indirection
// keeps dispatch free of a dependency on the reasoning loop.
type Runner interface {
	Run(ctx context.Context, task Task) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, task Task) (string, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, task Task) (string, error) {
	return f(ctx, task)
}

// Options configures a Dispatcher.
type Options struct {
	// MaxConcurrent caps concurrently running subagents. Defaults to
	// DefaultMaxConcurrent; values < 1 are coerced to 1.
	MaxConcurrent int
	// Logger receives dispatch events. Defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// WithMaxConcurrent overrides the concurrency cap.
func WithMaxConcurrent(n int) func(o *Options) {
	return func(o *Options) { o.MaxConcurrent = n }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Dispatcher runs tasks through a Runner behind a weighted-semaphore
// concurrency cap shared by all spawns.
type Dispatcher struct {
	runner Runner
	sem    *semaphore.Weighted
	logger logging.Logger
}

// NewDispatcher creates a dispatcher over the given runner.
func NewDispatcher(runner Runner, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		MaxConcurrent: DefaultMaxConcurrent,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Dispatcher{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		logger: opts.Logger,
	}
}

// Spawn runs a single task to completion. The returned Result carries the
// child's failure instead of propagating it; callers decide what a failed
// child means for the parent turn.
func (d *Dispatcher) Spawn(ctx context.Context, task Task) Result {
	if task.ID == "" {
		task.ID = core.NewID()
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return Result{TaskID: task.ID, Err: err}
	}
	defer d.sem.Release(1)

	start := time.Now()
	output, err := d.runSafely(ctx, task)
	if err == nil && ctx.Err() != nil {
		// The parent is gone; a completed answer has no consumer.
		err = ctx.Err()
		output = ""
	}
	if sl, ok := d.logger.(logging.SubagentRunLogger); ok {
		sl.LogSubagentRun(task.ID, time.Since(start), err == nil, err)
	} else {
		d.logger.Debug("subagent finished",
			"task_id", task.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"success", err == nil,
		)
	}
	return Result{TaskID: task.ID, Output: output, Err: err}
}

// SpawnAll fans tasks out concurrently and returns results in task order.
// The shared semaphore bounds how many children run at once; one child's
// failure never cancels its siblings.
func (d *Dispatcher) SpawnAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	g := new(errgroup.Group)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = d.Spawn(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runSafely executes the runner with a panic boundary.
func (d *Dispatcher) runSafely(ctx context.Context, task Task) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = ""
			err = &core.SubagentError{TaskID: task.ID, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	output, err = d.runner.Run(ctx, task)
	if err != nil {
		var serr *core.SubagentError
		if !errors.As(err, &serr) {
			err = &core.SubagentError{TaskID: task.ID, Message: err.Error()}
		}
	}
	return output, err
}
