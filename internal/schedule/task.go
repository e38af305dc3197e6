package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is the body executed for one activation of a Task. It must return
// once run is cancelled or ctx is done.
type Job func(ctx context.Context, run *Run)

// Run is one armed period of a Task. A Run is cancelled at most once;
// cancelling it again, or after its pending timer already fired, is a no-op.
type Run struct {
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending *time.Timer
}

func newRun() *Run {
	return &Run{done: make(chan struct{})}
}

// Armed reports whether the run has not been cancelled
func (r *Run) Armed() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// SleepUntil blocks until deadline, cancellation or ctx end.
// It reports true only if the deadline was reached while still armed.
func (r *Run) SleepUntil(ctx context.Context, deadline time.Time) bool {
	timer := time.NewTimer(time.Until(deadline))

	r.mu.Lock()
	r.pending = timer
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.pending = nil
		r.mu.Unlock()
		timer.Stop()
	}()

	select {
	case <-timer.C:
		return r.Armed()
	case <-r.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *Run) cancel() {
	r.once.Do(func() { close(r.done) })

	// Forget the pending timer, if any is still pending
	r.mu.Lock()
	if r.pending != nil {
		r.pending.Stop()
	}
	r.mu.Unlock()
}

type activation struct {
	run *Run
	job Job
}

// Task is a re-armable, cancellable unit of timer-driven work served by one
// dedicated worker goroutine (see Serve).
type Task struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	current  *Run
	activate chan activation
}

// NewTask creates an unarmed task
func NewTask(name string, logger *zap.Logger) *Task {
	return &Task{
		name:     name,
		logger:   logger.With(zap.String("task", name)),
		activate: make(chan activation, 1),
	}
}

// Name returns the task name
func (t *Task) Name() string {
	return t.name
}

// Arm cancels the current run, if any, and hands job to the worker as a
// fresh run.
func (t *Task) Arm(job Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.cancel()
	}
	run := newRun()
	t.current = run

	// Replace an activation the worker has not picked up yet.
	// Only Arm sends, under t.mu, so the buffer is empty after this.
	select {
	case <-t.activate:
	default:
	}
	t.activate <- activation{run: run, job: job}
}

// Cancel cancels the current run. Cancelling an unarmed task is a no-op.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.cancel()
		t.current = nil
	}
}

// Armed reports whether the task holds a run that has not been cancelled
func (t *Task) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil && t.current.Armed()
}

// Serve is the worker loop: wait for an activation, execute its job, repeat.
// It returns when ctx is done.
func (t *Task) Serve(ctx context.Context) {
	t.logger.Debug("Task worker started")
	defer t.logger.Debug("Task worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-t.activate:
			if !a.run.Armed() {
				continue
			}
			a.job(ctx, a.run)
		}
	}
}
