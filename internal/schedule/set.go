package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Animator is the part of the render surface driven by the animation tasks
type Animator interface {
	Scrollable(i int) bool
	Scrolled(i int) bool
	ScrollField(i int) error
	AdvanceProgress() error
	TickElapsed() error
}

// Pinger issues the keepalive command
type Pinger interface {
	Ping(ctx context.Context) error
}

// Periods holds the fixed cadences of the periodic tasks
type Periods struct {
	Keepalive  time.Duration
	ScrollHold time.Duration // pause before a field starts scrolling
	ScrollStep time.Duration // cadence while a field is mid-scroll
}

// DefaultPeriods are the production cadences
var DefaultPeriods = Periods{
	Keepalive:  59 * time.Second,
	ScrollHold: 1500 * time.Millisecond,
	ScrollStep: 100 * time.Millisecond,
}

// fieldCount is the number of text fields cycled by the scroll task
const fieldCount = 3

// Timing anchors the progress and elapsed tasks to wall-clock time
type Timing struct {
	Origin     time.Time // wall-clock time at which playback position was zero
	Elapsed    int       // whole seconds already shown on the elapsed clock
	Progressed float64   // seconds already covered by the progress bar
	Interval   float64   // seconds per progress column
	Duration   float64   // track length in seconds
}

// Set holds the four task runners
type Set struct {
	logger   *zap.Logger
	animator Animator
	pinger   Pinger
	periods  Periods

	Keepalive    *Task
	TextScroll   *Task
	ProgressTick *Task
	ElapsedTick  *Task
}

// NewSet creates the four unarmed tasks
func NewSet(logger *zap.Logger, animator Animator, pinger Pinger) *Set {
	return &Set{
		logger:       logger,
		animator:     animator,
		pinger:       pinger,
		periods:      DefaultPeriods,
		Keepalive:    NewTask("keepalive", logger),
		TextScroll:   NewTask("text-scroll", logger),
		ProgressTick: NewTask("progress-tick", logger),
		ElapsedTick:  NewTask("elapsed-tick", logger),
	}
}

// Run serves all four tasks, one worker each, until ctx is done
func (s *Set) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.tasks() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.Serve(ctx)
		}()
	}
	wg.Wait()
}

func (s *Set) tasks() []*Task {
	return []*Task{s.Keepalive, s.TextScroll, s.ProgressTick, s.ElapsedTick}
}

// ArmKeepalive starts the liveness ping
func (s *Set) ArmKeepalive() {
	s.Keepalive.Arm(s.keepaliveJob)
}

// ArmTextScroll starts cycling through the scrollable fields
func (s *Set) ArmTextScroll() {
	s.TextScroll.Arm(s.textScrollJob)
}

// ArmPlayback starts the progress and elapsed tasks from timing.
// A zero interval (unknown duration) leaves the progress task unarmed.
func (s *Set) ArmPlayback(timing Timing) {
	if timing.Interval > 0 {
		s.ProgressTick.Arm(s.progressJob(timing))
	}
	s.ElapsedTick.Arm(s.elapsedJob(timing))
}

// CancelPlayback cancels the progress and elapsed tasks
func (s *Set) CancelPlayback() {
	s.ProgressTick.Cancel()
	s.ElapsedTick.Cancel()
}

// CancelTextScroll cancels the scroll task
func (s *Set) CancelTextScroll() {
	s.TextScroll.Cancel()
}

// CancelAll cancels every task, keepalive included
func (s *Set) CancelAll() {
	for _, t := range s.tasks() {
		t.Cancel()
	}
}

func (s *Set) keepaliveJob(ctx context.Context, run *Run) {
	for run.Armed() {
		if !run.SleepUntil(ctx, time.Now().Add(s.periods.Keepalive)) {
			return
		}
		// Connection-level failures surface through the state monitor
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Debug("Keepalive ping failed", zap.Error(err))
		}
	}
}

func (s *Set) textScrollJob(ctx context.Context, run *Run) {
	idx := 0
	for run.Armed() {
		if !s.anyScrollable() {
			return
		}
		if s.animator.Scrollable(idx) {
			if !run.SleepUntil(ctx, time.Now().Add(s.periods.ScrollHold)) {
				return
			}
			s.scroll(run, idx)
			for run.Armed() && s.animator.Scrolled(idx) {
				if !run.SleepUntil(ctx, time.Now().Add(s.periods.ScrollStep)) {
					return
				}
				s.scroll(run, idx)
			}
		}
		idx = (idx + 1) % fieldCount
	}
}

func (s *Set) anyScrollable() bool {
	for i := range fieldCount {
		if s.animator.Scrollable(i) {
			return true
		}
	}
	return false
}

func (s *Set) scroll(run *Run, idx int) {
	if !run.Armed() {
		return
	}
	if err := s.animator.ScrollField(idx); err != nil {
		s.logger.Warn("Scroll frame failed", zap.Int("field", idx), zap.Error(err))
	}
}

func (s *Set) progressJob(timing Timing) Job {
	return func(ctx context.Context, run *Run) {
		progressed := timing.Progressed
		for run.Armed() {
			progressed += timing.Interval
			if progressed > timing.Duration {
				return
			}
			if !run.SleepUntil(ctx, timing.Origin.Add(seconds(progressed))) {
				return
			}
			if !run.Armed() {
				return
			}
			if err := s.animator.AdvanceProgress(); err != nil {
				s.logger.Warn("Progress frame failed", zap.Error(err))
			}
		}
	}
}

func (s *Set) elapsedJob(timing Timing) Job {
	return func(ctx context.Context, run *Run) {
		elapsed := timing.Elapsed
		for run.Armed() {
			elapsed++
			if float64(elapsed) > timing.Duration {
				return
			}
			if !run.SleepUntil(ctx, timing.Origin.Add(time.Duration(elapsed)*time.Second)) {
				return
			}
			if !run.Armed() {
				return
			}
			if err := s.animator.TickElapsed(); err != nil {
				s.logger.Warn("Elapsed frame failed", zap.Error(err))
			}
		}
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
