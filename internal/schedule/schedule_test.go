package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAnimator struct {
	mu         sync.Mutex
	width      [fieldCount]int // scrollable width per field, 0 = fits
	offset     [fieldCount]int
	scrolls    [fieldCount]int
	progresses int
	elapsed    int
}

func (a *fakeAnimator) Scrollable(i int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.width[i] > 0
}

func (a *fakeAnimator) Scrolled(i int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offset[i] != 0
}

func (a *fakeAnimator) ScrollField(i int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offset[i] = (a.offset[i] + 1) % (a.width[i] + 1)
	a.scrolls[i]++
	return nil
}

func (a *fakeAnimator) AdvanceProgress() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progresses++
	return nil
}

func (a *fakeAnimator) TickElapsed() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.elapsed++
	return nil
}

func (a *fakeAnimator) counts() (progress, elapsed int, scrolls [fieldCount]int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progresses, a.elapsed, a.scrolls
}

type countingPinger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPinger) Ping(context.Context) error {
	p.calls.Add(1)
	return p.err
}

func startSet(t *testing.T, animator Animator, pinger Pinger) *Set {
	t.Helper()
	s := NewSet(zap.NewNop(), animator, pinger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		s.CancelAll()
		cancel()
		<-done
	})
	return s
}

func TestTask_CancelIsIdempotent(t *testing.T) {
	task := NewTask("test", zap.NewNop())

	// Unarmed
	assert.NotPanics(t, task.Cancel)
	assert.False(t, task.Armed())

	task.Arm(func(ctx context.Context, run *Run) {})
	assert.True(t, task.Armed())

	task.Cancel()
	task.Cancel()
	assert.False(t, task.Armed())
}

func TestTask_CancelAfterFire(t *testing.T) {
	task := NewTask("test", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Serve(ctx)

	fired := make(chan struct{})
	task.Arm(func(ctx context.Context, run *Run) {
		if run.SleepUntil(ctx, time.Now()) {
			close(fired)
		}
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}

	assert.NotPanics(t, task.Cancel)
	assert.NotPanics(t, task.Cancel)
	assert.False(t, task.Armed())
}

func TestTask_RearmSupersedesRun(t *testing.T) {
	task := NewTask("test", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go task.Serve(ctx)

	firstEnded := make(chan bool, 1)
	started := make(chan struct{})
	task.Arm(func(ctx context.Context, run *Run) {
		close(started)
		firstEnded <- run.SleepUntil(ctx, time.Now().Add(time.Hour))
	})
	<-started

	secondRan := make(chan struct{})
	task.Arm(func(ctx context.Context, run *Run) {
		close(secondRan)
	})

	select {
	case reached := <-firstEnded:
		assert.False(t, reached, "superseded run must not reach its deadline")
	case <-time.After(2 * time.Second):
		t.Fatal("superseded run did not wake up")
	}
	select {
	case <-secondRan:
	case <-time.After(2 * time.Second):
		t.Fatal("new run never started")
	}
	assert.True(t, task.Armed())
}

func TestRun_SleepUntilContextDone(t *testing.T) {
	run := newRun()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, run.SleepUntil(ctx, time.Now().Add(time.Hour)))
	assert.True(t, run.Armed())
}

func TestSet_ProgressTicksUntilDuration(t *testing.T) {
	animator := &fakeAnimator{}
	s := startSet(t, animator, &countingPinger{})

	// 0.125s per column over 0.5s is 4 ticks
	s.ArmPlayback(Timing{
		Origin:   time.Now(),
		Interval: 0.125,
		Duration: 0.5,
	})

	assert.Eventually(t, func() bool {
		p, _, _ := animator.counts()
		return p == 4
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	p, _, _ := animator.counts()
	assert.Equal(t, 4, p, "no tick past the duration")
}

func TestSet_ZeroIntervalSkipsProgress(t *testing.T) {
	animator := &fakeAnimator{}
	s := startSet(t, animator, &countingPinger{})

	s.ArmPlayback(Timing{Origin: time.Now(), Duration: 0})

	assert.False(t, s.ProgressTick.Armed())
	assert.True(t, s.ElapsedTick.Armed())
}

func TestSet_ElapsedCatchesUpFromOrigin(t *testing.T) {
	animator := &fakeAnimator{}
	s := startSet(t, animator, &countingPinger{})

	// Snapshot said elapsed=3 while the origin puts us at 5.5s
	s.ArmPlayback(Timing{
		Origin:   time.Now().Add(-5500 * time.Millisecond),
		Elapsed:  3,
		Duration: 6,
	})

	// Ticks for seconds 4 and 5 are overdue, 6 fires within half a second
	assert.Eventually(t, func() bool {
		_, e, _ := animator.counts()
		return e == 3
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	_, e, _ := animator.counts()
	assert.Equal(t, 3, e)
}

func TestSet_CancelPlaybackStopsTicks(t *testing.T) {
	animator := &fakeAnimator{}
	s := startSet(t, animator, &countingPinger{})

	s.ArmPlayback(Timing{
		Origin:   time.Now().Add(time.Hour),
		Interval: 1,
		Duration: 7200,
	})
	require.True(t, s.ProgressTick.Armed())

	s.CancelPlayback()
	s.CancelPlayback()
	assert.False(t, s.ProgressTick.Armed())
	assert.False(t, s.ElapsedTick.Armed())

	p, e, _ := animator.counts()
	assert.Zero(t, p)
	assert.Zero(t, e)
}

func TestSet_TextScrollRoundRobin(t *testing.T) {
	animator := &fakeAnimator{width: [fieldCount]int{3, 0, 2}}
	s := startSet(t, animator, &countingPinger{})
	s.periods.ScrollHold = 5 * time.Millisecond
	s.periods.ScrollStep = time.Millisecond

	s.ArmTextScroll()

	// A full pass over field 0 is width+1 steps, then field 2 gets its turn
	assert.Eventually(t, func() bool {
		_, _, scrolls := animator.counts()
		return scrolls[0] >= 4 && scrolls[2] >= 3
	}, 2*time.Second, 5*time.Millisecond)

	_, _, scrolls := animator.counts()
	assert.Zero(t, scrolls[1], "fitting field is never scrolled")

	s.CancelTextScroll()
	assert.False(t, s.TextScroll.Armed())
}

func TestSet_TextScrollNothingScrollable(t *testing.T) {
	animator := &fakeAnimator{}
	s := startSet(t, animator, &countingPinger{})
	s.periods.ScrollHold = time.Millisecond

	s.ArmTextScroll()
	time.Sleep(50 * time.Millisecond)

	_, _, scrolls := animator.counts()
	assert.Equal(t, [fieldCount]int{}, scrolls)
}

func TestSet_KeepaliveSwallowsErrors(t *testing.T) {
	pinger := &countingPinger{err: errors.New("broken pipe")}
	s := startSet(t, &fakeAnimator{}, pinger)
	s.periods.Keepalive = 5 * time.Millisecond

	s.ArmKeepalive()

	assert.Eventually(t, func() bool {
		return pinger.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Keepalive.Armed(), "ping failure does not stop the task")

	s.CancelAll()
	assert.False(t, s.Keepalive.Armed())
}
