package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/genricoloni/mpdpanel/internal/backlight"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"github.com/genricoloni/mpdpanel/internal/input"
	"github.com/genricoloni/mpdpanel/internal/render"
	"github.com/genricoloni/mpdpanel/internal/schedule"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler is the part of schedule.Set driven by state transitions
type Scheduler interface {
	Run(ctx context.Context)
	ArmKeepalive()
	ArmTextScroll()
	ArmPlayback(timing schedule.Timing)
	CancelPlayback()
	CancelTextScroll()
	CancelAll()
}

// Engine is the state monitor. It waits for player changes, keeps the
// current snapshot and re-synchronizes the surface, the animation tasks and
// the input gate on every transition.
type Engine struct {
	logger     *zap.Logger
	player     domain.Player
	surface    *render.Surface
	sched      Scheduler
	input      *input.Dispatcher
	backlight  *backlight.Manager
	touch      domain.Touch
	shutdowner fx.Shutdowner
	track      int
	now        func() time.Time

	// Owned by the monitor goroutine
	snapshot domain.Snapshot
	shown    domain.SongID // track whose labels are on screen

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewEngine creates a new state monitor
func NewEngine(
	logger *zap.Logger,
	player domain.Player,
	surface *render.Surface,
	sched Scheduler,
	dispatcher *input.Dispatcher,
	bl *backlight.Manager,
	touch domain.Touch,
	shutdowner fx.Shutdowner,
	width int,
) *Engine {
	return &Engine{
		logger:     logger,
		player:     player,
		surface:    surface,
		sched:      sched,
		input:      dispatcher,
		backlight:  bl,
		touch:      touch,
		shutdowner: shutdowner,
		track:      width - 2,
		now:        time.Now,
		snapshot:   stoppedSnapshot(),
		shown:      domain.NoSong,
	}
}

func stoppedSnapshot() domain.Snapshot {
	return domain.Snapshot{Status: domain.Status{State: domain.StateStopped, SongID: domain.NoSong}}
}

// Start connects to the player, draws the placeholder frame and launches
// the workers. It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...")

	if err := e.player.Connect(ctx); err != nil {
		return fmt.Errorf("player connect failed: %w", err)
	}

	if err := e.surface.Update(func(f *render.Frame) { f.Reset() }); err != nil {
		e.logger.Warn("Failed to draw placeholder frame", zap.Error(err))
	}
	e.backlight.Activity()

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	e.cancel = cancel
	e.group = group

	e.sched.ArmKeepalive()
	group.Go(func() error {
		e.sched.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		e.input.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return e.monitor(groupCtx)
	})
	return nil
}

// monitor performs the initial sync, then loops on the idle-wait until ctx
// is done or the player connection fails
func (e *Engine) monitor(ctx context.Context) error {
	err := e.sync(ctx)
	for err == nil {
		if err = e.player.WaitForChange(ctx); err != nil {
			break
		}
		e.backlight.Activity()
		err = e.sync(ctx)
	}

	if ctx.Err() != nil {
		e.logger.Info("Engine loop stopped")
		return nil
	}

	e.logger.Error("Player connection lost, shutting down", zap.Error(err))
	if serr := e.shutdowner.Shutdown(fx.ExitCode(1)); serr != nil {
		e.logger.Error("Failed to request shutdown", zap.Error(serr))
	}
	return err
}

// sync fetches a fresh snapshot and applies it. Only connection failures
// are returned.
func (e *Engine) sync(ctx context.Context) error {
	status, err := e.player.Status(ctx)
	if err != nil {
		return e.fetchFailed("status", err)
	}

	next := domain.Snapshot{Status: status, Song: e.snapshot.Song}
	if status.SongID.Valid() && status.SongID != e.snapshot.SongID {
		song, err := e.player.CurrentSong(ctx)
		if err != nil {
			if ferr := e.fetchFailed("current song", err); ferr != nil {
				return ferr
			}
		}
		next.Song = song
	}

	e.transition(next)
	return nil
}

func (e *Engine) fetchFailed(what string, err error) error {
	if errors.Is(err, domain.ErrConnectionFailure) {
		return err
	}
	e.logger.Warn("Failed to fetch "+what+", keeping previous frame", zap.Error(err))
	return nil
}

// transition applies next against the current snapshot and replaces it
func (e *Engine) transition(next domain.Snapshot) {
	prev := e.snapshot
	if prev.State != next.State || prev.SongID != next.SongID {
		e.logger.Info("Playback changed",
			zap.String("from", string(prev.State)),
			zap.String("to", string(next.State)),
			zap.Int64("songid", int64(next.SongID)),
			zap.String("title", next.Title))
	}

	switch next.State {
	case domain.StatePlaying:
		e.play(next)
	case domain.StatePaused:
		e.pause(next)
	default:
		e.stop()
		next = stoppedSnapshot()
	}
	e.snapshot = next
}

func (e *Engine) play(next domain.Snapshot) {
	e.sched.CancelPlayback()

	changed := next.SongID != e.shown
	if changed {
		e.sched.CancelTextScroll()
	}

	interval, columns := e.position(next.Status)
	progressed := interval * columns

	var scrollable bool
	err := e.surface.Update(func(f *render.Frame) {
		if changed {
			scrollable = showTrack(f, next)
		}
		f.SetProgress(int(columns))
		f.SetElapsed(next.Elapsed)
	})
	if err != nil {
		e.logger.Warn("Failed to draw playing frame", zap.Error(err))
	}

	if changed {
		e.shown = next.SongID
		e.input.Enable()
		if scrollable {
			e.sched.ArmTextScroll()
		}
	}

	elapsed := max(next.Elapsed, 0)
	e.sched.ArmPlayback(schedule.Timing{
		Origin:     e.now().Add(-time.Duration(elapsed * float64(time.Second))),
		Elapsed:    int(elapsed),
		Progressed: progressed,
		Interval:   interval,
		Duration:   next.Duration,
	})
}

// pause freezes the frame. A track that is not on screen yet (start-up on a
// paused player, skipping while paused) is drawn once with its position.
func (e *Engine) pause(next domain.Snapshot) {
	e.sched.CancelPlayback()

	if next.SongID == e.shown {
		return
	}
	e.sched.CancelTextScroll()

	var scrollable bool
	err := e.surface.Update(func(f *render.Frame) {
		scrollable = showTrack(f, next)
		_, columns := e.position(next.Status)
		f.SetProgress(int(columns))
		f.SetElapsed(next.Elapsed)
	})
	if err != nil {
		e.logger.Warn("Failed to draw paused frame", zap.Error(err))
	}

	e.shown = next.SongID
	e.input.Enable()
	if scrollable {
		e.sched.ArmTextScroll()
	}
}

func (e *Engine) stop() {
	e.sched.CancelTextScroll()
	e.sched.CancelPlayback()

	if err := e.surface.Update(func(f *render.Frame) { f.Reset() }); err != nil {
		e.logger.Warn("Failed to draw stopped frame", zap.Error(err))
	}
	e.shown = domain.NoSong
	e.input.Disable()
}

// position returns the seconds per progress column and the number of
// columns covered at the reported elapsed time. Both are zero for an unknown
// duration.
func (e *Engine) position(s domain.Status) (interval, columns float64) {
	if s.Duration <= 0 || e.track <= 0 {
		return 0, 0
	}
	interval = s.Duration / float64(e.track)
	return interval, math.Floor(max(s.Elapsed, 0) / interval)
}

// showTrack draws the labels and the duration clock and reports whether any
// label needs scrolling
func showTrack(f *render.Frame, s domain.Snapshot) bool {
	f.SetTrack(s.Title, s.Artist, s.Album)
	f.SetDuration(s.Duration)
	return f.AnyScrollable()
}

// Snapshot returns the current snapshot. Only safe once the monitor is stopped.
func (e *Engine) Snapshot() domain.Snapshot {
	return e.snapshot
}

// Stop cancels every task, disconnects the player and leaves the panel dark.
// Every step is attempted; errors are combined.
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")

	e.sched.CancelAll()
	e.input.Disable()
	if e.cancel != nil {
		e.cancel()
	}

	// Unblocks the idle-wait
	err := e.player.Close()

	if e.group != nil {
		done := make(chan error, 1)
		go func() { done <- e.group.Wait() }()
		select {
		case werr := <-done:
			if werr != nil {
				e.logger.Debug("Engine workers ended with error", zap.Error(werr))
			}
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("waiting for engine workers: %w", ctx.Err()))
		}
	}

	err = multierr.Append(err, e.surface.Blank())
	for ch := range domain.NumChannels {
		err = multierr.Append(err, e.touch.SetLED(domain.Channel(ch), false))
	}
	err = multierr.Append(err, e.backlight.Stop())

	if err != nil {
		e.logger.Error("Engine stopped with errors", zap.Error(err))
		return err
	}
	e.logger.Info("Engine stopped")
	return nil
}
