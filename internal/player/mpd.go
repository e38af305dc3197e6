package player

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// mpdConn is the subset of *mpd.Client used by the MPD backend
type mpdConn interface {
	Ping() error
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	Previous() error
	Next() error
	Stop() error
	Pause(pause bool) error
	SeekCur(d time.Duration, relative bool) error
	Close() error
}

// idleSource delivers "player" subsystem changes
type idleSource struct {
	events <-chan string
	errors <-chan error
	close  func() error
}

type (
	connDialer    func(network, addr, password string) (mpdConn, error)
	watcherDialer func(network, addr, password string) (*idleSource, error)
)

func dialClient(network, addr, password string) (mpdConn, error) {
	if password != "" {
		return mpd.DialAuthenticated(network, addr, password)
	}
	return mpd.Dial(network, addr)
}

func dialWatcher(network, addr, password string) (*idleSource, error) {
	w, err := mpd.NewWatcher(network, addr, password, "player")
	if err != nil {
		return nil, err
	}
	return &idleSource{events: w.Event, errors: w.Error, close: w.Close}, nil
}

// MPD talks to a Music Player Daemon. The status connection serves status
// and metadata fetches after each idle notification, the control connection
// serves playback commands. Each connection is used by one caller at a time.
type MPD struct {
	logger *zap.Logger
	cfg    config.PlayerConfig

	dial      connDialer
	dialIdle  watcherDialer
	idle      *idleSource
	statusMu  sync.Mutex
	status    mpdConn
	controlMu sync.Mutex
	control   mpdConn
}

// NewMPD creates an unconnected MPD backend
func NewMPD(logger *zap.Logger, cfg config.PlayerConfig) *MPD {
	return &MPD{
		logger:   logger,
		cfg:      cfg,
		dial:     dialClient,
		dialIdle: dialWatcher,
	}
}

// Connect opens the watcher, status and control connections
func (m *MPD) Connect(ctx context.Context) error {
	m.logger.Info("Connecting to MPD",
		zap.String("network", m.cfg.Network),
		zap.String("address", m.cfg.Address))

	idle, err := m.dialIdle(m.cfg.Network, m.cfg.Address, m.cfg.Password)
	if err != nil {
		return fmt.Errorf("%w: idle connection: %w", domain.ErrConnectionFailure, err)
	}
	status, err := m.dial(m.cfg.Network, m.cfg.Address, m.cfg.Password)
	if err != nil {
		_ = idle.close()
		return fmt.Errorf("%w: status connection: %w", domain.ErrConnectionFailure, err)
	}
	control, err := m.dial(m.cfg.Network, m.cfg.Address, m.cfg.Password)
	if err != nil {
		_ = idle.close()
		_ = status.Close()
		return fmt.Errorf("%w: control connection: %w", domain.ErrConnectionFailure, err)
	}

	m.idle = idle
	m.statusMu.Lock()
	m.status = status
	m.statusMu.Unlock()
	m.controlMu.Lock()
	m.control = control
	m.controlMu.Unlock()

	m.logger.Info("Connected to MPD")
	return nil
}

// WaitForChange blocks until the player subsystem changes.
// Watcher errors that are not connection-level are logged and skipped.
func (m *MPD) WaitForChange(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case subsystem, ok := <-m.idle.events:
			if !ok {
				return fmt.Errorf("%w: idle watcher closed", domain.ErrConnectionFailure)
			}
			m.logger.Debug("MPD subsystem changed", zap.String("subsystem", subsystem))
			return nil
		case err, ok := <-m.idle.errors:
			if !ok {
				return fmt.Errorf("%w: idle watcher closed", domain.ErrConnectionFailure)
			}
			if isConnectionError(err) {
				return fmt.Errorf("%w: idle: %w", domain.ErrConnectionFailure, err)
			}
			m.logger.Warn("MPD idle error", zap.Error(err))
		}
	}
}

// Status fetches and parses the player status
func (m *MPD) Status(ctx context.Context) (domain.Status, error) {
	var attrs mpd.Attrs
	err := m.withStatus(func(c mpdConn) (err error) {
		attrs, err = c.Status()
		return err
	})
	if err != nil {
		return domain.Status{}, classify("status", err)
	}
	return parseStatus(attrs), nil
}

// CurrentSong fetches the current track metadata
func (m *MPD) CurrentSong(ctx context.Context) (domain.Song, error) {
	var attrs mpd.Attrs
	err := m.withStatus(func(c mpdConn) (err error) {
		attrs, err = c.CurrentSong()
		return err
	})
	if err != nil {
		return domain.Song{}, classify("currentsong", err)
	}
	return domain.Song{
		Title:  attrs["Title"],
		Artist: attrs["Artist"],
		Album:  attrs["Album"],
	}, nil
}

// Ping keeps both command connections alive
func (m *MPD) Ping(ctx context.Context) error {
	statusErr := m.withStatus(func(c mpdConn) error { return c.Ping() })
	controlErr := m.withControl(func(c mpdConn) error { return c.Ping() })
	if statusErr != nil {
		return classify("ping status", statusErr)
	}
	return classify("ping control", controlErr)
}

// Previous plays the previous track
func (m *MPD) Previous(ctx context.Context) error {
	return classify("previous", m.withControl(func(c mpdConn) error { return c.Previous() }))
}

// Next plays the next track
func (m *MPD) Next(ctx context.Context) error {
	return classify("next", m.withControl(func(c mpdConn) error { return c.Next() }))
}

// Stop stops playback
func (m *MPD) Stop(ctx context.Context) error {
	return classify("stop", m.withControl(func(c mpdConn) error { return c.Stop() }))
}

// TogglePause pauses while playing and resumes while paused
func (m *MPD) TogglePause(ctx context.Context) error {
	err := m.withControl(func(c mpdConn) error {
		attrs, err := c.Status()
		if err != nil {
			return err
		}
		return c.Pause(attrs["state"] == "play")
	})
	return classify("pause", err)
}

// SeekRelative seeks within the current track
func (m *MPD) SeekRelative(ctx context.Context, delta time.Duration) error {
	return classify("seekcur", m.withControl(func(c mpdConn) error { return c.SeekCur(delta, true) }))
}

// Close disconnects everything, unblocking WaitForChange
func (m *MPD) Close() error {
	var errs []error
	if m.idle != nil {
		errs = append(errs, m.idle.close())
	}

	m.statusMu.Lock()
	if m.status != nil {
		errs = append(errs, m.status.Close())
		m.status = nil
	}
	m.statusMu.Unlock()

	m.controlMu.Lock()
	if m.control != nil {
		errs = append(errs, m.control.Close())
		m.control = nil
	}
	m.controlMu.Unlock()

	m.logger.Info("Disconnected from MPD")
	return multierr.Combine(errs...)
}

func (m *MPD) withStatus(fn func(c mpdConn) error) error {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	if m.status == nil {
		return errNotConnected
	}
	return fn(m.status)
}

func (m *MPD) withControl(fn func(c mpdConn) error) error {
	m.controlMu.Lock()
	defer m.controlMu.Unlock()
	if m.control == nil {
		return errNotConnected
	}
	return fn(m.control)
}

// parseStatus maps MPD status attributes; missing fields become defaults
func parseStatus(attrs mpd.Attrs) domain.Status {
	st := domain.Status{
		State:  domain.StateStopped,
		SongID: domain.NoSong,
	}

	switch attrs["state"] {
	case "play":
		st.State = domain.StatePlaying
	case "pause":
		st.State = domain.StatePaused
	}

	if id, err := strconv.ParseInt(attrs["songid"], 10, 64); err == nil {
		st.SongID = domain.SongID(id)
	}

	var totalFromTime float64
	if elapsed, total, ok := parseTime(attrs["time"]); ok {
		st.Elapsed = elapsed
		totalFromTime = total
	}
	if v, err := strconv.ParseFloat(attrs["elapsed"], 64); err == nil {
		st.Elapsed = v
	}
	if v, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		st.Duration = v
	} else {
		st.Duration = totalFromTime
	}

	return st
}

// parseTime parses the legacy "elapsed:total" field
func parseTime(s string) (elapsed, total float64, ok bool) {
	a, b, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	e, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, false
	}
	t, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, false
	}
	return e, t, true
}
