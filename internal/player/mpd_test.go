package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// fakeConn records the commands it receives
type fakeConn struct {
	status  mpd.Attrs
	song    mpd.Attrs
	err     error
	calls   []string
	closed  bool
	paused  []bool
	seeks   []time.Duration
	pingErr error
}

func (c *fakeConn) record(name string) error {
	c.calls = append(c.calls, name)
	return c.err
}

func (c *fakeConn) Ping() error {
	c.calls = append(c.calls, "ping")
	return c.pingErr
}

func (c *fakeConn) Status() (mpd.Attrs, error) {
	return c.status, c.record("status")
}

func (c *fakeConn) CurrentSong() (mpd.Attrs, error) {
	return c.song, c.record("currentsong")
}

func (c *fakeConn) Previous() error { return c.record("previous") }
func (c *fakeConn) Next() error     { return c.record("next") }
func (c *fakeConn) Stop() error     { return c.record("stop") }

func (c *fakeConn) Pause(pause bool) error {
	c.paused = append(c.paused, pause)
	return c.record("pause")
}

func (c *fakeConn) SeekCur(d time.Duration, relative bool) error {
	if !relative {
		return errors.New("absolute seek not expected")
	}
	c.seeks = append(c.seeks, d)
	return c.record("seekcur")
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type testMPD struct {
	*MPD
	events  chan string
	errs    chan error
	status  *fakeConn
	control *fakeConn
}

func newTestMPD(t *testing.T) *testMPD {
	t.Helper()
	tm := &testMPD{
		MPD:     NewMPD(zap.NewNop(), config.Default().Player),
		events:  make(chan string, 4),
		errs:    make(chan error, 4),
		status:  &fakeConn{},
		control: &fakeConn{},
	}

	conns := []*fakeConn{tm.status, tm.control}
	tm.dial = func(network, addr, password string) (mpdConn, error) {
		c := conns[0]
		conns = conns[1:]
		return c, nil
	}
	tm.dialIdle = func(network, addr, password string) (*idleSource, error) {
		return &idleSource{events: tm.events, errors: tm.errs, close: func() error { return nil }}, nil
	}

	if err := tm.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return tm
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name  string
		attrs mpd.Attrs
		want  domain.Status
	}{
		{
			name:  "Playing",
			attrs: mpd.Attrs{"state": "play", "songid": "7", "elapsed": "30.000", "duration": "120.000"},
			want:  domain.Status{State: domain.StatePlaying, SongID: 7, Elapsed: 30, Duration: 120},
		},
		{
			name:  "Paused",
			attrs: mpd.Attrs{"state": "pause", "songid": "3", "elapsed": "12.5", "duration": "200.25"},
			want:  domain.Status{State: domain.StatePaused, SongID: 3, Elapsed: 12.5, Duration: 200.25},
		},
		{
			name:  "Stopped without song",
			attrs: mpd.Attrs{"state": "stop"},
			want:  domain.Status{State: domain.StateStopped, SongID: domain.NoSong},
		},
		{
			name:  "Duration falls back to time",
			attrs: mpd.Attrs{"state": "play", "songid": "1", "time": "31:240"},
			want:  domain.Status{State: domain.StatePlaying, SongID: 1, Elapsed: 31, Duration: 240},
		},
		{
			name:  "Elapsed preferred over time",
			attrs: mpd.Attrs{"state": "play", "songid": "1", "time": "31:240", "elapsed": "31.7"},
			want:  domain.Status{State: domain.StatePlaying, SongID: 1, Elapsed: 31.7, Duration: 240},
		},
		{
			name:  "Stream without duration",
			attrs: mpd.Attrs{"state": "play", "songid": "2", "elapsed": "5.0"},
			want:  domain.Status{State: domain.StatePlaying, SongID: 2, Elapsed: 5},
		},
		{
			name:  "Malformed fields",
			attrs: mpd.Attrs{"state": "bogus", "songid": "x", "elapsed": "y", "time": "nope"},
			want:  domain.Status{State: domain.StateStopped, SongID: domain.NoSong},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseStatus(tt.attrs); got != tt.want {
				t.Errorf("parseStatus: want %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestMPD_StatusAndSong(t *testing.T) {
	tm := newTestMPD(t)
	tm.status.status = mpd.Attrs{"state": "play", "songid": "7", "elapsed": "30", "duration": "120"}
	tm.status.song = mpd.Attrs{"Title": "So What", "Artist": "Miles Davis"}

	st, err := tm.Status(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if st.SongID != 7 || st.State != domain.StatePlaying {
		t.Errorf("Unexpected status %+v", st)
	}

	song, err := tm.CurrentSong(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if song.Title != "So What" || song.Artist != "Miles Davis" || song.Album != "" {
		t.Errorf("Unexpected song %+v", song)
	}
	if len(tm.control.calls) != 0 {
		t.Errorf("Fetches must use the status connection, control saw %v", tm.control.calls)
	}
}

func TestMPD_Commands(t *testing.T) {
	tm := newTestMPD(t)
	ctx := context.Background()

	for _, fn := range []func(context.Context) error{tm.Previous, tm.Next, tm.Stop} {
		if err := fn(ctx); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if err := tm.SeekRelative(ctx, 5*time.Second); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	want := []string{"previous", "next", "stop", "seekcur"}
	if fmt.Sprint(tm.control.calls) != fmt.Sprint(want) {
		t.Errorf("Calls: want %v, got %v", want, tm.control.calls)
	}
	if len(tm.control.seeks) != 1 || tm.control.seeks[0] != 5*time.Second {
		t.Errorf("Seeks: got %v", tm.control.seeks)
	}
}

func TestMPD_TogglePause(t *testing.T) {
	tm := newTestMPD(t)

	tm.control.status = mpd.Attrs{"state": "play"}
	if err := tm.TogglePause(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	tm.control.status = mpd.Attrs{"state": "pause"}
	if err := tm.TogglePause(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if fmt.Sprint(tm.control.paused) != "[true false]" {
		t.Errorf("Pause arguments: want [true false], got %v", tm.control.paused)
	}
}

func TestMPD_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"Server ACK", errors.New("command 'seekcur' failed: Not playing"), domain.ErrCommandRejected},
		{"EOF", io.EOF, domain.ErrConnectionFailure},
		{"Closed", fmt.Errorf("write: %w", net.ErrClosed), domain.ErrConnectionFailure},
		{"Broken pipe", &net.OpError{Op: "write", Net: "unix", Err: syscall.EPIPE}, domain.ErrConnectionFailure},
		{"Reset", fmt.Errorf("read: %w", syscall.ECONNRESET), domain.ErrConnectionFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := newTestMPD(t)
			tm.control.err = tt.err

			err := tm.SeekRelative(context.Background(), -5*time.Second)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected the cause to stay wrapped, got %v", err)
			}
		})
	}
}

func TestMPD_PingBothConnections(t *testing.T) {
	tm := newTestMPD(t)
	tm.status.pingErr = io.EOF

	err := tm.Ping(context.Background())
	if !errors.Is(err, domain.ErrConnectionFailure) {
		t.Errorf("Expected connection failure, got %v", err)
	}
	if len(tm.status.calls) != 1 || len(tm.control.calls) != 1 {
		t.Errorf("Expected one ping per connection, got %v and %v", tm.status.calls, tm.control.calls)
	}
}

func TestMPD_WaitForChange(t *testing.T) {
	tm := newTestMPD(t)
	ctx := context.Background()

	tm.events <- "player"
	if err := tm.WaitForChange(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Protocol-level watcher errors are skipped
	tm.errs <- errors.New("unexpected response")
	tm.events <- "player"
	if err := tm.WaitForChange(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tm.errs <- io.EOF
	if err := tm.WaitForChange(ctx); !errors.Is(err, domain.ErrConnectionFailure) {
		t.Errorf("Expected connection failure, got %v", err)
	}

	close(tm.events)
	if err := tm.WaitForChange(ctx); !errors.Is(err, domain.ErrConnectionFailure) {
		t.Errorf("Expected connection failure on closed watcher, got %v", err)
	}
}

func TestMPD_WaitForChangeCancelled(t *testing.T) {
	tm := newTestMPD(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tm.WaitForChange(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestMPD_Close(t *testing.T) {
	tm := newTestMPD(t)

	if err := tm.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !tm.status.closed || !tm.control.closed {
		t.Error("Expected both connections closed")
	}
	if err := tm.Next(context.Background()); !errors.Is(err, domain.ErrConnectionFailure) {
		t.Errorf("Expected connection failure after close, got %v", err)
	}
	if err := tm.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}

func TestMPD_ConnectFailure(t *testing.T) {
	m := NewMPD(zap.NewNop(), config.Default().Player)
	m.dialIdle = func(network, addr, password string) (*idleSource, error) {
		return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ECONNREFUSED}
	}

	if err := m.Connect(context.Background()); !errors.Is(err, domain.ErrConnectionFailure) {
		t.Errorf("Expected connection failure, got %v", err)
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	if p, err := New(zap.NewNop(), cfg); err != nil {
		t.Errorf("Unexpected error: %v", err)
	} else if _, ok := p.(*MPD); !ok {
		t.Errorf("Expected *MPD, got %T", p)
	}

	cfg.Player.Backend = config.BackendMpris
	if p, err := New(zap.NewNop(), cfg); err != nil {
		t.Errorf("Unexpected error: %v", err)
	} else if _, ok := p.(*Mpris); !ok {
		t.Errorf("Expected *Mpris, got %T", p)
	}

	cfg.Player.Backend = "winamp"
	if _, err := New(zap.NewNop(), cfg); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
