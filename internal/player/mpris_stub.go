//go:build !linux
// +build !linux

package player

import (
	"context"
	"fmt"
	"time"

	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// Mpris stub for non-Linux platforms
type Mpris struct {
	logger *zap.Logger
}

// NewMpris creates a stub backend that fails to connect on non-Linux platforms
func NewMpris(logger *zap.Logger, cfg config.PlayerConfig) *Mpris {
	return &Mpris{logger: logger}
}

var errMprisUnsupported = fmt.Errorf("%w: MPRIS is only supported on Linux systems", domain.ErrConnectionFailure)

// Connect returns an error indicating MPRIS is not supported on this platform
func (m *Mpris) Connect(ctx context.Context) error { return errMprisUnsupported }

func (m *Mpris) WaitForChange(ctx context.Context) error { return errMprisUnsupported }

func (m *Mpris) Status(ctx context.Context) (domain.Status, error) {
	return domain.Status{State: domain.StateStopped, SongID: domain.NoSong}, errMprisUnsupported
}

func (m *Mpris) CurrentSong(ctx context.Context) (domain.Song, error) {
	return domain.Song{}, errMprisUnsupported
}

func (m *Mpris) Ping(ctx context.Context) error                              { return errMprisUnsupported }
func (m *Mpris) Previous(ctx context.Context) error                          { return errMprisUnsupported }
func (m *Mpris) Next(ctx context.Context) error                              { return errMprisUnsupported }
func (m *Mpris) Stop(ctx context.Context) error                              { return errMprisUnsupported }
func (m *Mpris) TogglePause(ctx context.Context) error                       { return errMprisUnsupported }
func (m *Mpris) SeekRelative(ctx context.Context, delta time.Duration) error { return errMprisUnsupported }

// Close is a no-op on non-Linux platforms
func (m *Mpris) Close() error {
	return nil
}
