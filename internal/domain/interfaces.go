package domain

import (
	"context"
	"image"
	"image/color"
	"time"
)

// Player defines the interface for the networked audio player.
// Implementations hold two connections: a monitor connection used for the
// idle-wait and status fetches, and a controller connection used for
// playback commands and the keepalive ping.
//
//go:generate mockgen -destination=mocks/player_mock.go -package=mocks github.com/genricoloni/mpdpanel/internal/domain Player
type Player interface {
	// Connect opens both connections to the configured endpoint
	Connect(ctx context.Context) error

	// WaitForChange blocks until the player reports a player-subsystem change.
	// A broken connection returns an error wrapping ErrConnectionFailure.
	WaitForChange(ctx context.Context) error

	// Status fetches the current status snapshot
	Status(ctx context.Context) (Status, error)

	// CurrentSong fetches the metadata of the current track
	CurrentSong(ctx context.Context) (Song, error)

	// Ping issues a no-op liveness command
	Ping(ctx context.Context) error

	// Playback commands. A command that is invalid for the current player
	// state returns an error wrapping ErrCommandRejected.
	Previous(ctx context.Context) error
	Next(ctx context.Context) error
	Stop(ctx context.Context) error
	TogglePause(ctx context.Context) error
	SeekRelative(ctx context.Context, delta time.Duration) error

	// Close disconnects both connections, unblocking WaitForChange
	Close() error
}

// Display defines the pixel display collaborator
type Display interface {
	// Commit pushes a complete frame to the physical display.
	// Non-zero pixels are lit.
	Commit(frame image.Image) error
}

// Backlight defines the backlight collaborator
type Backlight interface {
	// SetColor sets every backlight zone and commits it
	SetColor(c color.RGBA) error
}

// Touch defines the touch surface collaborator
type Touch interface {
	// Events returns a read-only channel delivering touch events
	Events() <-chan TouchEvent

	// SetLED lights or clears the indicator of a channel
	SetLED(ch Channel, on bool) error
}
