package input

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// SeekStep is the relative seek of the minus and plus channels
const SeekStep = 5 * time.Second

// Command is a playback command bound to a touch channel
type Command struct {
	Name string
	Fire func(ctx context.Context, p domain.Player) error
}

// Commands is the fixed channel to command table
var Commands = [domain.NumChannels]Command{
	domain.ChannelUp: {"previous", func(ctx context.Context, p domain.Player) error {
		return p.Previous(ctx)
	}},
	domain.ChannelDown: {"next", func(ctx context.Context, p domain.Player) error {
		return p.Next(ctx)
	}},
	domain.ChannelBack: {"stop", func(ctx context.Context, p domain.Player) error {
		return p.Stop(ctx)
	}},
	domain.ChannelMinus: {"seek-back", seek(-SeekStep)},
	domain.ChannelSelect: {"pause", func(ctx context.Context, p domain.Player) error {
		return p.TogglePause(ctx)
	}},
	domain.ChannelPlus: {"seek-forward", seek(SeekStep)},
}

func seek(delta time.Duration) func(context.Context, domain.Player) error {
	return func(ctx context.Context, p domain.Player) error {
		return p.SeekRelative(ctx, delta)
	}
}

// Dispatcher routes touch events to playback commands.
// Delivery is gated: presses are ignored while disabled.
type Dispatcher struct {
	logger  *zap.Logger
	player  domain.Player
	touch   domain.Touch
	enabled atomic.Bool
}

// NewDispatcher creates a disabled dispatcher
func NewDispatcher(logger *zap.Logger, player domain.Player, touch domain.Touch) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		player: player,
		touch:  touch,
	}
}

// Enable starts delivering presses
func (d *Dispatcher) Enable() {
	if !d.enabled.Swap(true) {
		d.logger.Debug("Touch input enabled")
	}
}

// Disable stops delivering presses
func (d *Dispatcher) Disable() {
	if d.enabled.Swap(false) {
		d.logger.Debug("Touch input disabled")
	}
}

// Enabled reports whether presses are delivered
func (d *Dispatcher) Enabled() bool {
	return d.enabled.Load()
}

// Run consumes touch events until ctx is done or the event channel closes
func (d *Dispatcher) Run(ctx context.Context) {
	events := d.touch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				d.logger.Info("Touch events channel closed")
				return
			}
			d.Handle(ctx, ev)
		}
	}
}

// Handle processes one touch event
func (d *Dispatcher) Handle(ctx context.Context, ev domain.TouchEvent) {
	if ev.Channel < 0 || int(ev.Channel) >= domain.NumChannels {
		d.logger.Warn("Touch event on unknown channel", zap.Int("channel", int(ev.Channel)))
		return
	}

	// A release always clears the indicator, even if input was disabled in between
	if ev.Action == domain.TouchRelease {
		d.setLED(ev.Channel, false)
		return
	}
	if !d.Enabled() {
		return
	}

	d.setLED(ev.Channel, true)

	cmd := Commands[ev.Channel]
	err := cmd.Fire(ctx, d.player)
	switch {
	case err == nil:
		d.logger.Debug("Command sent", zap.String("command", cmd.Name))
	case errors.Is(err, domain.ErrCommandRejected):
		d.logger.Debug("Command rejected by player", zap.String("command", cmd.Name), zap.Error(err))
	default:
		// Connection failures end the state monitor, which shuts us down
		d.logger.Warn("Command failed", zap.String("command", cmd.Name), zap.Error(err))
	}
}

func (d *Dispatcher) setLED(ch domain.Channel, on bool) {
	if err := d.touch.SetLED(ch, on); err != nil {
		d.logger.Warn("Failed to set indicator", zap.Int("channel", int(ch)), zap.Bool("on", on), zap.Error(err))
	}
}
