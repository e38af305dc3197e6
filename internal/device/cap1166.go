package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// CAP1166 registers
const (
	cap1166Address       = 0x2c
	cap1166MainControl   = 0x00
	cap1166InputStatus   = 0x03
	cap1166RepeatEnable  = 0x28
	cap1166MultiTouch    = 0x2a
	cap1166LEDLinking    = 0x72
	cap1166LEDOutput     = 0x74
	cap1166MainInterrupt = 0x01
)

// cap1166PollInterval is how often the input status register is read
const cap1166PollInterval = 20 * time.Millisecond

// CAP1166 reads the six capacitive buttons of the GFX HAT and drives their
// indicator LEDs. The LED outputs are wired in reverse channel order.
type CAP1166 struct {
	logger *zap.Logger
	dev    txer
	events chan domain.TouchEvent

	mu    sync.Mutex
	leds  byte
	last  byte
	drops int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCAP1166 configures the chip for host-controlled LEDs and no key repeat
func NewCAP1166(logger *zap.Logger, dev txer) (*CAP1166, error) {
	c := &CAP1166{
		logger: logger,
		dev:    dev,
		events: make(chan domain.TouchEvent, 16),
	}
	for _, w := range [][]byte{
		{cap1166RepeatEnable, 0x00},
		{cap1166MultiTouch, 0x00},
		{cap1166LEDLinking, 0x00},
		{cap1166LEDOutput, 0x00},
	} {
		if err := dev.Tx(w, nil); err != nil {
			return nil, fmt.Errorf("cap1166 init failed: %w", err)
		}
	}
	return c, nil
}

// Start polls the chip until Stop
func (c *CAP1166) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.poll(ctx)
}

// Stop ends polling and closes the event channel
func (c *CAP1166) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	close(c.events)
}

// Events returns a read-only channel delivering touch events
func (c *CAP1166) Events() <-chan domain.TouchEvent {
	return c.events
}

// SetLED lights or clears the indicator of a channel
func (c *CAP1166) SetLED(ch domain.Channel, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bit := byte(1) << (domain.NumChannels - 1 - int(ch))
	if on {
		c.leds |= bit
	} else {
		c.leds &^= bit
	}
	if err := c.dev.Tx([]byte{cap1166LEDOutput, c.leds}, nil); err != nil {
		return fmt.Errorf("cap1166 led write failed: %w", err)
	}
	return nil
}

func (c *CAP1166) poll(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(cap1166PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := c.readStatus()
			if err != nil {
				c.logger.Warn("Touch poll failed", zap.Error(err))
				continue
			}
			c.emitChanges(status)
		}
	}
}

// readStatus clears the interrupt latch and reads the current inputs
func (c *CAP1166) readStatus() (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var r [1]byte
	if err := c.dev.Tx([]byte{cap1166MainControl}, r[:]); err != nil {
		return 0, err
	}
	if r[0]&cap1166MainInterrupt != 0 {
		if err := c.dev.Tx([]byte{cap1166MainControl, r[0] &^ cap1166MainInterrupt}, nil); err != nil {
			return 0, err
		}
	}
	if err := c.dev.Tx([]byte{cap1166InputStatus}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// emitChanges turns the edges between two status reads into events
func (c *CAP1166) emitChanges(status byte) {
	changed := status ^ c.last
	c.last = status

	for ch := range domain.NumChannels {
		bit := byte(1) << ch
		if changed&bit == 0 {
			continue
		}
		action := domain.TouchRelease
		if status&bit != 0 {
			action = domain.TouchPress
		}
		c.emit(domain.TouchEvent{Channel: domain.Channel(ch), Action: action})
	}
}

func (c *CAP1166) emit(ev domain.TouchEvent) {
	select {
	case c.events <- ev:
	default:
		c.drops++
		c.logger.Warn("Touch events channel full, dropping event",
			zap.Int("channel", int(ev.Channel)),
			zap.Stringer("action", ev.Action),
			zap.Int("dropped", c.drops))
	}
}
