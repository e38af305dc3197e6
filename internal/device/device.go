// Package device implements the display, backlight and touch collaborators
// for the supported panels.
package device

import (
	"fmt"

	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Hardware bundles the collaborators of one panel
type Hardware struct {
	Display   domain.Display
	Backlight domain.Backlight
	Touch     domain.Touch

	quit    <-chan struct{}
	closers []func() error
}

// Quit is closed when the panel itself asks the daemon to stop (the
// terminal simulator does on q). Hardware panels never close it.
func (h *Hardware) Quit() <-chan struct{} {
	return h.quit
}

// Close releases the devices in reverse order of opening
func (h *Hardware) Close() error {
	var err error
	for i := len(h.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, h.closers[i]())
	}
	h.closers = nil
	return err
}

func (h *Hardware) onClose(fn func() error) {
	h.closers = append(h.closers, fn)
}

// Open brings up the panel selected by cfg.Display.Driver
func Open(logger *zap.Logger, cfg *config.AppConfig) (*Hardware, error) {
	logger = logger.With(zap.String("driver", cfg.Display.Driver))

	var (
		hw  *Hardware
		err error
	)
	switch cfg.Display.Driver {
	case config.DriverGFXHat:
		hw, err = openGFXHat(logger, cfg.Display)
	case config.DriverSSD1306:
		hw, err = openSSD1306(logger, cfg.Display)
	case config.DriverTerminal:
		hw, err = openTerminal(logger, cfg.Display)
	default:
		return nil, fmt.Errorf("unknown display driver %q", cfg.Display.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Panel ready",
		zap.Int("width", cfg.Display.Width),
		zap.Int("height", cfg.Display.Height))
	return hw, nil
}

func openTerminal(logger *zap.Logger, cfg config.DisplayConfig) (*Hardware, error) {
	term, err := NewTerminal(logger, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	hw := &Hardware{Display: term, Backlight: term, Touch: term, quit: term.Quit()}
	hw.onClose(term.Close)
	return hw, nil
}
