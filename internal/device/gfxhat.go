package device

import (
	"fmt"

	"github.com/genricoloni/mpdpanel/internal/config"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// GFX HAT wiring
const (
	gfxhatDCPin    = "GPIO6"
	gfxhatResetPin = "GPIO5"
	gfxhatSPIFreq  = 1 * physic.MegaHertz
)

// openGFXHat brings up the ST7567 LCD, the SN3218 backlight and the CAP1166
// touch controller of a Pimoroni GFX HAT
func openGFXHat(logger *zap.Logger, cfg config.DisplayConfig) (_ *Hardware, err error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init failed: %w", err)
	}

	// Release whatever was opened if a later step fails
	hw := &Hardware{}
	defer func() {
		if err == nil {
			return
		}
		if cerr := hw.Close(); cerr != nil {
			err = fmt.Errorf("%w (cleanup: %v)", err, cerr)
		}
	}()

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.SPIPort, err)
	}
	hw.onClose(port.Close)

	conn, err := port.Connect(gfxhatSPIFreq, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect failed: %w", err)
	}

	dc, err := outputPin(gfxhatDCPin)
	if err != nil {
		return nil, err
	}
	rst, err := outputPin(gfxhatResetPin)
	if err != nil {
		return nil, err
	}

	lcd, err := NewST7567(conn, dc, rst, cfg.Width, cfg.Height, cfg.Contrast)
	if err != nil {
		return nil, err
	}
	hw.Display = lcd
	hw.onClose(lcd.Halt)

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus: %w", err)
	}
	hw.onClose(bus.Close)

	backlight, err := NewSN3218(&i2c.Dev{Bus: bus, Addr: sn3218Address})
	if err != nil {
		return nil, err
	}
	hw.Backlight = backlight
	hw.onClose(backlight.Halt)

	touch, err := NewCAP1166(logger, &i2c.Dev{Bus: bus, Addr: cap1166Address})
	if err != nil {
		return nil, err
	}
	touch.Start()
	hw.Touch = touch
	hw.onClose(func() error {
		touch.Stop()
		return nil
	})

	logger.Debug("GFX HAT attached",
		zap.String("spi", cfg.SPIPort),
		zap.String("i2c", bus.String()))
	return hw, nil
}

func outputPin(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %s not found", name)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", name, err)
	}
	return pin, nil
}

func openSSD1306(logger *zap.Logger, cfg config.DisplayConfig) (*Hardware, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init failed: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus: %w", err)
	}

	oled, err := NewOLED(bus, cfg.Width, cfg.Height)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	hw := &Hardware{Display: oled, Backlight: noBacklight{}, Touch: noTouch{}}
	hw.onClose(bus.Close)
	hw.onClose(oled.Halt)

	logger.Debug("SSD1306 attached", zap.String("i2c", bus.String()))
	return hw, nil
}
