package device

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/genricoloni/mpdpanel/internal/domain"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// OLED wraps a periph SSD1306 over I2C. The panel has no backlight and no
// touch input.
type OLED struct {
	mu  sync.Mutex
	dev *ssd1306.Dev
	img *image1bit.VerticalLSB
}

// NewOLED initializes the panel at the default address
func NewOLED(bus i2c.Bus, width, height int) (*OLED, error) {
	opts := ssd1306.DefaultOpts
	opts.W, opts.H = width, height

	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("ssd1306 init failed: %w", err)
	}
	return &OLED{
		dev: dev,
		img: image1bit.NewVerticalLSB(dev.Bounds()),
	}, nil
}

// Commit converts frame to one bit per pixel and draws it
func (o *OLED) Commit(frame image.Image) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	b := o.img.Bounds()
	fb := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			on := x < fb.Dx() && y < fb.Dy() && lit(frame.At(fb.Min.X+x, fb.Min.Y+y))
			o.img.SetBit(x, y, image1bit.Bit(on))
		}
	}
	if err := o.dev.Draw(b, o.img, image.Point{}); err != nil {
		return fmt.Errorf("ssd1306 draw failed: %w", err)
	}
	return nil
}

// Halt turns the panel off
func (o *OLED) Halt() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dev.Halt()
}

// noBacklight is the backlight of a self-lit panel
type noBacklight struct{}

func (noBacklight) SetColor(color.RGBA) error { return nil }

// noTouch is the touch surface of a panel without buttons
type noTouch struct{}

func (noTouch) Events() <-chan domain.TouchEvent { return nil }

func (noTouch) SetLED(domain.Channel, bool) error { return nil }
