package device

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ST7567 command set
const (
	st7567DisplayOn    = 0xaf
	st7567DisplayOff   = 0xae
	st7567StartLine    = 0x40
	st7567RegRatio     = 0x20
	st7567PageStart    = 0xb0
	st7567ColumnLow    = 0x00
	st7567ColumnHigh   = 0x10
	st7567SegNormal    = 0xa0
	st7567DisplayNorm  = 0xa6
	st7567Bias17       = 0xa3
	st7567EnterRMW     = 0xe0
	st7567ExitRMW      = 0xee
	st7567SoftReset    = 0xe2
	st7567ComReverse   = 0xc8
	st7567PowerControl = 0x2f
	st7567SetContrast  = 0x81
)

// txer is the write side of an SPI or I2C connection
type txer interface {
	Tx(w, r []byte) error
}

// pinOut is an output GPIO
type pinOut interface {
	Out(l gpio.Level) error
}

// ST7567 drives the 128x64 monochrome LCD of the GFX HAT over SPI.
// Pixels are packed in pages of 8 rows, one byte per column, LSB on top.
type ST7567 struct {
	conn   txer
	dc     pinOut // low: command, high: data
	rst    pinOut
	width  int
	height int

	mu  sync.Mutex
	buf []byte
}

// NewST7567 resets and configures the controller
func NewST7567(conn txer, dc, rst pinOut, width, height, contrast int) (*ST7567, error) {
	d := &ST7567{
		conn:   conn,
		dc:     dc,
		rst:    rst,
		width:  width,
		height: height,
		buf:    make([]byte, width*height/8),
	}
	if err := d.reset(); err != nil {
		return nil, err
	}
	if err := d.command(
		st7567Bias17,
		st7567SegNormal,
		st7567ComReverse,
		st7567DisplayNorm,
		st7567StartLine|0,
		st7567PowerControl,
		st7567RegRatio|3,
		st7567DisplayOn,
		st7567SetContrast,
		byte(contrast),
	); err != nil {
		return nil, fmt.Errorf("st7567 init failed: %w", err)
	}
	return d, nil
}

func (d *ST7567) reset() error {
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("st7567 reset failed: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("st7567 reset failed: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	return d.command(st7567SoftReset)
}

func (d *ST7567) command(cmds ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	return d.conn.Tx(cmds, nil)
}

func (d *ST7567) data(b []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	return d.conn.Tx(b, nil)
}

// Commit packs frame into the page buffer and writes all pages
func (d *ST7567) Commit(frame image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	packPages(d.buf, frame, d.width, d.height)

	if err := d.command(st7567EnterRMW); err != nil {
		return fmt.Errorf("st7567 write failed: %w", err)
	}
	for page := 0; page < d.height/8; page++ {
		offset := page * d.width
		if err := d.command(st7567PageStart|byte(page), st7567ColumnLow, st7567ColumnHigh); err != nil {
			return fmt.Errorf("st7567 write failed: %w", err)
		}
		if err := d.data(d.buf[offset : offset+d.width]); err != nil {
			return fmt.Errorf("st7567 write failed: %w", err)
		}
	}
	if err := d.command(st7567ExitRMW); err != nil {
		return fmt.Errorf("st7567 write failed: %w", err)
	}
	return nil
}

// Halt turns the panel off
func (d *ST7567) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.command(st7567DisplayOff)
}

// packPages converts frame to the controller layout; non-zero pixels are lit
func packPages(buf []byte, frame image.Image, width, height int) {
	clear(buf)
	b := frame.Bounds()
	for y := 0; y < height && y < b.Dy(); y++ {
		for x := 0; x < width && x < b.Dx(); x++ {
			if !lit(frame.At(b.Min.X+x, b.Min.Y+y)) {
				continue
			}
			buf[(y/8)*width+x] |= 1 << (y % 8)
		}
	}
}

func lit(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y != 0
}
