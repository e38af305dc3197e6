package device

import (
	"fmt"
	"image/color"
	"sync"
)

// SN3218 registers
const (
	sn3218Address   = 0x54
	sn3218Shutdown  = 0x00
	sn3218PWM       = 0x01
	sn3218LEDEnable = 0x13
	sn3218Update    = 0x16
	sn3218Reset     = 0x17

	sn3218Channels = 18
)

// backlightZones is the number of RGB zones behind the GFX HAT panel
const backlightZones = 6

// SN3218 drives the 18-channel LED driver behind the GFX HAT backlight.
// Each zone uses three consecutive channels in blue, green, red order.
type SN3218 struct {
	dev txer

	mu  sync.Mutex
	pwm [sn3218Channels]byte
}

// NewSN3218 resets the chip and enables every channel
func NewSN3218(dev txer) (*SN3218, error) {
	s := &SN3218{dev: dev}
	for _, w := range [][]byte{
		{sn3218Reset, 0xff},
		{sn3218Shutdown, 0x01},
		{sn3218LEDEnable, 0x3f, 0x3f, 0x3f},
		{sn3218Update, 0xff},
	} {
		if err := dev.Tx(w, nil); err != nil {
			return nil, fmt.Errorf("sn3218 init failed: %w", err)
		}
	}
	return s, nil
}

// SetColor sets every zone to c and latches it
func (s *SN3218) SetColor(c color.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for zone := range backlightZones {
		s.pwm[zone*3] = c.B
		s.pwm[zone*3+1] = c.G
		s.pwm[zone*3+2] = c.R
	}

	w := append([]byte{sn3218PWM}, s.pwm[:]...)
	if err := s.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("sn3218 write failed: %w", err)
	}
	if err := s.dev.Tx([]byte{sn3218Update, 0xff}, nil); err != nil {
		return fmt.Errorf("sn3218 update failed: %w", err)
	}
	return nil
}

// Halt puts the chip in shutdown mode
func (s *SN3218) Halt() error {
	return s.dev.Tx([]byte{sn3218Shutdown, 0x00}, nil)
}
