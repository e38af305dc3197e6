package device

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// screenDriver is the subset of tcell.Screen the simulator needs
type screenDriver interface {
	Init() error
	Fini()
	SetStyle(style tcell.Style)
	HideCursor()
	Clear()
	Show()
	PollEvent() tcell.Event
	SetContent(x, y int, mainc rune, combc []rune, style tcell.Style)
}

// upperHalf renders two vertically stacked pixels in one cell
const upperHalf = '▀'

var (
	unlitColor = tcell.NewRGBColor(16, 16, 16)
	ledOnColor = tcell.NewRGBColor(255, 184, 108)
	ledLabels  = [domain.NumChannels]string{"1 prev", "2 next", "3 stop", "4 -5s", "5 pause", "6 +5s"}
)

// Terminal simulates the whole panel in a terminal: pixels are half-block
// cells tinted with the backlight color, keys 1 to 6 are the touch channels
// and q or Ctrl-C asks the daemon to quit.
type Terminal struct {
	logger *zap.Logger
	screen screenDriver
	width  int
	height int
	events chan domain.TouchEvent
	quit   chan struct{}

	mu        sync.Mutex
	frame     *image.Gray
	backlight color.RGBA
	leds      [domain.NumChannels]bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewTerminal opens the controlling terminal
func NewTerminal(logger *zap.Logger, width, height int) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal screen failed: %w", err)
	}
	return newTerminal(logger, screen, width, height)
}

func newTerminal(logger *zap.Logger, screen screenDriver, width, height int) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal init failed: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	screen.HideCursor()

	t := &Terminal{
		logger:    logger,
		screen:    screen,
		width:     width,
		height:    height,
		events:    make(chan domain.TouchEvent, 16),
		quit:      make(chan struct{}),
		frame:     image.NewGray(image.Rect(0, 0, width, height)),
		backlight: domain.Off,
		done:      make(chan struct{}),
	}
	go t.pollKeys()
	return t, nil
}

// Commit redraws the pixel area
func (t *Terminal) Commit(frame image.Image) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := frame.Bounds()
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			var v uint8
			if x < b.Dx() && y < b.Dy() && lit(frame.At(b.Min.X+x, b.Min.Y+y)) {
				v = 0xff
			}
			t.frame.SetGray(x, y, color.Gray{Y: v})
		}
	}
	t.drawLocked()
	return nil
}

// SetColor tints lit pixels with the backlight color
func (t *Terminal) SetColor(c color.RGBA) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backlight = c
	t.drawLocked()
	return nil
}

// Events returns a read-only channel delivering touch events
func (t *Terminal) Events() <-chan domain.TouchEvent {
	return t.events
}

// SetLED shows the indicator state in the label row
func (t *Terminal) SetLED(ch domain.Channel, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.leds[ch] = on
	t.drawLocked()
	return nil
}

// Quit is closed when the user asks to leave
func (t *Terminal) Quit() <-chan struct{} {
	return t.quit
}

// Close restores the terminal
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		t.screen.Fini()
		<-t.done
	})
	return nil
}

func (t *Terminal) drawLocked() {
	litColor := tcell.NewRGBColor(int32(t.backlight.R), int32(t.backlight.G), int32(t.backlight.B))
	if t.backlight.R == 0 && t.backlight.G == 0 && t.backlight.B == 0 {
		litColor = tcell.ColorWhite
	}
	pixel := func(x, y int) tcell.Color {
		if y < t.height && t.frame.GrayAt(x, y).Y != 0 {
			return litColor
		}
		return unlitColor
	}

	for row := 0; row*2 < t.height; row++ {
		for x := 0; x < t.width; x++ {
			style := tcell.StyleDefault.Foreground(pixel(x, row*2)).Background(pixel(x, row*2+1))
			t.screen.SetContent(x, row, upperHalf, nil, style)
		}
	}

	labelRow := (t.height + 1) / 2
	x := 0
	for ch, label := range ledLabels {
		style := tcell.StyleDefault
		if t.leds[ch] {
			style = style.Foreground(ledOnColor).Bold(true)
		}
		for _, r := range "[" + label + "] " {
			t.screen.SetContent(x, labelRow, r, nil, style)
			x++
		}
	}
	t.screen.Show()
}

// pollKeys maps key presses to touch events until the screen is finalized.
// Terminals report no key-up, so every press is followed by a release.
func (t *Terminal) pollKeys() {
	defer close(t.done)
	defer close(t.events)

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		key, ok := ev.(*tcell.EventKey)
		if !ok {
			continue
		}

		if key.Key() == tcell.KeyCtrlC || (key.Key() == tcell.KeyRune && key.Rune() == 'q') {
			t.signalQuit()
			continue
		}
		if key.Key() != tcell.KeyRune {
			continue
		}
		r := key.Rune()
		if r < '1' || r >= '1'+domain.NumChannels {
			continue
		}
		ch := domain.Channel(r - '1')
		t.send(domain.TouchEvent{Channel: ch, Action: domain.TouchPress})
		t.send(domain.TouchEvent{Channel: ch, Action: domain.TouchRelease})
	}
}

func (t *Terminal) signalQuit() {
	select {
	case <-t.quit:
	default:
		t.logger.Info("Quit requested from terminal")
		close(t.quit)
	}
}

func (t *Terminal) send(ev domain.TouchEvent) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("Touch events channel full, dropping key", zap.Int("channel", int(ev.Channel)))
	}
}
