package render

import (
	"fmt"
	"image"
	"sync"

	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// NumFields is the number of text rows: title, artist, album
const NumFields = 3

// Placeholders are shown while the player is stopped
var Placeholders = [NumFields]string{"[Title]", "[Artist]", "[Album]"}

// Surface owns the pixel buffer and every widget drawn into it.
// All mutation and every frame commit happen under a single lock, so no
// partially drawn frame ever reaches the display.
type Surface struct {
	logger  *zap.Logger
	display domain.Display
	raster  Rasterizer

	mu       sync.Mutex
	buf      *image.Gray
	fields   [NumFields]*TextField
	progress *ProgressBar
	elapsed  *Clock
	duration *Clock
}

// NewSurface lays out the widgets for the configured display
func NewSurface(logger *zap.Logger, cfg *config.AppConfig, display domain.Display, raster Rasterizer) *Surface {
	width, height := cfg.Display.Width, cfg.Display.Height
	rowHeight := cfg.Font.Size
	progressY := NumFields*rowHeight + 1
	clockY := progressY + cfg.Progress.Thickness + 3

	s := &Surface{
		logger:   logger,
		display:  display,
		raster:   raster,
		buf:      image.NewGray(image.Rect(0, 0, width, height)),
		progress: newProgressBar(progressY, width, cfg.Progress.Thickness),
		elapsed:  newClock(0, clockY, cfg.Digits.Width, cfg.Digits.Height),
		duration: newClock(width-clockColumns*cfg.Digits.Width, clockY, cfg.Digits.Width, cfg.Digits.Height),
	}
	for i := range s.fields {
		s.fields[i] = newTextField(i*rowHeight, width, rowHeight, Placeholders[i])
	}
	s.progress.drawBorder(s.buf)

	logger.Debug("Surface laid out",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("progressY", progressY),
		zap.Int("clockY", clockY))

	return s
}

// Frame is the mutation handle passed to Update. It must not escape the callback.
type Frame struct {
	s *Surface
}

// Update runs fn with the lock held and commits the resulting frame
func (s *Surface) Update(fn func(f *Frame)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&Frame{s: s})
	return s.commitLocked()
}

// ScrollField advances field i by one pixel and commits
func (s *Surface) ScrollField(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields[i].scroll(s.buf)
	return s.commitLocked()
}

// AdvanceProgress fills one more progress column and commits
func (s *Surface) AdvanceProgress() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.progress.advance(s.buf) {
		return nil
	}
	return s.commitLocked()
}

// TickElapsed advances the elapsed clock by one second and commits
func (s *Surface) TickElapsed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed.tick(s.buf)
	return s.commitLocked()
}

// Scrollable reports whether field i is wider than the display
func (s *Surface) Scrollable(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[i].Scrollable()
}

// Scrolled reports whether field i is mid-scroll
func (s *Surface) Scrolled(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[i].Scrolled()
}

// Blank clears the whole buffer and commits an empty frame
func (s *Surface) Blank() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.buf.Pix)
	return s.commitLocked()
}

// View is a copy of the widget state, for inspection
type View struct {
	Labels   [NumFields]string
	Offsets  [NumFields]int
	Progress int
	Elapsed  [4]int
	Duration [4]int
}

// View returns a consistent copy of the widget state
func (s *Surface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Progress: s.progress.Progress(),
		Elapsed:  s.elapsed.Digits(),
		Duration: s.duration.Digits(),
	}
	for i, f := range s.fields {
		v.Labels[i] = f.Label()
		v.Offsets[i] = f.Offset()
	}
	return v
}

func (s *Surface) commitLocked() error {
	if err := s.display.Commit(s.buf); err != nil {
		return fmt.Errorf("frame commit failed: %w", err)
	}
	return nil
}

// SetTrack replaces the three labels and redraws them.
// Empty values are substituted with "-".
func (f *Frame) SetTrack(title, artist, album string) {
	for i, text := range [NumFields]string{title, artist, album} {
		if text == "" {
			text = "-"
		}
		f.s.fields[i].setText(text)
		f.s.fields[i].draw(f.s.raster, f.s.buf)
	}
}

// AnyScrollable reports whether at least one field needs scrolling
func (f *Frame) AnyScrollable() bool {
	for _, field := range f.s.fields {
		if field.Scrollable() {
			return true
		}
	}
	return false
}

// Track returns the progress bar track width
func (f *Frame) Track() int {
	return f.s.progress.Track()
}

// SetProgress sets and redraws the progress bar
func (f *Frame) SetProgress(n int) {
	f.s.progress.set(n)
	f.s.progress.draw(f.s.buf)
}

// SetElapsed sets and redraws the elapsed clock
func (f *Frame) SetElapsed(seconds float64) {
	f.s.elapsed.set(seconds)
	f.s.elapsed.draw(f.s.buf)
}

// SetDuration sets and redraws the duration clock
func (f *Frame) SetDuration(seconds float64) {
	f.s.duration.set(seconds)
	f.s.duration.draw(f.s.buf)
}

// Reset shows the placeholders and zeroes the bar and both clocks
func (f *Frame) Reset() {
	for i, field := range f.s.fields {
		field.setText(Placeholders[i])
		field.draw(f.s.raster, f.s.buf)
	}
	f.s.progress.drawBorder(f.s.buf)
	f.SetProgress(0)
	f.SetElapsed(0)
	f.SetDuration(0)
}
