package render

import (
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockRasterizer renders every rune as a fully lit block of charWidth columns
type blockRasterizer struct {
	charWidth int
	height    int
}

func (r blockRasterizer) Render(text string) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, len([]rune(text))*r.charWidth, r.height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

// recordingDisplay counts commits and fails the test on overlapping commits
type recordingDisplay struct {
	t        *testing.T
	inFlight atomic.Int32
	commits  atomic.Int32
	mu       sync.Mutex
	last     *image.Gray
}

func (d *recordingDisplay) Commit(frame image.Image) error {
	if d.inFlight.Add(1) != 1 {
		d.t.Error("overlapping frame commits")
	}
	defer d.inFlight.Add(-1)

	src := frame.(*image.Gray)
	cp := image.NewGray(src.Bounds())
	copy(cp.Pix, src.Pix)

	d.mu.Lock()
	d.last = cp
	d.mu.Unlock()
	d.commits.Add(1)
	return nil
}

func (d *recordingDisplay) lit(x, y int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last.GrayAt(x, y).Y != 0
}

func newTestSurface(t *testing.T) (*Surface, *recordingDisplay) {
	t.Helper()
	display := &recordingDisplay{t: t}
	cfg := config.Default()
	return NewSurface(zap.NewNop(), cfg, display, blockRasterizer{charWidth: 8, height: cfg.Font.Size}), display
}

func TestClock_Set(t *testing.T) {
	tests := []struct {
		seconds float64
		want    [4]int
	}{
		{0, [4]int{0, 0, 0, 0}},
		{59, [4]int{0, 0, 5, 9}},
		{125.7, [4]int{0, 2, 0, 5}},
		{3599, [4]int{5, 9, 5, 9}},
		{-3, [4]int{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		c := newClock(0, 0, 6, 7)
		c.set(tt.seconds)
		assert.Equal(t, tt.want, c.Digits(), "set(%v)", tt.seconds)
	}
}

func TestClock_TickCarries(t *testing.T) {
	buf := image.NewGray(image.Rect(0, 0, 128, 64))
	tests := []struct {
		name  string
		start float64
		want  [4]int
	}{
		{"seconds ones", 8, [4]int{0, 0, 0, 9}},
		{"59s to 1:00", 59, [4]int{0, 1, 0, 0}},
		{"9:59 to 10:00", 599, [4]int{1, 0, 0, 0}},
		{"minutes tens unbounded", 5999, [4]int{10, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClock(0, 57, 6, 7)
			c.set(tt.start)
			c.tick(buf)
			assert.Equal(t, tt.want, c.Digits())
			assert.Equal(t, int(tt.start)+1, c.Seconds())
		})
	}
}

func TestTextField_Layout(t *testing.T) {
	raster := blockRasterizer{charWidth: 8, height: 16}
	buf := image.NewGray(image.Rect(0, 0, 128, 64))

	tests := []struct {
		name       string
		label      string
		scrollable bool
		firstLitX  int
	}{
		{"centered", "abcd", false, 48}, // 32px wide, (128-32)/2
		{"exact width", strings.Repeat("x", 16), false, 0},
		{"scrollable", strings.Repeat("x", 20), true, 0},
		{"empty", "", false, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTextField(0, 128, 16, tt.label)
			f.draw(raster, buf)

			assert.Equal(t, tt.scrollable, f.Scrollable())
			assert.False(t, f.Scrolled())

			first := -1
			for x := 0; x < 128; x++ {
				if buf.GrayAt(x, 0).Y != 0 {
					first = x
					break
				}
			}
			assert.Equal(t, tt.firstLitX, first)
		})
	}
}

func TestTextField_ScrollPeriod(t *testing.T) {
	raster := blockRasterizer{charWidth: 8, height: 16}
	buf := image.NewGray(image.Rect(0, 0, 128, 64))

	f := newTextField(16, 128, 16, strings.Repeat("w", 20))
	f.draw(raster, buf)
	require.Equal(t, 160, f.ScrollWidth())

	for step := 1; step <= f.ScrollWidth(); step++ {
		f.scroll(buf)
		require.Equal(t, step, f.Offset())
		require.True(t, f.Scrolled())
	}

	// One more step wraps around to the start
	f.scroll(buf)
	assert.Equal(t, 0, f.Offset())
	assert.False(t, f.Scrolled())

	// Fully scrolled out, the window shows only trailing blank
	for range f.ScrollWidth() {
		f.scroll(buf)
	}
	for x := 0; x < 128; x++ {
		assert.Zero(t, buf.GrayAt(x, 16).Y, "column %d should be blank", x)
	}
}

func TestProgressBar(t *testing.T) {
	buf := image.NewGray(image.Rect(0, 0, 128, 64))
	p := newProgressBar(49, 128, 5)
	p.drawBorder(buf)

	assert.Equal(t, 126, p.Track())

	p.set(200)
	assert.Equal(t, 126, p.Progress(), "clamped to the track")
	p.set(-1)
	assert.Equal(t, 0, p.Progress())

	p.set(10)
	p.draw(buf)
	assert.NotZero(t, buf.GrayAt(10, 50).Y, "column 10 is the 10th filled column")
	assert.Zero(t, buf.GrayAt(11, 50).Y)
	assert.NotZero(t, buf.GrayAt(0, 50).Y, "left border")
	assert.NotZero(t, buf.GrayAt(127, 50).Y, "right border")

	require.True(t, p.advance(buf))
	assert.Equal(t, 11, p.Progress())
	assert.NotZero(t, buf.GrayAt(11, 54).Y)

	p.set(126)
	assert.False(t, p.advance(buf), "full bar does not advance")
}

func TestSurface_UpdateCommitsOnce(t *testing.T) {
	s, display := newTestSurface(t)

	err := s.Update(func(f *Frame) {
		f.SetTrack("Song", "", strings.Repeat("a", 30))
		f.SetDuration(120)
		f.SetProgress(31)
		f.SetElapsed(30)
		assert.True(t, f.AnyScrollable())
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, display.commits.Load())

	v := s.View()
	assert.Equal(t, [NumFields]string{"Song", "-", strings.Repeat("a", 30)}, v.Labels)
	assert.Equal(t, 31, v.Progress)
	assert.Equal(t, [4]int{0, 0, 3, 0}, v.Elapsed)
	assert.Equal(t, [4]int{0, 2, 0, 0}, v.Duration)
	assert.False(t, s.Scrollable(0))
	assert.True(t, s.Scrollable(2))
}

func TestSurface_ResetAfterBlank(t *testing.T) {
	s, display := newTestSurface(t)

	require.NoError(t, s.Blank())
	assert.False(t, display.lit(0, 49), "border cleared by blank")

	require.NoError(t, s.Update(func(f *Frame) { f.Reset() }))
	assert.True(t, display.lit(0, 49), "border redrawn by reset")

	v := s.View()
	assert.Equal(t, Placeholders, v.Labels)
	assert.Zero(t, v.Progress)
	assert.Equal(t, [4]int{}, v.Elapsed)
	assert.Equal(t, [4]int{}, v.Duration)
}

func TestSurface_ConcurrentAnimationsNeverOverlap(t *testing.T) {
	s, display := newTestSurface(t)
	require.NoError(t, s.Update(func(f *Frame) {
		f.SetTrack(strings.Repeat("t", 40), "b", "c")
		f.SetDuration(600)
	}))

	var wg sync.WaitGroup
	for _, fn := range []func() error{
		func() error { return s.ScrollField(0) },
		s.AdvanceProgress,
		s.TickElapsed,
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				assert.NoError(t, fn())
			}
		}()
	}
	wg.Wait()

	v := s.View()
	assert.Equal(t, 50, v.Offsets[0])
	assert.Equal(t, 50, v.Progress)
	assert.Equal(t, [4]int{0, 0, 5, 0}, v.Elapsed)
	assert.EqualValues(t, 151, display.commits.Load())
}

func TestFontRasterizer_BuiltinFace(t *testing.T) {
	r, err := NewFontRasterizer(zap.NewNop(), config.Default())
	require.NoError(t, err)

	img := r.Render("Hi")
	assert.Equal(t, 14, img.Bounds().Dx(), "7 pixels per glyph")
	assert.Equal(t, 16, img.Bounds().Dy())

	lit := 0
	for _, p := range img.Pix {
		if p != 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
	assert.Equal(t, 0, r.Render("").Bounds().Dx())
}
