package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// litThreshold is the channel value from which a composed pixel is lit
const litThreshold = 0x80

// TextField is one horizontally scrollable row of text.
// It is mutated only while the surface lock is held.
type TextField struct {
	y      int
	width  int
	height int

	label      string
	strip      *image.NRGBA
	offset     int
	scrollable int // rendered label width when wider than the display, 0 otherwise
}

func newTextField(y, width, height int, label string) *TextField {
	return &TextField{y: y, width: width, height: height, label: label}
}

// Label returns the current text
func (f *TextField) Label() string {
	return f.label
}

// Offset returns the current scroll offset; zero means "not mid-scroll"
func (f *TextField) Offset() int {
	return f.offset
}

// ScrollWidth returns the rendered width of a scrollable label, 0 otherwise
func (f *TextField) ScrollWidth() int {
	return f.scrollable
}

// Scrollable reports whether the label is wider than the display
func (f *TextField) Scrollable() bool {
	return f.scrollable > 0
}

// Scrolled reports whether the field is mid-scroll
func (f *TextField) Scrolled() bool {
	return f.offset != 0
}

func (f *TextField) setText(text string) {
	f.label = text
}

// draw rasterizes the label into the strip and blits it at offset zero.
// A label wider than the display is padded by one display width so a
// scroll pass runs through trailing blank before wrapping; a narrower one is
// centered.
func (f *TextField) draw(r Rasterizer, buf *image.Gray) {
	f.offset = 0
	glyphs := r.Render(f.label)
	w := glyphs.Bounds().Dx()

	indent := 0
	stripWidth := f.width
	switch {
	case w > f.width:
		f.scrollable = w
		stripWidth = w + f.width
	case w < f.width:
		f.scrollable = 0
		indent = (f.width - w) / 2
	default:
		f.scrollable = 0
	}

	background := imaging.New(stripWidth, f.height, color.Black)
	f.strip = imaging.Paste(background, glyphs, image.Pt(indent, 0))
	f.blit(buf)
}

// scroll advances the window by one pixel, wrapping after ScrollWidth()+1 steps
func (f *TextField) scroll(buf *image.Gray) {
	f.offset = (f.offset + 1) % (f.scrollable + 1)
	f.blit(buf)
}

func (f *TextField) blit(buf *image.Gray) {
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			lit := f.strip != nil && f.strip.NRGBAAt(x+f.offset, y).R >= litThreshold
			setPixel(buf, x, f.y+y, lit)
		}
	}
}

func setPixel(buf *image.Gray, x, y int, on bool) {
	if on {
		buf.SetGray(x, y, color.Gray{Y: 0xff})
	} else {
		buf.SetGray(x, y, color.Gray{})
	}
}
