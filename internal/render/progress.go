package render

import "image"

// ProgressBar is a bordered bar whose track is the display width minus the
// two border columns.
type ProgressBar struct {
	y         int
	width     int
	thickness int
	progress  int
}

func newProgressBar(y, width, thickness int) *ProgressBar {
	return &ProgressBar{y: y, width: width, thickness: thickness}
}

// Track returns the number of fillable columns
func (p *ProgressBar) Track() int {
	return p.width - 2
}

// Progress returns the number of filled columns
func (p *ProgressBar) Progress() int {
	return p.progress
}

func (p *ProgressBar) drawBorder(buf *image.Gray) {
	for x := 0; x < p.width; x++ {
		setPixel(buf, x, p.y, true)
		setPixel(buf, x, p.y+p.thickness+1, true)
	}
	for y := 1; y <= p.thickness; y++ {
		setPixel(buf, 0, p.y+y, true)
		setPixel(buf, p.width-1, p.y+y, true)
	}
}

func (p *ProgressBar) set(n int) {
	p.progress = max(0, min(n, p.Track()))
}

// draw fills the first progress columns of the track and clears the rest
func (p *ProgressBar) draw(buf *image.Gray) {
	for y := 1; y <= p.thickness; y++ {
		for x := 0; x < p.Track(); x++ {
			setPixel(buf, x+1, p.y+y, x < p.progress)
		}
	}
}

// advance fills one more column. It reports false when the track is full.
func (p *ProgressBar) advance(buf *image.Gray) bool {
	if p.progress >= p.Track() {
		return false
	}
	p.progress++
	for y := 1; y <= p.thickness; y++ {
		setPixel(buf, p.progress, p.y+y, true)
	}
	return true
}
