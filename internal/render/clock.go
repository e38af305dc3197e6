package render

import "image"

// Clock is an mm:ss readout drawn with the built-in digit glyphs.
// Digits carry with radix 10 (seconds ones), 6 (seconds tens),
// 10 (minutes ones); the minutes tens digit is unbounded.
type Clock struct {
	x, y      int
	cellWidth int
	cellRows  int

	min10, min1, sec10, sec1 int
}

// clockColumns is the number of cells of "mm:ss"
const clockColumns = 5

func newClock(x, y, cellWidth, cellRows int) *Clock {
	return &Clock{x: x, y: y, cellWidth: cellWidth, cellRows: cellRows}
}

// Digits returns {minutes tens, minutes ones, seconds tens, seconds ones}
func (c *Clock) Digits() [4]int {
	return [4]int{c.min10, c.min1, c.sec10, c.sec1}
}

// Seconds returns the represented time in whole seconds
func (c *Clock) Seconds() int {
	return (c.min10*10+c.min1)*60 + c.sec10*10 + c.sec1
}

// set decomposes t into digits, truncating fractional seconds
func (c *Clock) set(t float64) {
	secs := max(int(t), 0)
	m, s := secs/60, secs%60
	c.min10, c.min1 = m/10, m%10
	c.sec10, c.sec1 = s/10, s%10
}

// tick performs a ripple increment and redraws only the digits that changed
func (c *Clock) tick(buf *image.Gray) {
	c.sec1++
	if c.sec1 < 10 {
		c.drawDigit(buf, 4, c.sec1)
		return
	}
	c.sec1 = 0
	c.drawDigit(buf, 4, c.sec1)

	c.sec10++
	if c.sec10 < 6 {
		c.drawDigit(buf, 3, c.sec10)
		return
	}
	c.sec10 = 0
	c.drawDigit(buf, 3, c.sec10)

	c.min1++
	if c.min1 < 10 {
		c.drawDigit(buf, 1, c.min1)
		return
	}
	c.min1 = 0
	c.drawDigit(buf, 1, c.min1)

	c.min10++
	c.drawDigit(buf, 0, c.min10)
}

func (c *Clock) draw(buf *image.Gray) {
	c.drawDigit(buf, 0, c.min10)
	c.drawDigit(buf, 1, c.min1)
	c.drawColon(buf, 2)
	c.drawDigit(buf, 3, c.sec10)
	c.drawDigit(buf, 4, c.sec1)
}

// drawDigit paints one glyph cell; the cell's last column is spacing
func (c *Clock) drawDigit(buf *image.Gray, col, n int) {
	w := min(c.cellWidth-1, glyphWidth)
	h := min(c.cellRows, glyphHeight)
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			setPixel(buf, c.x+c.cellWidth*col+dx, c.y+dy, glyphLit(n, dx, dy))
		}
	}
}

func (c *Clock) drawColon(buf *image.Gray, col int) {
	x := c.x + c.cellWidth*col + 2
	setPixel(buf, x, c.y+1, true)
	setPixel(buf, x, c.y+5, true)
}
