package render

import (
	"fmt"
	"image"
	"os"

	"github.com/genricoloni/mpdpanel/internal/config"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Rasterizer turns a label into a strip of glyph pixels one text row high.
// Non-zero pixels of the returned image are lit.
type Rasterizer interface {
	Render(text string) *image.Gray
}

// FontRasterizer rasterizes text with a golang.org/x/image font face
type FontRasterizer struct {
	face   font.Face
	height int
}

// NewFontRasterizer loads the configured face, falling back to the built-in
// 7x13 face when no font file is configured.
func NewFontRasterizer(logger *zap.Logger, cfg *config.AppConfig) (*FontRasterizer, error) {
	if cfg.Font.Path == "" {
		logger.Info("Using built-in font face", zap.Int("rowHeight", cfg.Font.Size))
		return &FontRasterizer{face: basicfont.Face7x13, height: cfg.Font.Size}, nil
	}

	data, err := os.ReadFile(cfg.Font.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", cfg.Font.Path, err)
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(cfg.Font.Size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	logger.Info("Font loaded",
		zap.String("path", cfg.Font.Path),
		zap.Int("size", cfg.Font.Size))

	return &FontRasterizer{face: face, height: cfg.Font.Size}, nil
}

// Render draws text on a black strip exactly as wide as the text
func (r *FontRasterizer) Render(text string) *image.Gray {
	width := font.MeasureString(r.face, text).Ceil()
	img := image.NewGray(image.Rect(0, 0, width, r.height))

	// Vertically center the face's line box in the row
	m := r.face.Metrics()
	top := (r.height - (m.Ascent + m.Descent).Ceil()) / 2
	if top < 0 {
		top = 0
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: r.face,
		Dot:  fixed.P(0, top+m.Ascent.Ceil()),
	}
	d.DrawString(text)
	return img
}
