package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/bobarin/montage/internal/effects"
	"github.com/bobarin/montage/internal/models"
)

// Header overlay styling. The header sits in the bottom-right corner of
// the first segment only.
const (
	headerFontSize      = 36
	headerPadding       = 50
	headerOutlineRadius = 2
)

// overlayOutlineRadius is the stamp radius for the main overlay text
// border. Stamping the glyphs at every integer offset inside the disk
// gives a solid border on any background.
const overlayOutlineRadius = 3

// TextRasterizer draws outlined text using a single parsed font. Faces
// are created per call; they are not safe for concurrent use and each
// job renders on its own goroutine.
type TextRasterizer struct {
	font *opentype.Font
}

func LoadTextRasterizer(fontPath string) (*TextRasterizer, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}

	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	return &TextRasterizer{font: f}, nil
}

func (r *TextRasterizer) face(size int) (font.Face, error) {
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// DrawOverlayText stamps the wrapped overlay text onto a frame: each line
// horizontally centered, the block starting at height-TextY, white fill
// over a black outline.
func (r *TextRasterizer) DrawOverlayText(frame *image.RGBA, text string, o models.Orientation) error {
	lines := effects.WrapText(text, o.WrapWidth)
	if len(lines) == 0 {
		return nil
	}

	face, err := r.face(o.FontSize)
	if err != nil {
		return err
	}
	defer face.Close()

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	top := o.Height - o.TextY
	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		x := (o.Width - width) / 2
		y := top + ascent + i*lineHeight
		drawOutlinedLine(frame, face, line, x, y, overlayOutlineRadius, color.Black, color.White)
	}
	return nil
}

// RenderHeader builds the transparent header overlay: header text in the
// bottom-right corner, black fill with a white outline.
func (r *TextRasterizer) RenderHeader(headerText string, width, height int) (*image.RGBA, error) {
	face, err := r.face(headerFontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	overlay := image.NewRGBA(image.Rect(0, 0, width, height))

	textWidth := font.MeasureString(face, headerText).Ceil()
	metrics := face.Metrics()
	textHeight := metrics.Ascent.Ceil() + metrics.Descent.Ceil()

	x := width - textWidth - headerPadding
	y := height - headerPadding - textHeight + metrics.Ascent.Ceil()

	drawOutlinedLine(overlay, face, headerText, x, y, headerOutlineRadius, color.White, color.Black)
	return overlay, nil
}

// WriteHeaderPNG renders the header overlay and saves it for both
// renderers to composite onto segment 1.
func (r *TextRasterizer) WriteHeaderPNG(headerText string, width, height int, path string) error {
	overlay, err := r.RenderHeader(headerText, width, height)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create header overlay file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, overlay); err != nil {
		return fmt.Errorf("failed to encode header overlay: %w", err)
	}
	return nil
}

// drawOutlinedLine stamps the line at every integer offset within the
// outline radius disk, then draws the fill glyphs on top.
func drawOutlinedLine(dst *image.RGBA, face font.Face, line string, x, y, radius int, outline, fill color.Color) {
	outlineDrawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(outline),
		Face: face,
	}
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			outlineDrawer.Dot = fixed.P(x+dx, y+dy)
			outlineDrawer.DrawString(line)
		}
	}

	fillDrawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fill),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	fillDrawer.DrawString(line)
}
