// Package render produces the per-segment clips. Still images go through
// frame-by-frame composition (zoom, fade, vignette, text) and a single
// encode; video sources go through a transcoding filter graph with an
// ordered fallback chain for sources the full graph cannot handle.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/nfnt/resize"

	"github.com/bobarin/montage/internal/effects"
	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/services"
)

type Renderer struct {
	engine            *services.FFmpegService
	text              *TextRasterizer
	fontPath          string
	zoomSpeed         float64
	zoomCurve         effects.ZoomCurve
	allowBareFallback bool
}

type Options struct {
	FontPath          string
	ZoomSpeed         float64
	ZoomCurve         string
	AllowBareFallback bool
}

func New(engine *services.FFmpegService, text *TextRasterizer, opts Options) *Renderer {
	speed := opts.ZoomSpeed
	if speed <= 0 {
		speed = effects.DefaultZoomSpeed
	}
	curve := effects.ZoomCurve(opts.ZoomCurve)
	if curve == "" {
		curve = effects.DefaultZoomCurve
	}
	return &Renderer{
		engine:            engine,
		text:              text,
		fontPath:          opts.FontPath,
		zoomSpeed:         speed,
		zoomCurve:         curve,
		allowBareFallback: opts.AllowBareFallback,
	}
}

// Request carries everything one segment render needs. The decision is
// consumed exactly once; the renderer never re-derives durations.
type Request struct {
	Segment       models.Segment
	TotalSegments int
	Orientation   models.Orientation
	Decision      models.DurationDecision

	ShowText        bool
	KeepNativeAudio bool

	// HeaderOverlayPath points at the pre-rendered header PNG, or "" when
	// it could not be written. HeaderText drives the drawtext degrade in
	// that case. Both only matter on segment 1.
	HeaderOverlayPath string

	Paths models.JobPaths
}

// Result reports which strategy produced the clip.
type Result struct {
	ClipPath string
	Tier     models.RenderTier
}

// overlayText returns the text to draw on the clip, or "" when nothing
// should be drawn. The skip sentinel always suppresses the overlay.
func (req Request) overlayText() string {
	if !req.ShowText || req.Segment.IsSkip() {
		return ""
	}
	return strings.TrimSpace(req.Segment.Text)
}

// hasHeader reports whether this segment carries the job header.
func (req Request) hasHeader() bool {
	return req.Segment.Index == 1 && req.Segment.HeaderText != ""
}

// letterbox scales the source to fit the target box, preserving aspect
// ratio, and centers it on an opaque black canvas.
func letterbox(src image.Image, width, height int) *image.RGBA {
	b := src.Bounds()
	scaleW := float64(width) / float64(b.Dx())
	scaleH := float64(height) / float64(b.Dy())
	scale := math.Min(scaleW, scaleH)

	newWidth := int(float64(b.Dx()) * scale)
	newHeight := int(float64(b.Dy()) * scale)
	scaled := resize.Resize(uint(newWidth), uint(newHeight), src, resize.Lanczos3)

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	x := (width - newWidth) / 2
	y := (height - newHeight) / 2
	draw.Draw(canvas, image.Rect(x, y, x+newWidth, y+newHeight), scaled, image.Point{}, draw.Src)
	return canvas
}

// zoomFrame upscales the canvas by the zoom factor and center-crops back
// to the target size. The factor never drops below 1, so the crop window
// always fits inside the zoomed image.
func zoomFrame(canvas *image.RGBA, width, height int, factor float64) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	if factor <= 1.0 {
		copy(frame.Pix, canvas.Pix)
		return frame
	}

	zoomWidth := int(float64(width) * factor)
	zoomHeight := int(float64(height) * factor)
	zoomed := resize.Resize(uint(zoomWidth), uint(zoomHeight), canvas, resize.Lanczos3)

	left := (zoomWidth - width) / 2
	top := (zoomHeight - height) / 2
	draw.Draw(frame, frame.Bounds(), zoomed, image.Pt(left, top), draw.Src)
	return frame
}
