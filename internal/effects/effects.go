// Package effects holds the pure math behind the per-segment visuals: zoom
// factor curves, the radial vignette mask, the whole-video fade envelope and
// overlay text wrapping. Nothing here touches the filesystem or the
// transcoding engine.
package effects

import (
	"image"
	"math"
	"strings"
)

const (
	// FPS is the frame rate every rendered clip and the final video use.
	FPS = 25

	// DefaultFadeDuration is the fade in/out length in seconds at the very
	// start and end of the assembled video.
	DefaultFadeDuration = 0.5

	DefaultZoomSpeed        = 0.15
	DefaultVignetteStrength = 0.5
)

type ZoomCurve string

const (
	ZoomLinear    ZoomCurve = "linear"
	ZoomEaseIn    ZoomCurve = "ease-in"
	ZoomEaseOut   ZoomCurve = "ease-out"
	ZoomEaseInOut ZoomCurve = "ease-in-out"
)

// DefaultZoomCurve is what jobs get unless configured otherwise.
const DefaultZoomCurve = ZoomEaseOut

// ZoomFactor returns the scale factor at time t of a segment lasting
// duration seconds. The factor starts at 1.0 and lands on 1+speed at the
// segment's end; it never drops below 1. Unrecognized curve names evaluate
// as linear.
func ZoomFactor(t, duration float64, curve ZoomCurve, speed float64) float64 {
	if duration <= 0 {
		return 1
	}
	progress := t / duration
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	switch curve {
	case ZoomEaseIn:
		return 1 + speed*progress*progress
	case ZoomEaseOut:
		return 1 + speed*(1-(1-progress)*(1-progress))
	case ZoomEaseInOut:
		if progress < 0.5 {
			return 1 + speed*2*progress*progress
		}
		return 1 + speed*(1-2*(1-progress)*(1-progress))
	default:
		return 1 + speed*progress
	}
}

// FadeAlpha returns the brightness envelope at time t within a segment.
// Only the first segment of the whole video fades in and only the last
// fades out; every interior segment and all interior time is 1.0. The
// totalDuration argument is the current segment's own duration since the
// last segment's tail is the video's tail.
func FadeAlpha(t, fadeDuration, totalDuration float64, segmentIndex, totalSegments int) float64 {
	alpha := 1.0
	if segmentIndex == 1 && t <= fadeDuration {
		alpha = t / fadeDuration
	} else if segmentIndex == totalSegments && t >= totalDuration-fadeDuration {
		alpha = (totalDuration - t) / fadeDuration
	}
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}

// FadeFrame blends the frame toward black in place. alpha 1.0 is a no-op,
// alpha 0.0 is full black.
func FadeFrame(img *image.RGBA, alpha float64) {
	if alpha >= 1 {
		return
	}
	if alpha < 0 {
		alpha = 0
	}
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = uint8(float64(pix[i]) * alpha)
		pix[i+1] = uint8(float64(pix[i+1]) * alpha)
		pix[i+2] = uint8(float64(pix[i+2]) * alpha)
	}
}

// VignetteMask is a precomputed radial attenuation mask. Computing the
// distance field once per job and reusing it across every frame is what
// keeps the image renderer affordable.
type VignetteMask struct {
	width, height int
	values        []float64
}

// NewVignetteMask builds the mask for the given canvas. Each value is
// 1 - (d/dmax)^2 * strength clamped to [0,1], with d the Euclidean pixel
// distance from the canvas center.
func NewVignetteMask(width, height int, strength float64) *VignetteMask {
	m := &VignetteMask{
		width:  width,
		height: height,
		values: make([]float64, width*height),
	}
	centerX := float64(width / 2)
	centerY := float64(height / 2)
	maxDistance := math.Sqrt(centerX*centerX + centerY*centerY)
	if maxDistance == 0 {
		maxDistance = 1
	}
	for y := 0; y < height; y++ {
		dy := float64(y) - centerY
		for x := 0; x < width; x++ {
			dx := float64(x) - centerX
			normalized := math.Sqrt(dx*dx+dy*dy) / maxDistance
			v := 1 - normalized*normalized*strength
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			m.values[y*width+x] = v
		}
	}
	return m
}

// At returns the attenuation at a pixel.
func (m *VignetteMask) At(x, y int) float64 {
	return m.values[y*m.width+x]
}

// Apply multiplies every color channel by the mask in place. The image
// bounds must match the mask dimensions.
func (m *VignetteMask) Apply(img *image.RGBA) {
	b := img.Bounds()
	for y := 0; y < m.height && y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < m.width && x < b.Dx(); x++ {
			v := m.values[y*m.width+x]
			i := x * 4
			row[i] = uint8(float64(row[i]) * v)
			row[i+1] = uint8(float64(row[i+1]) * v)
			row[i+2] = uint8(float64(row[i+2]) * v)
		}
	}
}

// WrapText greedily wraps text at the given character width, breaking on
// whitespace. Words longer than the width are hard-split so no line ever
// exceeds it. Returns the wrapped lines; empty input yields none.
func WrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	current := ""
	for _, word := range words {
		for len(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}
		if word == "" {
			continue
		}
		if current == "" {
			current = word
		} else if len(current)+1+len(word) <= width {
			current += " " + word
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
