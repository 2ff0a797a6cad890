package effects

import (
	"image"
	"math"
	"strings"
	"testing"
)

func TestZoomFactorEndpoints(t *testing.T) {
	curves := []ZoomCurve{ZoomLinear, ZoomEaseIn, ZoomEaseOut, ZoomEaseInOut}
	durations := []float64{1, 4, 7.69, 30}
	speeds := []float64{0.05, 0.15, 0.5}

	for _, curve := range curves {
		for _, d := range durations {
			for _, s := range speeds {
				if got := ZoomFactor(0, d, curve, s); math.Abs(got-1.0) > 1e-9 {
					t.Errorf("%s: zoom at t=0 = %f, want 1.0", curve, got)
				}
				if got := ZoomFactor(d, d, curve, s); math.Abs(got-(1+s)) > 1e-9 {
					t.Errorf("%s: zoom at t=D = %f, want %f", curve, got, 1+s)
				}
			}
		}
	}
}

func TestZoomFactorNeverShrinks(t *testing.T) {
	curves := []ZoomCurve{ZoomLinear, ZoomEaseIn, ZoomEaseOut, ZoomEaseInOut}
	for _, curve := range curves {
		for i := 0; i <= 100; i++ {
			tt := float64(i) * 0.1
			if got := ZoomFactor(tt, 10, curve, 0.15); got < 1.0 {
				t.Errorf("%s: zoom at t=%f = %f, below 1.0", curve, tt, got)
			}
		}
	}
	// Past the end the factor stays pinned at 1+speed.
	if got := ZoomFactor(99, 10, ZoomLinear, 0.15); math.Abs(got-1.15) > 1e-9 {
		t.Errorf("zoom past duration = %f, want 1.15", got)
	}
}

func TestZoomFactorUnknownCurveIsLinear(t *testing.T) {
	want := ZoomFactor(3, 10, ZoomLinear, 0.15)
	if got := ZoomFactor(3, 10, ZoomCurve("wobble"), 0.15); math.Abs(got-want) > 1e-9 {
		t.Errorf("unknown curve = %f, want linear %f", got, want)
	}
}

func TestZoomFactorEaseInOutMidpoint(t *testing.T) {
	// Both halves of the piecewise curve meet at 1 + s/2.
	got := ZoomFactor(5, 10, ZoomEaseInOut, 0.2)
	if math.Abs(got-1.1) > 1e-9 {
		t.Errorf("ease-in-out midpoint = %f, want 1.1", got)
	}
}

func TestFadeAlphaInterior(t *testing.T) {
	// Interior segments never fade, whatever the time.
	for idx := 2; idx <= 4; idx++ {
		for _, tt := range []float64{0, 0.1, 2.5, 4.9, 5.0} {
			if a := FadeAlpha(tt, 0.5, 5.0, idx, 5); a != 1.0 {
				t.Errorf("segment %d t=%f alpha=%f, want 1.0", idx, tt, a)
			}
		}
	}
}

func TestFadeAlphaFirstAndLast(t *testing.T) {
	// First segment fades in over the fade duration.
	if a := FadeAlpha(0, 0.5, 5.0, 1, 3); a != 0 {
		t.Errorf("fade-in start alpha=%f, want 0", a)
	}
	if a := FadeAlpha(0.25, 0.5, 5.0, 1, 3); math.Abs(a-0.5) > 1e-9 {
		t.Errorf("fade-in midpoint alpha=%f, want 0.5", a)
	}
	if a := FadeAlpha(1.0, 0.5, 5.0, 1, 3); a != 1.0 {
		t.Errorf("first segment interior alpha=%f, want 1.0", a)
	}

	// Last segment fades out across its own tail.
	if a := FadeAlpha(5.0, 0.5, 5.0, 3, 3); a != 0 {
		t.Errorf("fade-out end alpha=%f, want 0", a)
	}
	if a := FadeAlpha(4.75, 0.5, 5.0, 3, 3); math.Abs(a-0.5) > 1e-9 {
		t.Errorf("fade-out midpoint alpha=%f, want 0.5", a)
	}
	if a := FadeAlpha(4.0, 0.5, 5.0, 3, 3); a != 1.0 {
		t.Errorf("last segment interior alpha=%f, want 1.0", a)
	}

	// The last segment never fades in, the first never fades out.
	if a := FadeAlpha(0.1, 0.5, 5.0, 3, 3); a != 1.0 {
		t.Errorf("last segment head alpha=%f, want 1.0", a)
	}
	if a := FadeAlpha(4.9, 0.5, 5.0, 1, 3); a != 1.0 {
		t.Errorf("first segment tail alpha=%f, want 1.0", a)
	}
}

func TestFadeAlphaSingleSegment(t *testing.T) {
	// A one-segment video fades both ends.
	if a := FadeAlpha(0.1, 0.5, 6.0, 1, 1); math.Abs(a-0.2) > 1e-9 {
		t.Errorf("single segment fade-in alpha=%f, want 0.2", a)
	}
	if a := FadeAlpha(5.9, 0.5, 6.0, 1, 1); math.Abs(a-0.2) > 1e-9 {
		t.Errorf("single segment fade-out alpha=%f, want 0.2", a)
	}
}

func TestVignetteMaskCenterAndCorner(t *testing.T) {
	const w, h = 200, 100
	const strength = 0.5
	m := NewVignetteMask(w, h, strength)

	if v := m.At(w/2, h/2); math.Abs(v-1.0) > 1e-9 {
		t.Errorf("center attenuation = %f, want 1.0", v)
	}
	// (0,0) is the farthest corner from the integer center.
	if v := m.At(0, 0); math.Abs(v-(1-strength)) > 1e-9 {
		t.Errorf("corner attenuation = %f, want %f", v, 1-strength)
	}
}

func TestVignetteMaskClamped(t *testing.T) {
	m := NewVignetteMask(64, 64, 1.5)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if v := m.At(x, y); v < 0 || v > 1 {
				t.Fatalf("mask value out of range at (%d,%d): %f", x, y, v)
			}
		}
	}
}

func TestVignetteApplyDarkensEdges(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	NewVignetteMask(32, 32, 0.5).Apply(img)

	center := img.RGBAAt(16, 16)
	corner := img.RGBAAt(0, 0)
	if center.R != 200 {
		t.Errorf("center channel changed: %d", center.R)
	}
	if corner.R >= center.R {
		t.Errorf("corner (%d) not darker than center (%d)", corner.R, center.R)
	}
	if corner.A != 200 {
		t.Errorf("alpha channel must not be attenuated, got %d", corner.A)
	}
}

func TestFadeFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	FadeFrame(img, 0.5)
	if img.Pix[0] != 50 {
		t.Errorf("half fade pixel = %d, want 50", img.Pix[0])
	}

	for i := range img.Pix {
		img.Pix[i] = 100
	}
	FadeFrame(img, 1.0)
	if img.Pix[0] != 100 {
		t.Errorf("full alpha must not touch pixels, got %d", img.Pix[0])
	}
}

func TestWrapText(t *testing.T) {
	lines := WrapText("the quick brown fox jumps over the lazy dog", 10)
	for _, line := range lines {
		if len(line) > 10 {
			t.Errorf("line %q exceeds wrap width", line)
		}
	}
	if strings.Join(strings.Fields(strings.Join(lines, " ")), " ") != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("wrapping lost words: %v", lines)
	}

	if got := WrapText("", 10); got != nil {
		t.Errorf("empty input must yield no lines, got %v", got)
	}

	// A single oversized word is hard-split.
	lines = WrapText("abcdefghijklmnop", 5)
	if len(lines) != 4 || lines[0] != "abcde" {
		t.Errorf("unexpected hard split: %v", lines)
	}
}
