package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"

	// Extension-gated media discovery accepts more than the stdlib decodes.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/bobarin/montage/internal/effects"
	"github.com/bobarin/montage/internal/models"
)

// frameJPEGQuality matches the intermediate frame quality the encoder
// sees; the real quality gate is the x264 CRF below.
const frameJPEGQuality = 95

// imageCRF is the encode quality for frame-sequence clips. Stills show
// compression artifacts more readily than moving sources, so they get a
// tighter setting than the video path.
const imageCRF = 18

// RenderImageSegment composes a clip from a still image frame by frame:
// letterbox, zoom, fade envelope, overlay text, header composite on
// segment 1, vignette, then one encode pass and an audio mux. Any failure
// means no clip for this segment; the caller decides what that does to
// the job.
func (r *Renderer) RenderImageSegment(ctx context.Context, req Request) (Result, error) {
	seg := req.Segment
	o := req.Orientation

	log.Printf("[Render] Segment %d: composing frames from image %s", seg.Index, filepath.Base(seg.MediaPath))

	canvas, err := loadCanvas(seg.MediaPath, o.Width, o.Height)
	if err != nil {
		return Result{}, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	headerOverlay, err := r.headerOverlay(req)
	if err != nil {
		log.Printf("[Render] Segment %d: header overlay unavailable: %v", seg.Index, err)
		headerOverlay = nil
	}

	framesDir := filepath.Join(req.Paths.FramesDir(), fmt.Sprintf("segment_%d", seg.Index))
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("segment %d: failed to create frames dir: %w", seg.Index, err)
	}
	defer os.RemoveAll(framesDir)

	duration := req.Decision.FinalDuration
	totalFrames := int(duration * effects.FPS)
	if totalFrames < 1 {
		totalFrames = 1
	}

	vignette := effects.NewVignetteMask(o.Width, o.Height, effects.DefaultVignetteStrength)
	overlayText := req.overlayText()

	for frameNum := 0; frameNum < totalFrames; frameNum++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		t := float64(frameNum) / effects.FPS

		factor := effects.ZoomFactor(t, duration, r.zoomCurve, r.zoomSpeed)
		frame := zoomFrame(canvas, o.Width, o.Height, factor)

		alpha := effects.FadeAlpha(t, effects.DefaultFadeDuration, duration, seg.Index, req.TotalSegments)
		effects.FadeFrame(frame, alpha)

		if overlayText != "" {
			if err := r.text.DrawOverlayText(frame, overlayText, o); err != nil {
				return Result{}, fmt.Errorf("segment %d: text overlay: %w", seg.Index, err)
			}
		}

		if headerOverlay != nil {
			draw.Draw(frame, frame.Bounds(), headerOverlay, image.Point{}, draw.Over)
		}

		vignette.Apply(frame)

		framePath := filepath.Join(framesDir, fmt.Sprintf("frame_%06d.jpg", frameNum))
		if err := saveJPEG(framePath, frame); err != nil {
			return Result{}, fmt.Errorf("segment %d: %w", seg.Index, err)
		}
	}

	tempClip := filepath.Join(req.Paths.VideoDir(), fmt.Sprintf("%d_temp.mp4", seg.Index))
	framesPattern := filepath.Join(framesDir, "frame_%06d.jpg")
	if err := r.engine.EncodeFrameSequence(ctx, framesPattern, effects.FPS, imageCRF, tempClip); err != nil {
		return Result{}, fmt.Errorf("segment %d: %w", seg.Index, err)
	}
	defer os.Remove(tempClip)

	clipPath := req.Paths.ClipFile(seg.Index)
	if err := r.engine.MuxAudio(ctx, tempClip, seg.PaddedAudioPath, clipPath); err != nil {
		return Result{}, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	log.Printf("[Render] Segment %d: image clip done (%d frames, %.2fs)", seg.Index, totalFrames, duration)
	return Result{ClipPath: clipPath, Tier: models.TierFrames}, nil
}

// headerOverlay returns the RGBA to composite over segment 1, or nil when
// this segment has none. A stored PNG is preferred; when it is missing
// the overlay is rebuilt in memory from the header text.
func (r *Renderer) headerOverlay(req Request) (image.Image, error) {
	if !req.hasHeader() {
		return nil, nil
	}

	if req.HeaderOverlayPath != "" {
		f, err := os.Open(req.HeaderOverlayPath)
		if err == nil {
			defer f.Close()
			img, _, decodeErr := image.Decode(f)
			if decodeErr == nil {
				return img, nil
			}
			return nil, fmt.Errorf("failed to decode header overlay: %w", decodeErr)
		}
	}

	return r.text.RenderHeader(req.Segment.HeaderText, req.Orientation.Width, req.Orientation.Height)
}

func loadCanvas(mediaPath string, width, height int) (*image.RGBA, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return letterbox(src, width, height), nil
}

func saveJPEG(path string, frame *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}
