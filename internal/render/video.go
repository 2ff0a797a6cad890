package render

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/bobarin/montage/internal/effects"
	"github.com/bobarin/montage/internal/models"
)

// videoCRF is the encode quality for filter-graph clips.
const videoCRF = 23

// vignetteAngle is the builtin vignette filter's aperture argument.
const vignetteAngle = "PI/4"

// renderStrategy is one tier of the fallback chain: a name for the logs
// and the complete argument list for a single engine invocation.
type renderStrategy struct {
	tier models.RenderTier
	args []string
}

// RenderVideoSegment produces a clip from a video source by walking an
// ordered strategy list: the full filter graph, then scale+pad with only
// the header stage, then a bare stream copy with the narration swapped
// in. The first invocation that succeeds wins. A context error stops the
// walk; a chain exhausted on real failures reports the segment as
// unproducible.
func (r *Renderer) RenderVideoSegment(ctx context.Context, req Request) (Result, error) {
	seg := req.Segment
	clipPath := req.Paths.ClipFile(seg.Index)

	for _, s := range r.strategies(req, clipPath) {
		err := r.engine.Transcode(ctx, s.args...)
		if err == nil {
			log.Printf("[Render] Segment %d: video clip done via %s (%.2fs)", seg.Index, s.tier, req.Decision.FinalDuration)
			return Result{ClipPath: clipPath, Tier: s.tier}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Printf("[Render] Segment %d: %s tier failed: %v", seg.Index, s.tier, err)
	}

	return Result{}, fmt.Errorf("segment %d: all render strategies failed", seg.Index)
}

// strategies builds the ordered fallback chain for one segment. The bare
// tier cannot carry the header overlay, so dropping to it on a headered
// segment is a configuration choice.
func (r *Renderer) strategies(req Request, clipPath string) []renderStrategy {
	chain := []renderStrategy{
		{tier: models.TierFullGraph, args: r.fullGraphArgs(req, clipPath)},
		{tier: models.TierSimplified, args: r.simplifiedArgs(req, clipPath)},
	}
	if r.allowBareFallback || !req.hasHeader() {
		chain = append(chain, renderStrategy{tier: models.TierBareCopy, args: r.bareCopyArgs(req, clipPath)})
	}
	return chain
}

// fullGraphArgs builds the primary invocation: loop, scale, pad,
// vignette, whole-video fade stages, overlay text and the header
// composite, with the requested audio policy and a hard duration trim.
func (r *Renderer) fullGraphArgs(req Request, clipPath string) []string {
	seg := req.Segment
	o := req.Orientation
	d := req.Decision

	inputs := []string{"-i", seg.MediaPath, "-i", seg.PaddedAudioPath}
	headerInput := -1
	if req.hasHeader() && req.HeaderOverlayPath != "" {
		inputs = append(inputs, "-i", req.HeaderOverlayPath)
		headerInput = 2
	}

	var videoFilters []string
	if d.NeedsLoop {
		videoFilters = append(videoFilters, fmt.Sprintf("loop=loop=%d:size=999999:start=0", d.LoopCount))
	}
	videoFilters = append(videoFilters,
		fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", o.Width, o.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black", o.Width, o.Height),
		"vignette="+vignetteAngle,
	)
	if seg.Index == 1 {
		videoFilters = append(videoFilters, fmt.Sprintf("fade=t=in:st=0:d=%s", secs(effects.DefaultFadeDuration)))
	}
	if seg.Index == req.TotalSegments {
		fadeStart := d.FinalDuration - effects.DefaultFadeDuration
		videoFilters = append(videoFilters, fmt.Sprintf("fade=t=out:st=%s:d=%s:color=black", secs(fadeStart), secs(effects.DefaultFadeDuration)))
	}

	filterParts := []string{"[0:v]" + strings.Join(videoFilters, ",") + "[scaled]"}
	label := "[scaled]"

	if text := req.overlayText(); text != "" {
		filterParts = append(filterParts, label+r.overlayTextFilter(text, o)+"[texted]")
		label = "[texted]"
	}

	if headerInput >= 0 {
		filterParts = append(filterParts, fmt.Sprintf("%s[%d:v]overlay=0:0[headed]", label, headerInput))
		label = "[headed]"
	} else if req.hasHeader() {
		// Header PNG missing: degrade to an equivalent corner drawtext.
		filterParts = append(filterParts, label+r.cornerTextFilter(seg.HeaderText)+"[headed]")
		label = "[headed]"
	}

	args := []string{"-y"}
	args = append(args, inputs...)

	if req.KeepNativeAudio {
		// Narration first so it dictates the mix duration.
		audioFilter := "[1:a][0:a]amix=inputs=2:duration=first:dropout_transition=2[aout]"
		args = append(args,
			"-filter_complex", strings.Join(filterParts, ";")+";"+audioFilter,
			"-map", label,
			"-map", "[aout]",
		)
	} else {
		args = append(args,
			"-filter_complex", strings.Join(filterParts, ";"),
			"-map", label,
			"-map", "1:a",
		)
	}

	return append(args, encodeTail(d.FinalDuration, clipPath)...)
}

// simplifiedArgs keeps only scale+pad plus the header stage. Zoom, loop,
// vignette and fades are gone; the audio policy and trim stay.
func (r *Renderer) simplifiedArgs(req Request, clipPath string) []string {
	seg := req.Segment
	o := req.Orientation

	inputs := []string{"-i", seg.MediaPath, "-i", seg.PaddedAudioPath}
	headerInput := -1
	if req.hasHeader() && req.HeaderOverlayPath != "" {
		inputs = append(inputs, "-i", req.HeaderOverlayPath)
		headerInput = 2
	}

	base := fmt.Sprintf("[0:v]scale=w=%d:h=%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
		o.Width, o.Height, o.Width, o.Height)

	var filterComplex string
	switch {
	case headerInput >= 0:
		filterComplex = fmt.Sprintf("%s[padded];[padded][%d:v]overlay=0:0[v]", base, headerInput)
	case req.hasHeader():
		filterComplex = base + r.cornerTextFilter(seg.HeaderText) + "[v]"
	default:
		filterComplex = base + "[v]"
	}

	args := []string{"-y"}
	args = append(args, inputs...)

	if req.KeepNativeAudio {
		audioFilter := "[1:a][0:a]amix=inputs=2:duration=first:dropout_transition=2[aout]"
		args = append(args,
			"-filter_complex", filterComplex+";"+audioFilter,
			"-map", "[v]",
			"-map", "[aout]",
		)
	} else {
		args = append(args,
			"-filter_complex", filterComplex,
			"-map", "[v]",
			"-map", "1:a",
		)
	}

	return append(args, encodeTail(req.Decision.FinalDuration, clipPath)...)
}

// bareCopyArgs is the floor: stream-copy the source video, swap in the
// narration, trim. No filtering, so nothing filter-related can fail.
func (r *Renderer) bareCopyArgs(req Request, clipPath string) []string {
	return []string{
		"-y",
		"-i", req.Segment.MediaPath,
		"-i", req.Segment.PaddedAudioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-t", secs(req.Decision.FinalDuration),
		clipPath,
	}
}

// overlayTextFilter renders the wrapped overlay text bottom-center with
// white fill over a black border.
func (r *Renderer) overlayTextFilter(text string, o models.Orientation) string {
	escaped := escapeDrawtext(text, o.WrapWidth)
	return fmt.Sprintf("drawtext=text='%s'%s:fontsize=%d:fontcolor=white:bordercolor=black:borderw=3:x=(w-text_w)/2:y=h-th-50",
		escaped, r.fontFileParam(), o.FontSize)
}

// cornerTextFilter is the degraded header: black text with a white
// border in the bottom-right corner, mirroring the PNG overlay styling.
func (r *Renderer) cornerTextFilter(headerText string) string {
	escaped := escapeDrawtext(headerText, 40)
	return fmt.Sprintf("drawtext=text='%s'%s:fontsize=%d:fontcolor=black:bordercolor=white:borderw=%d:x=w-tw-%d:y=h-th-%d",
		escaped, r.fontFileParam(), headerFontSize, headerOutlineRadius, headerPadding, headerPadding)
}

// fontFileParam pins drawtext to the configured font when it exists;
// otherwise the engine falls back to its system font lookup.
func (r *Renderer) fontFileParam() string {
	if r.fontPath == "" {
		return ""
	}
	if _, err := os.Stat(r.fontPath); err != nil {
		return ""
	}
	return fmt.Sprintf(":fontfile='%s'", r.fontPath)
}

// escapeDrawtext wraps the text and escapes the filter-graph
// metacharacters drawtext would otherwise interpret.
func escapeDrawtext(text string, wrapWidth int) string {
	wrapped := strings.Join(effects.WrapText(text, wrapWidth), "\n")
	escaped := strings.ReplaceAll(wrapped, "'", `'\''`)
	escaped = strings.ReplaceAll(escaped, ":", `\:`)
	escaped = strings.ReplaceAll(escaped, "%", `\%`)
	return escaped
}

func encodeTail(duration float64, clipPath string) []string {
	return []string{
		"-c:v", "libx264",
		"-c:a", "aac",
		"-crf", strconv.Itoa(videoCRF),
		"-pix_fmt", "yuv420p",
		"-t", secs(duration),
		clipPath,
	}
}

func secs(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
