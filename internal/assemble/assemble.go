// Package assemble stitches rendered segment clips into the final video:
// numeric ordering, per-clip normalization to a common format, concat
// demuxing and the background music mix. Assembly failure is fatal to a
// job; there is no tier below it.
package assemble

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/montage/internal/effects"
	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/services"
)

// fallbackClipDuration stands in for clips whose duration cannot be
// probed; the normalization trim needs some target.
const fallbackClipDuration = 4.0

type Assembler struct {
	engine      *services.FFmpegService
	concurrency int
}

func New(engine *services.FFmpegService, concurrency int) *Assembler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Assembler{engine: engine, concurrency: concurrency}
}

// clip is one discovered segment clip in assembly order.
type clip struct {
	index    int
	path     string
	duration float64
}

// Assemble produces the job's final output from the rendered clips.
// Normalized intermediates, the manifest, the stitched file and the
// segment clips are removed once the final file exists.
func (a *Assembler) Assemble(ctx context.Context, paths models.JobPaths) error {
	clips, err := discoverClips(paths.VideoDir())
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return fmt.Errorf("no rendered clips to assemble in %s", paths.VideoDir())
	}

	log.Printf("[Assembler] Stitching %d clips", len(clips))

	for i := range clips {
		duration, err := a.engine.ProbeDuration(ctx, clips[i].path)
		if err != nil {
			log.Printf("[Assembler] Could not probe %s, assuming %.1fs: %v", filepath.Base(clips[i].path), fallbackClipDuration, err)
			duration = fallbackClipDuration
		}
		clips[i].duration = duration
	}

	manifestPaths, normalized, err := a.normalizeAll(ctx, clips)
	if err != nil {
		return err
	}

	manifest := filepath.Join(paths.VideoDir(), "normalized_files.txt")
	if err := writeManifest(manifest, manifestPaths); err != nil {
		return err
	}

	stitched := filepath.Join(paths.VideoDir(), "stitched.mp4")
	if err := a.concat(ctx, manifest, stitched); err != nil {
		return fmt.Errorf("concatenation failed: %w", err)
	}

	output := paths.Output()
	if music := findMusic(paths); music != "" {
		if err := a.engine.MixBackgroundMusic(ctx, stitched, music, output); err != nil {
			return err
		}
	} else {
		log.Printf("[Assembler] No background music found, delivering stitched video")
		if err := os.Rename(stitched, output); err != nil {
			return fmt.Errorf("failed to move stitched video into place: %w", err)
		}
	}

	cleanup := append([]string{manifest, stitched}, normalized...)
	for _, c := range clips {
		cleanup = append(cleanup, c.path)
	}
	a.engine.Cleanup(cleanup...)

	log.Printf("[Assembler] Final video ready at %s", output)
	return nil
}

// normalizeAll re-encodes every clip to the common format, fanning out
// over a bounded group. The returned manifest slice preserves clip order;
// a clip whose normalization fails rides along unnormalized rather than
// sinking the job. The second slice lists the normalized files that
// actually exist, for cleanup.
func (a *Assembler) normalizeAll(ctx context.Context, clips []clip) ([]string, []string, error) {
	manifestPaths := make([]string, len(clips))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i := range clips {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			c := clips[i]
			normPath := filepath.Join(filepath.Dir(c.path), "norm_"+filepath.Base(c.path))
			if err := normalizeClip(c.path, normPath, c.duration); err != nil {
				log.Printf("[Assembler] Normalization failed for %s, using original: %v", filepath.Base(c.path), err)
				manifestPaths[i] = c.path
				return nil
			}
			manifestPaths[i] = normPath
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var normalized []string
	for i, p := range manifestPaths {
		if p != clips[i].path {
			normalized = append(normalized, p)
		}
	}
	return manifestPaths, normalized, nil
}

// normalizeClip re-encodes one clip to 25 fps cfr x264 with uniform
// stereo audio and a hard trim to its own probed duration. This removes
// the frame-rate and keyframe drift that desynchronizes a naive concat.
func normalizeClip(inputPath, outputPath string, duration float64) error {
	return ffmpeg.Input(inputPath).
		Output(outputPath, normalizeArgs(duration)).
		OverWriteOutput().
		Run()
}

// normalizeArgs is the common clip format: hard trim to the probed
// duration, constant 25 fps, x264 CRF 23, uniform stereo aac with a
// small audio pad so streams never end a frame short of the video.
func normalizeArgs(duration float64) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"t":       strconv.FormatFloat(duration, 'f', 3, 64),
		"r":       strconv.Itoa(effects.FPS),
		"c:v":     "libx264",
		"crf":     "23",
		"pix_fmt": "yuv420p",
		"vsync":   "cfr",
		"c:a":     "aac",
		"b:a":     "192k",
		"ar":      "44100",
		"ac":      "2",
		"af":      "apad=pad_dur=0.1",
	}
}

// concat runs the demuxer over the manifest into one stitched stream.
func (a *Assembler) concat(ctx context.Context, manifest, stitched string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ffmpeg.Input(manifest, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(stitched, ffmpeg.KwArgs{
			"c:v": "libx264",
			"crf": "23",
			"c:a": "aac",
			"b:a": "192k",
		}).
		OverWriteOutput().
		Run()
}

// discoverClips lists the segment clips in strict numeric index order.
// Files without an integer base name are not segment clips and are left
// alone.
func discoverClips(videoDir string) ([]clip, error) {
	entries, err := os.ReadDir(videoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}

	var clips []clip
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSuffix(entry.Name(), ".mp4"))
		if err != nil {
			continue
		}
		clips = append(clips, clip{index: index, path: filepath.Join(videoDir, entry.Name())})
	}

	sort.Slice(clips, func(i, j int) bool { return clips[i].index < clips[j].index })
	return clips, nil
}

// writeManifest writes the concat demuxer's file list, absolute paths in
// playback order.
func writeManifest(manifest string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve clip path %s: %w", p, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}

	if err := os.WriteFile(manifest, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat manifest: %w", err)
	}
	return nil
}

// findMusic returns the job's background music file, preferring song.m4a
// over song.mp3, or "" when the job has none.
func findMusic(paths models.JobPaths) string {
	for _, candidate := range paths.MusicCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
