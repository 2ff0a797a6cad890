package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService — the transcoding engine boundary
//
// Every invocation is a blocking subprocess call. Only the exit status
// carries semantics; stdout/stderr are passed through for operator eyes.
// The context gates NEW invocations: a started encode always runs to
// completion, because a killed encoder leaves partial files that are not
// safe artifacts.
// ---------------------------------------------------------------------------

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegService(ffmpegPath, ffprobePath string) *FFmpegService {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// VideoInfo is the probe result for a media file.
type VideoInfo struct {
	Duration float64 // seconds
	Width    int
	Height   int
}

// Transcode runs one ffmpeg invocation with the given arguments. Callers
// build the complete argument list including inputs, filters and the
// output path.
func (s *FFmpegService) Transcode(ctx context.Context, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(s.ffmpegPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// ProbeDuration returns a media file's duration in seconds.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.Command(s.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration failed for %s: %w", path, err)
	}

	var seconds float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &seconds); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return seconds, nil
}

// ProbeVideo returns duration and pixel dimensions of the first video
// stream in one ffprobe call.
func (s *FFmpegService) ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	if err := ctx.Err(); err != nil {
		return VideoInfo{}, err
	}

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	}

	cmd := exec.Command(s.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe video info failed for %s: %w", path, err)
	}

	var info VideoInfo
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "width":
			info.Width, _ = strconv.Atoi(value)
		case "height":
			info.Height, _ = strconv.Atoi(value)
		case "duration":
			info.Duration, _ = strconv.ParseFloat(value, 64)
		}
	}
	if info.Duration <= 0 {
		return VideoInfo{}, fmt.Errorf("no parseable duration in ffprobe output for %s", path)
	}
	return info, nil
}

// EncodeFrameSequence turns a numbered frame sequence into a silent clip.
func (s *FFmpegService) EncodeFrameSequence(ctx context.Context, framesPattern string, fps, crf int, outputPath string) error {
	args := []string{
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", framesPattern,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(crf),
		outputPath,
	}

	if err := s.Transcode(ctx, args...); err != nil {
		return fmt.Errorf("frame sequence encode failed: %w", err)
	}
	return nil
}

// MuxAudio copies the video stream and lays the audio track under it,
// stopping at the shorter stream.
func (s *FFmpegService) MuxAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	}

	if err := s.Transcode(ctx, args...); err != nil {
		return fmt.Errorf("audio mux failed: %w", err)
	}
	return nil
}

// GenerateSilence writes a silent MP3 of the given length.
func (s *FFmpegService) GenerateSilence(ctx context.Context, seconds float64, outputPath string) error {
	args := []string{
		"-y",
		"-f", "lavfi",
		"-t", formatSeconds(seconds),
		"-i", "anullsrc=r=44100:cl=stereo",
		"-q:a", "9",
		"-acodec", "libmp3lame",
		outputPath,
	}

	if err := s.Transcode(ctx, args...); err != nil {
		return fmt.Errorf("silence generation failed: %w", err)
	}
	return nil
}

// PadAudio appends trailing silence to a narration clip. The pause keeps
// the last word from slamming into the next segment.
func (s *FFmpegService) PadAudio(ctx context.Context, inputPath, outputPath string, padSeconds float64) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-af", "apad=pad_dur=" + formatSeconds(padSeconds),
		"-c:a", "libmp3lame",
		outputPath,
	}

	if err := s.Transcode(ctx, args...); err != nil {
		return fmt.Errorf("audio padding failed: %w", err)
	}
	return nil
}

// BoostVolume raises an audio file's level in place.
func (s *FFmpegService) BoostVolume(ctx context.Context, path string, db float64) error {
	tmp := path + ".boost.mp3"
	args := []string{
		"-y",
		"-i", path,
		"-af", fmt.Sprintf("volume=%gdB", db),
		"-c:a", "libmp3lame",
		tmp,
	}

	if err := s.Transcode(ctx, args...); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("volume boost failed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("volume boost rename failed: %w", err)
	}
	return nil
}

// MixBackgroundMusic lays faded background music under the stitched video's
// narration. The music fades out over the final 3 seconds (clamped to start
// at 0 for very short videos) and sits at 30% against full-level narration.
// The video stream is copied untouched.
func (s *FFmpegService) MixBackgroundMusic(ctx context.Context, videoPath, musicPath, outputPath string) error {
	duration, err := s.ProbeDuration(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("mix background music: %w", err)
	}

	fadeStart := duration - 3
	if fadeStart < 0 {
		fadeStart = 0
	}

	log.Printf("[FFmpeg] Mixing background music %s (fade-out at %.3fs)", musicPath, fadeStart)

	filterComplex := fmt.Sprintf(
		"[1:a]afade=t=out:st=%.3f:d=3,volume=0.3[a1];[0:a]volume=1.0[a0];[a0][a1]amix=inputs=2:duration=first:dropout_transition=3[aout]",
		fadeStart,
	)

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", musicPath,
		"-filter_complex", filterComplex,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		outputPath,
	}

	if err := s.Transcode(ctx, args...); err != nil {
		return fmt.Errorf("background music mix failed: %w", err)
	}
	return nil
}

// Cleanup removes files, ignoring errors for paths that are already gone.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}

// formatSeconds renders a duration argument with millisecond precision.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
