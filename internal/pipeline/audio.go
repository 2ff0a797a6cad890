package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/services"
)

const (
	// ttsCooldown spaces narration calls out so provider rate limits
	// never surface mid-job.
	ttsCooldown = 700 * time.Millisecond

	// narrationBoostDB lifts synthesized narration above the background
	// music it will be mixed against.
	narrationBoostDB = 6.0

	// fallbackSilenceSeconds stands in when a provider fails; the job
	// keeps its pacing instead of aborting.
	fallbackSilenceSeconds = 3.0

	// skipDefaultSeconds is the silence length for skip segments whose
	// media duration cannot be probed, and for image skip segments.
	skipDefaultSeconds = 4.0

	// trailingPadSeconds keeps the last narrated word from slamming into
	// the next segment.
	trailingPadSeconds = 1.0
)

// prepareAudio materializes audio/{index}.mp3 and the padded variant for
// every segment. Two passes: narration first, then silence for skip
// segments. Existing files are left untouched, so a retried job never
// re-synthesizes narration it already has.
func (p *Pipeline) prepareAudio(ctx context.Context, segments []models.Segment, tts services.TTSService, voiceID string, paths models.JobPaths) error {
	for _, seg := range segments {
		if seg.IsSkip() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if fileExists(seg.AudioPath) {
			log.Printf("[Pipeline] Segment %d: narration already exists, keeping it", seg.Index)
			continue
		}

		audio, err := tts.GenerateSpeech(ctx, seg.Text, voiceID)
		if err != nil {
			log.Printf("[Pipeline] Segment %d: %s narration failed, substituting silence: %v", seg.Index, tts.Name(), err)
			if err := p.engine.GenerateSilence(ctx, fallbackSilenceSeconds, seg.AudioPath); err != nil {
				return fmt.Errorf("segment %d: silence fallback failed: %w", seg.Index, err)
			}
		} else {
			if err := os.WriteFile(seg.AudioPath, audio, 0o644); err != nil {
				return fmt.Errorf("segment %d: failed to write narration: %w", seg.Index, err)
			}
			if err := p.engine.BoostVolume(ctx, seg.AudioPath, narrationBoostDB); err != nil {
				log.Printf("[Pipeline] Segment %d: volume boost failed, using unboosted narration: %v", seg.Index, err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ttsCooldown):
		}
	}

	for _, seg := range segments {
		if !seg.IsSkip() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if fileExists(seg.AudioPath) {
			continue
		}

		seconds := skipDefaultSeconds
		if seg.Kind == models.MediaKindVideo {
			if d, err := p.engine.ProbeDuration(ctx, seg.MediaPath); err == nil {
				seconds = d
			} else {
				log.Printf("[Pipeline] Segment %d: cannot probe video for skip silence, using %.0fs: %v", seg.Index, skipDefaultSeconds, err)
			}
		}

		if err := p.engine.GenerateSilence(ctx, seconds, seg.AudioPath); err != nil {
			return fmt.Errorf("segment %d: skip silence failed: %w", seg.Index, err)
		}
	}

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.engine.PadAudio(ctx, seg.AudioPath, seg.PaddedAudioPath, trailingPadSeconds); err != nil {
			return fmt.Errorf("segment %d: padding failed: %w", seg.Index, err)
		}
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
