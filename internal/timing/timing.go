// Package timing resolves each segment's target duration and looping needs
// from already-probed audio/video metadata. Pure computation, no I/O.
package timing

import (
	"github.com/bobarin/montage/internal/models"
)

// DefaultImageDuration is the fallback length for image segments without
// narration.
const DefaultImageDuration = 4.0

// ResolveImage computes the decision for a still-image segment. The padded
// narration length divided by the provider speed factor gives the on-screen
// duration; missing or zero-length audio degenerates to the default without
// error.
func ResolveImage(paddedAudioSeconds, speedFactor float64) models.DurationDecision {
	if speedFactor <= 0 {
		speedFactor = 1
	}
	final := DefaultImageDuration
	if paddedAudioSeconds > 0 {
		final = paddedAudioSeconds / speedFactor
	}
	return models.DurationDecision{FinalDuration: final}
}

// ResolveVideo computes the decision for a video segment. Skip segments run
// for the source video's natural length and never loop. Otherwise narration
// dictates the duration, and a source shorter than the narration is looped
// one cycle past the integer quotient so trimming always has coverage.
func ResolveVideo(naturalSeconds, paddedAudioSeconds, speedFactor float64, skip bool) models.DurationDecision {
	if skip {
		return models.DurationDecision{FinalDuration: naturalSeconds}
	}
	if speedFactor <= 0 {
		speedFactor = 1
	}
	final := DefaultImageDuration
	if paddedAudioSeconds > 0 {
		final = paddedAudioSeconds / speedFactor
	}
	d := models.DurationDecision{FinalDuration: final}
	if naturalSeconds > 0 && final > naturalSeconds {
		d.NeedsLoop = true
		d.LoopCount = int(final/naturalSeconds) + 1
	}
	return d
}
