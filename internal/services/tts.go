package services

import (
	"context"
	"fmt"
)

// ---------------------------------------------------------------------------
// TTSService — common interface for narration providers
// The pipeline picks a provider by the name the job was submitted with;
// every provider hands back encoded audio bytes ready to write to the
// segment's narration file.
// ---------------------------------------------------------------------------

// TTSService is the interface every narration provider implements.
type TTSService interface {
	// Name returns the provider's registry name.
	Name() string

	// SpeedFactor reports how much faster than real time the provider
	// narrates. Segment durations are divided by it, so a provider that
	// reads at 1.3x yields proportionally shorter segments.
	SpeedFactor() float64

	// GenerateSpeech converts text to audio. voiceID overrides the
	// provider's default voice when non-empty.
	GenerateSpeech(ctx context.Context, text, voiceID string) ([]byte, error)
}

// ProviderKeys carries the configured narration API keys. Keys are
// checked when a job actually asks for the provider, not at startup.
type ProviderKeys struct {
	ElevenLabs string
	Hume       string
	OpenAI     string
	Gemini     string
}

// KnownProviders lists the valid provider names for submission
// validation.
func KnownProviders() []string {
	return []string{"elevenlabs", "hume", "openai", "gemini"}
}

// IsKnownProvider reports whether name maps to a provider.
func IsKnownProvider(name string) bool {
	for _, p := range KnownProviders() {
		if p == name {
			return true
		}
	}
	return false
}

// NewTTSProvider builds the named provider. An unknown name or a missing
// API key is the caller's error to surface.
func NewTTSProvider(name string, keys ProviderKeys) (TTSService, error) {
	switch name {
	case "elevenlabs":
		if keys.ElevenLabs == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY not configured")
		}
		return NewElevenLabsService(keys.ElevenLabs), nil
	case "hume":
		if keys.Hume == "" {
			return nil, fmt.Errorf("HUME_API_KEY not configured")
		}
		return NewHumeService(keys.Hume), nil
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not configured")
		}
		return NewOpenAIService(keys.OpenAI), nil
	case "gemini":
		if keys.Gemini == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not configured")
		}
		return NewGeminiService(keys.Gemini), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider: %s", name)
	}
}
