package services

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// OpenAI Text-to-Speech Service
// Narration via the OpenAI speech API (tts-1). Real-time pace, so the
// speed factor is 1.0.
// ---------------------------------------------------------------------------

const openAIDefaultVoice = openai.VoiceAlloy

type OpenAIService struct {
	client *openai.Client
}

// Ensure OpenAIService implements TTSService at compile time.
var _ TTSService = (*OpenAIService)(nil)

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

func (s *OpenAIService) Name() string { return "openai" }

func (s *OpenAIService) SpeedFactor() float64 { return 1.0 }

// GenerateSpeech converts text to speech via the OpenAI speech API.
// voiceID overrides the default voice when it names a known one.
func (s *OpenAIService) GenerateSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	voice := openAIDefaultVoice
	if voiceID != "" {
		voice = openai.SpeechVoice(voiceID)
	}

	log.Printf("[TTS] OpenAI generating speech (voice=%s, textLen=%d)", voice, len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAI audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("OpenAI returned empty audio")
	}

	log.Printf("[TTS] OpenAI speech generated (%d bytes)", len(audioData))
	return audioData, nil
}
