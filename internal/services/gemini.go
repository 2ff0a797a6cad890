package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini Text-to-Speech Service
// Uses the Google Gen AI SDK's TTS model. The model returns raw 24 kHz
// mono 16-bit PCM, which gets wrapped into a WAV container so the
// transcoding engine can consume it like any other audio file.
// ---------------------------------------------------------------------------

const (
	geminiTTSModel     = "gemini-2.5-flash-preview-tts"
	geminiDefaultVoice = "Kore"

	geminiPCMSampleRate = 24000
	geminiPCMChannels   = 1
	geminiPCMBitDepth   = 16
)

type GeminiService struct {
	apiKey string
}

// Ensure GeminiService implements TTSService at compile time.
var _ TTSService = (*GeminiService)(nil)

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{apiKey: apiKey}
}

func (s *GeminiService) Name() string { return "gemini" }

func (s *GeminiService) SpeedFactor() float64 { return 1.0 }

// GenerateSpeech converts text to speech via Gemini. voiceID names a
// prebuilt Gemini voice; empty uses the default.
func (s *GeminiService) GenerateSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	voice := geminiDefaultVoice
	if voiceID != "" {
		voice = voiceID
	}

	log.Printf("[TTS] Gemini generating speech (voice=%s, textLen=%d)", voice, len(text))

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: voice,
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, geminiTTSModel, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("Gemini speech request failed: %w", err)
	}

	pcm := extractAudioData(resp)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("Gemini returned no audio data")
	}

	audioData := wrapPCMInWAV(pcm, geminiPCMSampleRate, geminiPCMChannels, geminiPCMBitDepth)
	log.Printf("[TTS] Gemini speech generated (%d PCM bytes)", len(pcm))
	return audioData, nil
}

// extractAudioData pulls the inline audio bytes out of the first
// candidate's parts.
func extractAudioData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// wrapPCMInWAV prepends a RIFF/WAVE header to raw PCM samples.
func wrapPCMInWAV(pcm []byte, sampleRate, channels, bitDepth int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
