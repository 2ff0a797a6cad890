package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Hume Octave Text-to-Speech Service
// Hume reads noticeably faster than real time; the 1.3 speed factor keeps
// segment durations honest for narration produced here.
// ---------------------------------------------------------------------------

const (
	humeBaseURL       = "https://api.hume.ai"
	humeDefaultVoice  = "d8ab67c6-953d-4bd8-9370-8fa53a0f1453"
	humeVoiceProvider = "HUME_AI"
	humeSpeedFactor   = 1.3
)

type HumeService struct {
	apiKey         string
	defaultVoiceID string
	client         *http.Client
}

// Ensure HumeService implements TTSService at compile time.
var _ TTSService = (*HumeService)(nil)

func NewHumeService(apiKey string) *HumeService {
	return &HumeService{
		apiKey:         apiKey,
		defaultVoiceID: humeDefaultVoice,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HumeService) Name() string { return "hume" }

func (s *HumeService) SpeedFactor() float64 { return humeSpeedFactor }

type humeRequest struct {
	Utterances     []humeUtterance `json:"utterances"`
	Format         humeFormat      `json:"format"`
	NumGenerations int             `json:"num_generations"`
}

type humeUtterance struct {
	Text  string     `json:"text"`
	Voice *humeVoice `json:"voice,omitempty"`
}

type humeVoice struct {
	ID       string `json:"id"`
	Provider string `json:"provider,omitempty"`
}

type humeFormat struct {
	Type string `json:"type"`
}

// GenerateSpeech generates narration audio via Hume's octave TTS endpoint.
// voiceID overrides the service-level default when non-empty.
func (s *HumeService) GenerateSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	effectiveVoice := s.defaultVoiceID
	if voiceID != "" {
		effectiveVoice = voiceID
	}

	reqBody := humeRequest{
		Utterances: []humeUtterance{
			{
				Text: text,
				Voice: &humeVoice{
					ID:       effectiveVoice,
					Provider: humeVoiceProvider,
				},
			},
		},
		Format:         humeFormat{Type: "mp3"},
		NumGenerations: 1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Hume request: %w", err)
	}

	url := humeBaseURL + "/v0/tts/file"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create Hume request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hume-Api-Key", s.apiKey)

	log.Printf("[TTS] Hume generating speech (voiceID=%s, textLen=%d)", effectiveVoice, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Hume request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Hume returned status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Hume audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("Hume returned empty audio")
	}

	log.Printf("[TTS] Hume speech generated (%d bytes)", len(audioData))
	return audioData, nil
}
