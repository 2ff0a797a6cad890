package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port               string
	APIKey             string // API key for authenticating requests
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Database (optional; absent = in-memory status only)
	DatabaseURL string

	// Working directories
	WorkDir string // Job directories live under WorkDir/jobs/{id}

	// Transcoding engine
	FFmpegPath  string
	FFprobePath string

	// Text rendering
	FontPath string

	// Effects
	ZoomSpeed float64
	ZoomCurve string

	// Rendering policy
	AllowBareFallback bool // When false, headered segments omit instead of dropping to stream-copy

	// Worker
	WorkerCount          int
	NormalizeConcurrency int

	// TTS providers (validated lazily, per job)
	ElevenLabsKey string
	HumeKey       string
	OpenAIKey     string
	GeminiKey     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		APIKey:               getEnv("API_KEY", ""),
		CorsAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		WorkDir:              getEnv("WORK_DIR", "work"),
		FFmpegPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:          getEnv("FFPROBE_PATH", "ffprobe"),
		FontPath:             getEnv("FONT_PATH", "assets/fonts/DejaVuSans-Bold.ttf"),
		ZoomSpeed:            getEnvFloat("ZOOM_SPEED", 0.15),
		ZoomCurve:            getEnv("ZOOM_CURVE", "ease-out"),
		AllowBareFallback:    getEnvBool("ALLOW_BARE_FALLBACK", true),
		WorkerCount:          getEnvInt("WORKER_COUNT", 2),
		NormalizeConcurrency: getEnvInt("NORMALIZE_CONCURRENCY", 3),
		ElevenLabsKey:        getEnv("ELEVENLABS_API_KEY", ""),
		HumeKey:              getEnv("HUME_API_KEY", ""),
		OpenAIKey:            getEnv("OPENAI_API_KEY", ""),
		GeminiKey:            getEnv("GEMINI_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the keys the process cannot run without. Provider keys
// are deliberately not checked here; a job names its provider and the
// missing key surfaces then.
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if c.NormalizeConcurrency < 1 {
		return fmt.Errorf("NORMALIZE_CONCURRENCY must be at least 1")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
