package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/montage/internal/api"
	"github.com/bobarin/montage/internal/assemble"
	"github.com/bobarin/montage/internal/config"
	"github.com/bobarin/montage/internal/db"
	"github.com/bobarin/montage/internal/pipeline"
	"github.com/bobarin/montage/internal/queue"
	"github.com/bobarin/montage/internal/render"
	"github.com/bobarin/montage/internal/services"
	"github.com/bobarin/montage/internal/status"
	"github.com/bobarin/montage/internal/storage"
	"github.com/bobarin/montage/internal/worker"
)

func main() {
	log.Println("Starting Montage API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database (optional — jobs live in memory without it)
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		log.Println("Connected to database")
	} else {
		log.Println("No DATABASE_URL set — job records are in-memory only")
	}

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	statusStore := status.NewMemoryStore()
	fetcher := storage.NewFetcher()

	// Create API handler
	handler := api.NewHandler(statusStore, q, database, fetcher, cfg.WorkDir)
	router := api.NewRouter(handler, api.RouterConfig{
		APIKey:             cfg.APIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	// Initialize the render stack
	engine := services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath)

	rasterizer, err := render.LoadTextRasterizer(cfg.FontPath)
	if err != nil {
		log.Fatalf("Failed to load font %s: %v", cfg.FontPath, err)
	}

	renderer := render.New(engine, rasterizer, render.Options{
		FontPath:          cfg.FontPath,
		ZoomSpeed:         cfg.ZoomSpeed,
		ZoomCurve:         cfg.ZoomCurve,
		AllowBareFallback: cfg.AllowBareFallback,
	})

	assembler := assemble.New(engine, cfg.NormalizeConcurrency)

	pipe := pipeline.New(engine, renderer, rasterizer, assembler, statusStore, database, services.ProviderKeys{
		ElevenLabs: cfg.ElevenLabsKey,
		Hume:       cfg.HumeKey,
		OpenAI:     cfg.OpenAIKey,
		Gemini:     cfg.GeminiKey,
	}, cfg.WorkDir)

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start the worker pool
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.New(q, pipe).Start(workerCtx, cfg.WorkerCount)
	}()

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop picking up jobs; in-flight transcodes run to completion.
	workerCancel()
	<-workerDone

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
