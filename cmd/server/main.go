package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BerylCAtieno/unitydesk-api/internal/analyzer"
	"github.com/BerylCAtieno/unitydesk-api/internal/config"
	"github.com/BerylCAtieno/unitydesk-api/internal/db"
	"github.com/BerylCAtieno/unitydesk-api/internal/geocode"
	"github.com/BerylCAtieno/unitydesk-api/internal/normalize"
	"github.com/BerylCAtieno/unitydesk-api/internal/pipeline"
	"github.com/BerylCAtieno/unitydesk-api/internal/ratelimit"
	"github.com/BerylCAtieno/unitydesk-api/internal/report"
	"github.com/BerylCAtieno/unitydesk-api/internal/repository"
	"github.com/BerylCAtieno/unitydesk-api/internal/router"
	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/storage"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"github.com/BerylCAtieno/unitydesk-api/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Run migrations
	if err := db.RunMigrations(cfg.DatabasePath, cfg.MigrationsPath); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize database
	database, err := db.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", "error", err)
	}
	defer database.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStartup()

	// Initialize media storage
	mediaStorage, err := storage.NewS3Storage(startupCtx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", "error", err)
	}

	// AI clients
	aiClient := analyzer.NewClient(analyzer.Options{
		APIURL:            cfg.AIAPIURL,
		APIKey:            cfg.AIAPIKey,
		Model:             cfg.AIModel,
		VisionModel:       cfg.AIVisionModel,
		Timeout:           cfg.AITimeout,
		RequestsPerSecond: cfg.AIRequestsPerSecond,
		Referer:           cfg.PublicBaseURL,
	}, logger)
	transcriber := analyzer.NewTranscriber(analyzer.SpeechOptions{
		APIURL:  cfg.SpeechAPIURL,
		APIKey:  cfg.SpeechAPIKey,
		Model:   cfg.SpeechModel,
		Timeout: cfg.AITimeout,
	}, logger)
	if !cfg.SpeechEnabled() {
		logger.Warn("SPEECH_API_KEY not set, voice recordings will not be transcribed")
	}

	geocoder := geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, logger)

	reports := report.NewGenerator(cfg.PublicBaseURL)
	if cfg.ReportFontPath != "" {
		if err := reports.LoadUTF8Font(cfg.ReportFontPath); err != nil {
			logger.Fatal("Failed to load report font", "error", err)
		}
	} else {
		logger.Warn("REPORT_FONT_PATH not set, reports cannot render Devanagari text")
	}

	complaintService := services.NewComplaintService(services.Deps{
		Repo:       repository.NewRepository(database),
		Storage:    mediaStorage,
		Normalizer: normalize.NewNormalizer(transcriber, aiClient, logger),
		Pipeline:   pipeline.New(aiClient, logger),
		Checker:    aiClient,
		Reports:    reports,
		Geocoder:   geocoder,
		MaxImages:  cfg.MaxImages,
	}, logger)

	sessions := services.NewSessionStore(workflow.Deps{
		Checker:   aiClient,
		Analyzer:  complaintService,
		Submitter: complaintService,
		Geocoder:  geocoder,
	}, cfg.SessionTTL)

	limiter := ratelimit.New(newRateLimitStore(startupCtx, cfg, logger), cfg.RateLimitRequests, cfg.RateLimitWindow)

	// Setup HTTP router
	handler := router.NewRouter(cfg, complaintService, sessions, limiter, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// newRateLimitStore shares counters through Redis when REDIS_ADDR is set and
// falls back to per-process counters otherwise.
func newRateLimitStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) ratelimit.Store {
	if cfg.RedisAddr == "" {
		logger.Info("Rate limiting with in-memory counters")
		return ratelimit.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, rate limiting with in-memory counters", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return ratelimit.NewMemoryStore()
	}

	logger.Info("Rate limiting with Redis counters", "addr", cfg.RedisAddr)
	return ratelimit.NewRedisStore(client)
}
