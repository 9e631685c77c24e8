package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/codebuildervaibhav/meeting-insights/internal/archive"
	"github.com/codebuildervaibhav/meeting-insights/internal/auth"
	"github.com/codebuildervaibhav/meeting-insights/internal/billing"
	"github.com/codebuildervaibhav/meeting-insights/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-insights/internal/config"
	"github.com/codebuildervaibhav/meeting-insights/internal/entitlement"
	"github.com/codebuildervaibhav/meeting-insights/internal/handlers"
	"github.com/codebuildervaibhav/meeting-insights/internal/insights"
	"github.com/codebuildervaibhav/meeting-insights/internal/logger"
	"github.com/codebuildervaibhav/meeting-insights/internal/queue"
	"github.com/codebuildervaibhav/meeting-insights/internal/storage"
	"github.com/codebuildervaibhav/meeting-insights/internal/tracing"
	"github.com/codebuildervaibhav/meeting-insights/internal/transcription"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		Output:     os.Stdout,
		JSONFormat: cfg.Logging.JSON,
	})
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.Enabled, cfg.Tracing.ServiceName, os.Stderr)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	// Ensure directories exist
	if err := cleanup.EnsureDir(cfg.Storage.TempDir); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	if err := cleanup.EnsureDir(cfg.Storage.OutputDir); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	log.Info("initializing components", "db_driver", cfg.Storage.Driver, "completion_provider", cfg.Completion.Provider)

	// Database
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	local := storage.NewLocalStorage(cfg.Storage.TempDir, cfg.Storage.OutputDir)

	// Google Drive archive (optional)
	var uploader archive.Uploader
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); cfg.GoogleDrive.CredentialsFile != "" && err == nil {
		driveClient, err := storage.NewDriveClient(ctx,
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Warn("google drive not available, exports are saved locally only", "error", err)
		} else {
			uploader = driveClient
			log.Info("google drive archive enabled", "folder", cfg.GoogleDrive.FolderName)
		}
	} else {
		log.Info("google drive credentials not found, exports are saved locally only")
	}
	downloader := storage.NewDriveDownloader(&http.Client{Timeout: 5 * time.Minute})

	// Model providers
	transcriber := transcription.NewWhisperTranscriber(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.TranscriptionModel,
		log,
	)
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return err
	}
	summarizer := insights.NewSummarizer(completer, log)
	qa := insights.NewQAService(completer, insights.NewAnswerCache(cfg.QA.CacheSize), store, log)

	gate := entitlement.NewGate(store, cfg.Limits.FreeTranscriptions)
	archiver := archive.NewArchiver(local, uploader, log)

	// Pipeline and worker pool
	tracker := queue.NewTracker(cfg.HeartbeatInterval(), time.Hour)
	pipeline := queue.NewPipeline(queue.PipelineConfig{
		Store:       store,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Usage:       gate,
		Audio:       local,
		Tracker:     tracker,
		Archiver:    archiver,
		Retry: queue.RetryPolicy{
			Attempts:  cfg.Pipeline.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay(),
		},
		Logger: log,
	})

	pool := queue.NewWorkerPool(cfg.Workers.Count, cfg.Workers.QueueSize, pipeline, log)
	pool.Start()

	submitter := queue.NewSubmitter(
		transcription.NewValidator(cfg.MaxFileSize()),
		gate,
		store,
		local,
		tracker,
		pool,
		log,
	)

	// Cleanup scheduler
	scheduler := cleanup.NewScheduler(cleanup.Config{
		TempDir:        cfg.Storage.TempDir,
		Interval:       time.Duration(cfg.Cleanup.IntervalMinutes) * time.Minute,
		MaxAge:         time.Duration(cfg.Cleanup.MaxAgeHours) * time.Hour,
		AbandonedAfter: time.Duration(cfg.Cleanup.AbandonedAfterMinutes) * time.Minute,
		Jobs:           store,
		Tracker:        tracker,
		Logger:         log,
	})
	scheduler.Start(ctx)

	checkout := billing.NewCheckout(cfg.Stripe.SecretKey, cfg.Stripe.PriceID, cfg.Server.PublicURL)
	webhook := billing.NewWebhook(cfg.Stripe.WebhookSecret, store, log)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:               cfg.Server.BodyLimitMB << 20,
		DisableStartupMessage:   true,
		ErrorHandler:            handlers.ErrorHandler(log),
		EnableTrustedProxyCheck: len(cfg.Server.TrustedProxies) > 0,
		TrustedProxies:          cfg.Server.TrustedProxies,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods: strings.Join([]string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodOptions,
		}, ","),
	}))

	handlers.Register(app, handlers.Handlers{
		Upload:  handlers.NewUploadHandler(submitter, log),
		GDrive:  handlers.NewGDriveHandler(submitter, downloader, log),
		Jobs:    handlers.NewJobsHandler(store, tracker, submitter, local, log),
		Chat:    handlers.NewChatHandler(store, qa, log),
		Tasks:   handlers.NewTasksHandler(store, log),
		Usage:   handlers.NewUsageHandler(gate, log),
		Billing: handlers.NewBillingHandler(checkout, webhook, log),
		Export:  handlers.NewExportHandler(store, log),
		Stream:  handlers.NewStreamHandler(store, tracker, log),
		DB:      store,
	}, auth.Middleware(verifier, store, log))

	// Graceful shutdown
	errCh := make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("server starting", "addr", addr, "workers", cfg.Workers.Count)
		errCh <- app.Listen(addr)
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case <-sigint:
		log.Info("shutting down gracefully")
	case serveErr = <-errCh:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Warn("worker pool did not drain", "error", err)
	}
	scheduler.Stop()
	cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", "error", err)
	}

	return serveErr
}

func newCompleter(ctx context.Context, cfg *config.Config) (insights.Completer, error) {
	switch cfg.Completion.Provider {
	case "gemini":
		c, err := insights.NewGeminiCompleter(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		return c, nil
	default:
		return insights.NewOpenAICompleter(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.CompletionModel), nil
	}
}
