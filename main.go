package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"moderator/internal/blobstore"
	"moderator/internal/config"
	"moderator/internal/contextual"
	"moderator/internal/dispatch"
	"moderator/internal/extractor"
	"moderator/internal/harassment"
	"moderator/internal/notifier"
	"moderator/internal/ocr"
	"moderator/internal/processor"
	"moderator/internal/repository"
	"moderator/internal/server"
	"moderator/internal/service"
	"moderator/internal/toxicity"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	service.SetJWTSecret(cfg.Server.JWTSecret)

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Blob store for uploaded payloads
	blobs, err := blobstore.NewStore(cfg.BlobStore.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	// Repositories
	submissionRepo := repository.NewSubmissionRepository(db, logger)

	// External analysis clients
	toxicityClient := toxicity.NewClient(cfg.Perspective.URL, cfg.Perspective.APIKey, logger)
	contextualAnalyzer, err := contextual.NewAnalyzer(contextual.Config{
		APIKey:    cfg.Gemini.APIKey,
		ModelName: cfg.Gemini.Model,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize contextual analyzer", zap.Error(err))
	}
	defer contextualAnalyzer.Close()

	// Text extraction (plain text, PDF, OCR sidecar for images)
	ocrClient := ocr.NewClient(cfg.OCRService.URL)
	textExtractor := extractor.New(ocrClient, logger)

	// Telegram alerts for harmful classifications (optional)
	bot, err := notifier.NewBot(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}

	// Analysis pipeline and its worker pool
	var flagged processor.Notifier
	if bot != nil {
		flagged = bot
	}
	proc := processor.New(
		submissionRepo,
		blobs,
		textExtractor,
		toxicityClient,
		contextualAnalyzer,
		harassment.NewDetector(),
		flagged,
		logger,
	)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := dispatch.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, proc, logger)
	pool.Start(ctx)

	// Intake service and HTTP server
	submissionSvc := service.NewSubmissionService(submissionRepo, blobs, pool, logger)
	srv := server.NewServer(db, cfg, submissionSvc, logger)
	go srv.Run(cfg.Server.Port)

	<-ctx.Done()

	// Give in-flight pipelines a moment to drain before exit
	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("Worker pool drain timed out")
	}

	logger.Info("Application stopped.")
}
