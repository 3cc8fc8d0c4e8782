package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nikita3549/SkyHelp-sub000/internal/api"
	"github.com/Nikita3549/SkyHelp-sub000/internal/config"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db"
	"github.com/Nikita3549/SkyHelp-sub000/internal/esign"
	"github.com/Nikita3549/SkyHelp-sub000/internal/extraction"
	"github.com/Nikita3549/SkyHelp-sub000/internal/queue"
	"github.com/Nikita3549/SkyHelp-sub000/internal/render"
	"github.com/Nikita3549/SkyHelp-sub000/internal/services"
	"github.com/Nikita3549/SkyHelp-sub000/internal/storage"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/logger"
	"github.com/Nikita3549/SkyHelp-sub000/pkg/metrics"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	var cfg *config.Configuration
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.InitializeDefaultConfig()
	}

	zapLogger, err := logger.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(zapLogger)

	database, err := db.Initialize(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}

	metricsCollector := metrics.NewMetricsCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.ObjectStorage
	switch cfg.Storage.Driver {
	case "memory":
		store = storage.NewMemoryStorage()
	default:
		store, err = storage.NewS3Storage(ctx, cfg.Storage.Region, cfg.Storage.Bucket, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to initialize object storage", zap.Error(err))
		}
	}

	extractor := extraction.NewClient(cfg.Extraction.BaseURL, cfg.Extraction.APIKey, extraction.TimeoutConfig{
		HTTPTimeout:   cfg.Extraction.Timeout,
		RatePerSecond: cfg.Extraction.RatePerSecond,
	}, zapLogger)

	completenessService := services.NewCompletenessService(database, zapLogger, metricsCollector)
	discrepancyService := services.NewDiscrepancyService(database, store, extractor, zapLogger, metricsCollector)
	documentService := services.NewDocumentService(database, store, completenessService, discrepancyService, zapLogger, metricsCollector)

	renderer := render.NewRenderer(cfg.Render.TemplateDir, cfg.Render.FontPath, store, zapLogger)
	worker := render.NewWorker(renderer, documentService, database, zapLogger, metricsCollector)
	renderQueue := queue.New(database, worker.Handle, queue.Config{
		Workers:      cfg.Render.Workers,
		MaxAttempts:  cfg.Render.MaxAttempts,
		PollInterval: cfg.Render.PollInterval,
	}, zapLogger)
	renderQueue.Start(ctx)

	providers := map[string]esign.Provider{
		"signwell": esign.NewSignWell(cfg.Providers["signwell"]),
		"docuseal": esign.NewDocuSeal(cfg.Providers["docuseal"]),
	}
	pipeline := esign.NewPipeline(database, documentService, zapLogger, metricsCollector)
	signingService := services.NewSigningService(database, renderQueue, providers, cfg, zapLogger, metricsCollector)

	router := api.NewRouter(zapLogger, metricsCollector, documentService, discrepancyService, signingService, pipeline, providers)
	router.SetupRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}
	go func() {
		if err := router.Run(":" + port); err != nil {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("Server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	renderQueue.Stop()

	sqlDB, err := database.DB()
	if err == nil {
		sqlDB.Close()
	}
	zapLogger.Info("Server gracefully stopped")
}
