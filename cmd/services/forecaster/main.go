package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pifses/mlpipeline/internal/analytics/anomaly"
	"github.com/pifses/mlpipeline/internal/analytics/forecast"
	"github.com/pifses/mlpipeline/internal/cache"
	"github.com/pifses/mlpipeline/internal/config"
	grpcserver "github.com/pifses/mlpipeline/internal/grpc"
	"github.com/pifses/mlpipeline/internal/handlers"
	"github.com/pifses/mlpipeline/internal/history"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metadata"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/queue"
	"github.com/pifses/mlpipeline/internal/router"
	"github.com/pifses/mlpipeline/internal/services"
	"github.com/pifses/mlpipeline/internal/tracing"
	"github.com/pifses/mlpipeline/internal/training"
	"github.com/pifses/mlpipeline/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Forecaster service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, utils.ServiceVersion)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", "error", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Forecast engine
	registry := forecast.NewRegistry()
	if err := registry.Load(forecast.NewTrendModel(), forecast.NewPatternModel()); err != nil {
		logger.Fatal("Failed to load models", "error", err)
	}
	weights := forecast.Weights{Trend: cfg.Forecast.Weights.Trend, Pattern: cfg.Forecast.Weights.Pattern}
	ensemble, err := forecast.NewEnsemble(weights, cfg.Forecast.ConfidenceBand)
	if err != nil {
		logger.Fatal("Invalid ensemble configuration", "error", err)
	}
	logger.Info("Models loaded", "models", registry.Names(), "weights", weights)

	source, closeHistory, err := newHistorySource(ctx, cfg.History)
	if err != nil {
		logger.Fatal("Failed to initialize history source", "error", err)
	}
	defer closeHistory()
	logger.Info("History source ready", "backend", cfg.History.Backend, "lru_size", cfg.History.LRUSize)

	logger.Info("Connecting to forecast cache", "backend", cfg.Cache.Backend, "addr", cfg.Cache.Addr)
	forecastCache, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to create forecast cache", "error", err)
	}
	defer func() { _ = forecastCache.Close() }()
	if err := pingCache(ctx, forecastCache); err != nil {
		// Requests still succeed without the cache
		logger.Warn("Forecast cache unreachable at startup", "error", err)
	}

	logger.Info("Connecting to metadata store", "backend", cfg.Metadata.Backend, "endpoints", cfg.Metadata.Endpoints)
	metaStore, err := metadata.New(cfg.Metadata)
	if err != nil {
		logger.Fatal("Failed to connect to metadata store", "error", err)
	}
	defer func() { _ = metaStore.Close() }()

	logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
	queueClient, err := queue.NewQueue(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "error", err)
	}
	defer func() { _ = queueClient.Close() }()

	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	// Services
	m := metrics.New()
	jobs := training.NewJobStore(metaStore)
	modelStatus := services.NewModelStatusService(logger, registry, weights, metaStore)
	if err := modelStatus.Persist(ctx); err != nil {
		logger.Warn("Failed to persist model status", "error", err)
	}
	healthService := services.NewHealthService(registry, forecastCache)

	h := handlers.New(logger, handlers.Services{
		Forecast: services.NewForecastService(logger, registry, ensemble, source, forecastCache, m,
			services.ForecastOptions{
				CacheTTL:    cfg.Cache.TTL,
				HistoryDays: cfg.Forecast.HistoryDays,
				MaxHorizon:  cfg.Forecast.MaxHorizon,
			}),
		Anomaly:     services.NewAnomalyService(logger, anomaly.NewIQRDetector(cfg.Anomaly.Multiplier), source, m),
		Training:    services.NewTrainingService(logger, jobs, queueClient, cfg.Queue.Subject, cfg.Training, m),
		ModelStatus: modelStatus,
		Health:      healthService,
	}, handlers.Defaults{
		Horizon:      cfg.Forecast.DefaultHorizon,
		LookbackDays: cfg.Training.DefaultLookback,
		WindowSize:   cfg.Anomaly.DefaultWindow,
	})

	app := router.New(logger, h, m, *cfg)

	// Training worker
	var worker *training.Worker
	if cfg.Training.RunWorker {
		worker = training.NewWorker(queueClient, cfg.Queue.Subject, jobs,
			training.NewStubTrainer(utils.StubTrainingDelay), utils.TrainingJobTimeout)
		if err := worker.Start(); err != nil {
			logger.Fatal("Failed to start training worker", "error", err)
		}
	}

	// gRPC health
	var grpcDone chan struct{}
	if addr := cfg.GetGRPCAddress(); addr != "" {
		healthServer := grpcserver.NewHealthServer(addr, healthService.ModelsLoaded, logger)
		if err := healthServer.Listen(); err != nil {
			logger.Fatal("Failed to start gRPC health server", "error", err)
		}
		grpcDone = make(chan struct{})
		go func() {
			defer close(grpcDone)
			if err := healthServer.Start(ctx); err != nil {
				logger.Error("gRPC health server error", "error", err)
			}
		}()
	}

	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// gRPC reports NOT_SERVING first so traffic drains away
	cancel()
	if grpcDone != nil {
		<-grpcDone
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if worker != nil {
		if err := worker.Stop(); err != nil {
			logger.Warn("Failed to stop training worker", "error", err)
		}
	}
	registry.UnloadAll()

	logger.Info("Server exited")
}

// newHistorySource builds the configured history backend, wrapped in the
// LRU cache when lru_size is positive.
func newHistorySource(ctx context.Context, cfg config.HistoryConfig) (history.Source, func(), error) {
	var (
		source history.Source
		closer = func() {}
	)

	switch cfg.Backend {
	case "postgres":
		pool, err := history.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		source = history.NewPostgres(pool)
		closer = pool.Close
	default:
		source = history.NewSynthetic(cfg.Seed)
	}

	if cfg.LRUSize > 0 {
		cached, err := history.NewCached(source, cfg.LRUSize, cfg.LRUTTL)
		if err != nil {
			closer()
			return nil, nil, err
		}
		source = cached
	}
	return source, closer, nil
}

func pingCache(ctx context.Context, c cache.ForecastCache) error {
	ctx, cancel := context.WithTimeout(ctx, utils.HealthProbeTimeout)
	defer cancel()
	return c.Ping(ctx)
}
