package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/quake-feed-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-feed-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/pipeline"
	"github.com/couchcryptid/quake-feed-service/internal/province"
	"github.com/couchcryptid/quake-feed-service/internal/retrieval"
	"github.com/couchcryptid/quake-feed-service/internal/settings"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	region := domain.Turkey
	region.FallbackRadiusKm = cfg.CircleRadiusKm

	client := usgs.NewClient(cfg.USGSBaseURL, cfg.USGSTimeout, cfg.USGSLimit, metrics, logger)
	planner := retrieval.NewPlanner(client, region, clock, metrics, logger)
	session := retrieval.NewSession(planner, clock, logger)
	provinces := province.Load(logger)

	var checks httpadapter.ReadinessChecks

	// Settings live in PostgreSQL when DATABASE_URL is set, in memory otherwise.
	var store settings.Store = settings.NewMemoryStore()
	var pgStore *settings.PostgresStore
	if cfg.DatabaseURL != "" {
		db, err := settings.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open settings database", "error", err)
			os.Exit(1)
		}
		pgStore = settings.NewPostgresStore(db)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Error("failed to migrate settings database", "error", err)
			os.Exit(1)
		}
		store = pgStore
		checks = append(checks, pgStore)
		logger.Info("settings store: postgres")
	} else {
		logger.Info("settings store: memory")
	}

	// Kafka publishing is feature-flagged via KAFKA_ENABLED.
	var (
		writer *kafkaadapter.Writer
		poller *pipeline.Poller
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, clock, logger)
		poller, err = pipeline.New(planner, writer, clock, logger, metrics, pipeline.Options{
			Interval:      cfg.PollInterval,
			Selection:     domain.Selection{TimeIndex: cfg.PollWindowIndex, Magnitudes: cfg.PollMagnitudes},
			SeenCacheSize: cfg.SeenCacheSize,
		})
		if err != nil {
			logger.Error("failed to create poller", "error", err)
			os.Exit(1)
		}
		checks = append(checks, poller)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "interval", cfg.PollInterval)
	} else {
		logger.Info("kafka publishing disabled")
	}

	api := httpadapter.NewAPI(planner, session, store, provinces, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poller.
	if poller != nil {
		go func() {
			if err := poller.Run(ctx); err != nil {
				logger.Error("poller error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	session.Close()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if pgStore != nil {
		if err := pgStore.Close(); err != nil {
			logger.Error("settings database close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
