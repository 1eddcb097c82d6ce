package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/stoopdata/nyc-collision-etl/internal/adapter/http"
	kafkaadapter "github.com/stoopdata/nyc-collision-etl/internal/adapter/kafka"
	"github.com/stoopdata/nyc-collision-etl/internal/adapter/opendata"
	"github.com/stoopdata/nyc-collision-etl/internal/adapter/sqlite"
	"github.com/stoopdata/nyc-collision-etl/internal/config"
	"github.com/stoopdata/nyc-collision-etl/internal/observability"
	"github.com/stoopdata/nyc-collision-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher := opendata.NewClient(cfg.DataDir, cfg.HTTPTimeout, logger)
	store := sqlite.NewStore(cfg.DataDir, logger)

	// Summary publishing is feature-flagged via PUBLISH_ENABLED / KAFKA_BROKERS.
	var publisher pipeline.SummaryPublisher
	var writer *kafkaadapter.Writer
	if cfg.PublishEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("summary publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("summary publishing disabled")
	}

	p := pipeline.New(cfg, fetcher, store, publisher, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The operational listener is optional; the job runs headless without it.
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("pipeline run failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
