package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/LubangaD/lorowandatapipiline/internal/adapter/http"
	kafkaadapter "github.com/LubangaD/lorowandatapipiline/internal/adapter/kafka"
	"github.com/LubangaD/lorowandatapipiline/internal/adapter/postgres"
	"github.com/LubangaD/lorowandatapipiline/internal/config"
	"github.com/LubangaD/lorowandatapipiline/internal/domain"
	"github.com/LubangaD/lorowandatapipiline/internal/observability"
	"github.com/LubangaD/lorowandatapipiline/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := postgres.NewSink(ctx, cfg.PostgresURL, logger)
	if err != nil {
		logger.Error("failed to connect sink", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	reader := kafkaadapter.NewReader(cfg, logger)

	// Aggregate republishing is feature-flagged via KAFKA_AGGREGATE_TOPIC.
	var publisher pipeline.AggregatePublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaAggregateTopic != "" {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("aggregate publishing enabled", "topic", cfg.KafkaAggregateTopic)
	} else {
		logger.Info("aggregate publishing disabled")
	}

	retrySink := pipeline.NewRetrySink(sink, cfg.SinkMaxRetries, logger, metrics)
	scorer := domain.NewScorer(cfg.AnomalyThreshold, cfg.AnomalyMinBaselineDays, cfg.AnomalyWindowDays)

	p := pipeline.New(reader, retrySink, publisher, logger, metrics, pipeline.Options{
		Thresholds:     cfg.Thresholds,
		Location:       cfg.Location,
		LatenessWindow: cfg.LatenessWindow,
		HistoryDepth:   cfg.HistoryDepth,
		WorkerCount:    cfg.WorkerCount,
		BatchSize:      cfg.BatchSize,
		Scorer:         scorer,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start QC pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Wait for the pipeline to drain and flush open aggregates.
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not drain before shutdown deadline")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
