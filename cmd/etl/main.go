package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/chart"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/air-quality-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/air-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	files := make([]csvfile.YearFile, len(cfg.YearFiles))
	for i, yf := range cfg.YearFiles {
		files[i] = csvfile.YearFile{Year: yf.Year, Path: yf.Path, HeaderRow: cfg.HeaderRow(yf.Year)}
	}
	source := csvfile.NewSource(cfg.MetadataPath, files)

	transformer := pipeline.NewTransformer(pipeline.TransformOptions{
		TimestampFormat: cfg.TimestampFormat,
		Merge: domain.MergeOptions{
			MinStations: cfg.MinCommonStations,
			Policy:      cfg.MergePolicy,
		},
		Report: domain.ReportOptions{
			Threshold:    cfg.Threshold,
			RankYear:     cfg.RankYear,
			RankK:        cfg.RankK,
			ChosenYears:  cfg.ChosenYears,
			ChosenCities: cfg.ChosenCities,
		},
	}, logger)

	sinks := []pipeline.Sink{{Name: "csv", Loader: csvfile.NewReportWriter(cfg.OutputDir, logger)}}

	var store *sqlite.Store
	if cfg.SQLitePath != "" {
		store, err = sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite store", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Loader: store})
	}
	if cfg.ChartsEnabled {
		sinks = append(sinks, pipeline.Sink{Name: "chart", Loader: chart.NewRenderer(filepath.Join(cfg.OutputDir, "charts"), logger)})
	}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: writer})
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaReportTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(source, transformer, sinks, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the ETL once; the server keeps reporting its outcome until shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	<-done
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("sqlite close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
