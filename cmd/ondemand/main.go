// Command ondemand runs the NetCDF on-demand conversion service: it consumes
// conversion requests from Kafka, resolves or produces each product's NetCDF
// artifact across the storage tiers, and publishes per-request reports for
// the downstream mailer. It also serves health, readiness, metrics, and a
// synchronous conversion endpoint over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/metno/netcdf-ondemand/internal/adapter/colhub"
	httpadapter "github.com/metno/netcdf-ondemand/internal/adapter/http"
	kafkaadapter "github.com/metno/netcdf-ondemand/internal/adapter/kafka"
	"github.com/metno/netcdf-ondemand/internal/adapter/safe"
	"github.com/metno/netcdf-ondemand/internal/config"
	"github.com/metno/netcdf-ondemand/internal/observability"
	"github.com/metno/netcdf-ondemand/internal/pipeline"
	"github.com/metno/netcdf-ondemand/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	downloader := colhub.NewClient(
		cfg.ColhubURL, cfg.ColhubUser, cfg.ColhubPassword,
		cfg.ColhubTimeout, cfg.CatalogCacheSize, logger,
	)
	extractor := safe.NewExtractor(logger)
	converter := safe.NewToolConverter(cfg.ConvertS1Cmd, cfg.ConvertS2Cmd, logger)

	processor := pipeline.NewProcessor(
		store.Config{
			OperationalRoot:     cfg.OperationalRoot,
			PoolRoot:            cfg.PoolRoot,
			OperationalKeepDays: cfg.OperationalKeepDays,
			ScratchKeepDays:     cfg.ScratchKeepDays,
			OnDemandBase:        cfg.OnDemandTHREDDSBase,
			OperationalBase:     cfg.OperationalTHREDDSBase,
		},
		cfg.ScratchRoot,
		cfg.MaxParallelProducts,
		downloader, extractor, converter,
		logger, metrics,
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, processor, writer, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, processor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start request pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
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
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
