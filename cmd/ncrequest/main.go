// Command ncrequest runs a single conversion request in-process and prints
// the rendered report, without going through Kafka.
//
// Usage:
//
//	ncrequest \
//	  -products S2A_MSIL1C_20230615T101031_N0509_R022_T32TQM_20230615T121152 \
//	  -email someone@example.org
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/metno/netcdf-ondemand/internal/adapter/colhub"
	"github.com/metno/netcdf-ondemand/internal/adapter/safe"
	"github.com/metno/netcdf-ondemand/internal/config"
	"github.com/metno/netcdf-ondemand/internal/domain"
	"github.com/metno/netcdf-ondemand/internal/observability"
	"github.com/metno/netcdf-ondemand/internal/pipeline"
	"github.com/metno/netcdf-ondemand/internal/store"
)

func main() {
	products := flag.String("products", "", "comma-separated list of product names to serve as NetCDF")
	email := flag.String("email", "", "comma-separated list of report recipients")
	requestID := flag.String("request-id", "", "request ID (generated when omitted)")
	flag.Parse()

	if *products == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*products, *email, *requestID); code != 0 {
		os.Exit(code)
	}
}

func run(products, email, requestID string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting() // unregistered; nothing scrapes a one-shot run

	downloader := colhub.NewClient(
		cfg.ColhubURL, cfg.ColhubUser, cfg.ColhubPassword,
		cfg.ColhubTimeout, cfg.CatalogCacheSize, logger,
	)

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
		downloader,
		safe.NewExtractor(logger),
		safe.NewToolConverter(cfg.ConvertS1Cmd, cfg.ConvertS2Cmd, logger),
		logger, metrics,
	)

	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep := processor.ProcessRequest(ctx, domain.ConversionRequest{
		ID:         requestID,
		Products:   splitList(products),
		Recipients: splitList(email),
		ReceivedAt: domain.Now(),
	})

	fmt.Println(rep.Body)

	if len(rep.Links) == 0 && len(rep.Failures) > 0 {
		return 1
	}
	return 0
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
