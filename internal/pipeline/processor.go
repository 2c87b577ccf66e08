package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metno/netcdf-ondemand/internal/domain"
	"github.com/metno/netcdf-ondemand/internal/observability"
	"github.com/metno/netcdf-ondemand/internal/report"
	"github.com/metno/netcdf-ondemand/internal/store"
)

// Processor turns one conversion request into a report: it resolves each
// product across the storage tiers, runs the production pipeline on misses,
// and aggregates per-product outcomes. Failures are always scoped to a
// single product; the batch always completes.
type Processor struct {
	storeCfg    store.Config
	scratchRoot string
	maxParallel int

	downloader domain.Downloader
	extractor  domain.ArchiveExtractor
	converter  domain.Converter

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewProcessor creates a Processor with the given collaborators.
func NewProcessor(
	storeCfg store.Config,
	scratchRoot string,
	maxParallel int,
	downloader domain.Downloader,
	extractor domain.ArchiveExtractor,
	converter domain.Converter,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Processor {
	return &Processor{
		storeCfg:    storeCfg,
		scratchRoot: scratchRoot,
		maxParallel: maxParallel,
		downloader:  downloader,
		extractor:   extractor,
		converter:   converter,
		logger:      logger,
		metrics:     metrics,
	}
}

// ProcessRequest handles one request end to end and returns its report.
func (p *Processor) ProcessRequest(ctx context.Context, req domain.ConversionRequest) domain.Report {
	logger := p.logger.With("request_id", req.ID)
	logger.Info("processing conversion request",
		"products", len(req.Products), "recipients", len(req.Recipients))

	scratchDir := filepath.Join(p.scratchRoot, req.ID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		logger.Error("cannot create request scratch directory", "dir", scratchDir, "error", err)
		return report.Build(req, nil, req.Products, p.storeCfg.OperationalKeepDays, p.storeCfg.ScratchKeepDays)
	}

	resolver := store.NewResolver(p.storeCfg, scratchDir, logger, p.metrics)

	var (
		mu       sync.Mutex
		links    []string
		failures []string
	)

	var g errgroup.Group
	g.SetLimit(p.maxParallel)
	for _, name := range req.Products {
		g.Go(func() error {
			link, err := p.processProduct(ctx, resolver, name, logger)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("product failed", "product", name, "error", err)
				failures = append(failures, name)
				return nil
			}
			links = append(links, link)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-product errors are collected, never returned

	// Parallel completion order is nondeterministic; keep reports stable.
	sort.Strings(links)
	sort.Strings(failures)

	p.metrics.RequestsProcessed.Inc()
	logger.Info("conversion request done", "served", len(links), "failed", len(failures))
	return report.Build(req, links, failures, p.storeCfg.OperationalKeepDays, p.storeCfg.ScratchKeepDays)
}

// processProduct resolves a single product, producing it on a miss. A second
// miss after production is a hard failure for that product.
func (p *Processor) processProduct(ctx context.Context, resolver *store.Resolver, name string, logger *slog.Logger) (string, error) {
	product, err := domain.ParseProductName(name)
	if err != nil {
		p.metrics.ParseFailures.Inc()
		return "", err
	}

	outcome, err := resolver.Resolve(ctx, product)
	if err != nil {
		return "", err
	}
	if outcome.Found {
		resolver.Cleanup(product)
		return outcome.Ref.AccessURL, nil
	}

	if err := p.produce(ctx, product, resolver.ScratchDir(), logger); err != nil {
		p.metrics.ProductionFailures.Inc()
		resolver.Cleanup(product)
		return "", err
	}

	outcome, err = resolver.Resolve(ctx, product)
	resolver.Cleanup(product)
	if err != nil {
		return "", err
	}
	if !outcome.Found {
		p.metrics.ProductionFailures.Inc()
		return "", fmt.Errorf("product %s: artifact missing after production", name)
	}
	logger.Info("downloaded and converted product", "product", name)
	return outcome.Ref.AccessURL, nil
}

// produce runs the external production pipeline: download the SAFE archive,
// extract it, convert to NetCDF. All three are collaborators; the resolver
// itself performs no network I/O and spawns no subprocesses.
func (p *Processor) produce(ctx context.Context, product domain.Product, scratchDir string, logger *slog.Logger) error {
	start := time.Now()

	archivePath, err := p.downloader.FetchArchive(ctx, product, scratchDir)
	if err != nil {
		return fmt.Errorf("fetch archive: %w", err)
	}
	logger.Debug("archive downloaded", "product", product.Name, "path", archivePath)

	if err := p.extractor.ExtractArchive(archivePath, scratchDir); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}
	logger.Debug("archive extracted", "product", product.Name)

	artifactPath, err := p.converter.Convert(ctx, product, scratchDir, scratchDir)
	if err != nil {
		return fmt.Errorf("convert to netcdf: %w", err)
	}

	p.metrics.ProductionDuration.Observe(time.Since(start).Seconds())
	logger.Info("conversion to netcdf done",
		"product", product.Name, "artifact", artifactPath,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}
