// Package store implements the tiered artifact resolver: the decision logic
// that locates a converted NetCDF artifact across the request scratch
// directory, the operational archive, and the sibling request pool.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/metno/netcdf-ondemand/internal/domain"
	"github.com/metno/netcdf-ondemand/internal/observability"
)

// Config binds the shared tier roots and retention windows. One Config is
// shared by all resolvers; per-request state lives on the Resolver.
type Config struct {
	OperationalRoot     string
	PoolRoot            string
	OperationalKeepDays int
	ScratchKeepDays     int

	// THREDDS bases the access URLs are derived from.
	OnDemandBase    string
	OperationalBase string
}

// Resolver resolves products for a single conversion request. It owns no
// state beyond configuration and the request's scratch directory; every
// Resolve call is answered from the current filesystem contents.
type Resolver struct {
	cfg        Config
	scratchDir string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewResolver creates a resolver bound to one request's scratch directory.
func NewResolver(cfg Config, scratchDir string, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		cfg:        cfg,
		scratchDir: scratchDir,
		logger:     logger,
		metrics:    metrics,
	}
}

// ScratchDir returns the request's scratch directory.
func (r *Resolver) ScratchDir() string {
	return r.scratchDir
}

// ScratchPath returns the canonical scratch-tier path for a product. The
// scratch tier is flat: the download, extraction and conversion tooling all
// work in the single request directory.
func (r *Resolver) ScratchPath(p domain.Product) string {
	return filepath.Join(r.scratchDir, p.ArtifactName())
}

// Resolve checks the tiers in priority order and short-circuits on the first
// usable copy. The check-then-copy sequence is not atomic across concurrent
// requests; production is idempotent, so a lost race only duplicates work.
func (r *Resolver) Resolve(ctx context.Context, p domain.Product) (domain.ResolutionOutcome, error) {
	if out, ok := r.resolveScratch(p); ok {
		return out, nil
	}

	out, ok, err := r.resolveOperational(p)
	if err != nil || ok {
		return out, err
	}

	out, ok, err = r.resolvePool(ctx, p)
	if err != nil || ok {
		return out, err
	}

	r.metrics.Resolutions.WithLabelValues("none", "miss").Inc()
	r.logger.Info("artifact not found in any tier", "product", p.Name)
	return domain.ResolutionOutcome{}, nil
}

// resolveScratch serves the request's own scratch copy, touching it so the
// sweeper's retention clock restarts.
func (r *Resolver) resolveScratch(p domain.Product) (domain.ResolutionOutcome, bool) {
	path := r.ScratchPath(p)
	if _, err := os.Stat(path); err != nil {
		return domain.ResolutionOutcome{}, false
	}

	r.touch(path)
	r.metrics.Resolutions.WithLabelValues(string(domain.TierScratch), "hit").Inc()
	r.logger.Info("artifact found in request scratch", "product", p.Name, "path", path)
	return r.hit(domain.TierScratch, path, r.cfg.OnDemandBase, p), true
}

// resolveOperational applies the retention policy to an operational-tier hit.
// Expired copies are treated as absent even though the file still exists.
func (r *Resolver) resolveOperational(p domain.Product) (domain.ResolutionOutcome, bool, error) {
	path := p.CanonicalPath(r.cfg.OperationalRoot)
	info, err := os.Stat(path)
	if err != nil {
		return domain.ResolutionOutcome{}, false, nil
	}

	age := domain.AgeInDays(info.ModTime())
	decision := domain.EvaluateRetention(age, r.cfg.OperationalKeepDays, r.cfg.ScratchKeepDays)
	r.logger.Info("artifact found in operational archive",
		"product", p.Name, "age_days", age, "decision", decision.String())

	switch decision {
	case domain.RetentionExpired:
		r.metrics.Resolutions.WithLabelValues(string(domain.TierOperational), "expired").Inc()
		return domain.ResolutionOutcome{}, false, nil

	case domain.RetentionMirror:
		dest := r.ScratchPath(p)
		if err := copyFile(path, dest); err != nil {
			return domain.ResolutionOutcome{}, false, fmt.Errorf("mirror %s into scratch: %w", p.Name, err)
		}
		r.metrics.Resolutions.WithLabelValues(string(domain.TierOperational), "hit").Inc()
		return r.hit(domain.TierOperational, dest, r.cfg.OnDemandBase, p), true, nil

	default:
		r.metrics.Resolutions.WithLabelValues(string(domain.TierOperational), "hit").Inc()
		return r.hit(domain.TierOperational, path, r.cfg.OperationalBase, p), true, nil
	}
}

// resolvePool searches the scratch directories of other live requests. A hit
// is copied into this request's scratch and the sibling copy is touched: it
// is being reused, so its retention is extended in place too.
func (r *Resolver) resolvePool(ctx context.Context, p domain.Product) (domain.ResolutionOutcome, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.ResolutionOutcome{}, false, err
	}

	start := time.Now()
	found, ok := findInPool(r.cfg.PoolRoot, p.ArtifactName(), r.scratchDir)
	r.metrics.PoolScanDuration.Observe(time.Since(start).Seconds())
	if !ok {
		return domain.ResolutionOutcome{}, false, nil
	}

	dest := r.ScratchPath(p)
	if err := copyFile(found, dest); err != nil {
		return domain.ResolutionOutcome{}, false, fmt.Errorf("copy %s from sibling pool: %w", p.Name, err)
	}
	r.touch(found)

	r.metrics.Resolutions.WithLabelValues(string(domain.TierPool), "hit").Inc()
	r.logger.Info("artifact found in sibling request pool",
		"product", p.Name, "sibling_path", found)
	return r.hit(domain.TierPool, dest, r.cfg.OnDemandBase, p), true, nil
}

func (r *Resolver) hit(tier domain.Tier, path, base string, p domain.Product) domain.ResolutionOutcome {
	modTime := domain.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	return domain.ResolutionOutcome{
		Found: true,
		Ref: domain.ArtifactRef{
			Tier:      tier,
			Path:      path,
			ModTime:   modTime,
			AccessURL: p.AccessURL(base),
		},
	}
}

// touch updates a file's mtime to extend its lifetime under the age-based
// sweeper. Failures are logged only; the artifact itself is intact.
func (r *Resolver) touch(path string) {
	now := domain.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		r.logger.Warn("failed to touch artifact", "path", path, "error", err)
	}
}

// copyFile copies src to dest, creating dest's directory as needed. The copy
// goes through a temporary name and a rename so a concurrent reader never
// observes a partial artifact at the canonical path.
func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".copy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
