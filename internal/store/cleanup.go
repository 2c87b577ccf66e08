package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/metno/netcdf-ondemand/internal/domain"
)

// Cleanup removes the downloaded archive and any extraction leftovers for a
// product from the request's scratch directory: every entry prefixed by the
// raw product name except the final .nc artifact. Idempotent. Errors are
// logged and swallowed; the artifact is already safely in place and a
// half-finished cleanup must not fail the resolution.
func (r *Resolver) Cleanup(p domain.Product) {
	entries, err := os.ReadDir(r.scratchDir)
	if err != nil {
		r.logger.Warn("cleanup: cannot read scratch directory",
			"dir", r.scratchDir, "error", err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, p.Name) || name == p.ArtifactName() {
			continue
		}
		path := filepath.Join(r.scratchDir, name)
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("cleanup: failed to remove entry", "path", path, "error", err)
			continue
		}
		r.logger.Debug("cleanup: removed entry", "path", path)
	}
}
