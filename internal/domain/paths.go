package domain

import (
	"path/filepath"
	"strings"
)

// RelativeDir returns the platform/date-partitioned directory for the
// product, relative to a tier root: <platform>/<year>/<month>/<day> with a
// trailing beam mode segment for Sentinel-1.
func (p Product) RelativeDir() string {
	dir := filepath.Join(
		p.Platform,
		p.Date.Format("2006"),
		p.Date.Format("01"),
		p.Date.Format("02"),
	)
	if p.Mode != "" {
		dir = filepath.Join(dir, p.Mode)
	}
	return dir
}

// CanonicalPath returns the canonical artifact path for the product under a
// partitioned tier root. The raw name is part of the path, so re-requesting
// the same product always resolves to the same stored artifact.
func (p Product) CanonicalPath(root string) string {
	return filepath.Join(root, p.RelativeDir(), p.ArtifactName())
}

// ArtifactName returns the converted NetCDF filename, <name>.nc.
func (p Product) ArtifactName() string {
	return p.Name + ".nc"
}

// ArchiveName returns the downloaded SAFE archive filename, <name>.zip.
func (p Product) ArchiveName() string {
	return p.Name + ".zip"
}

// AltArchiveName returns the alternate archive filename some providers emit,
// <name>.SAFE.zip.
func (p Product) AltArchiveName() string {
	return p.Name + ".SAFE.zip"
}

// AccessURL returns the externally reachable OPeNDAP locator for the
// product's artifact under the given THREDDS base.
func (p Product) AccessURL(base string) string {
	return strings.TrimSuffix(base, "/") + "/" + p.ArtifactName() + ".html"
}
