package domain

import "context"

// Downloader fetches a product's raw SAFE archive from the datahub.
type Downloader interface {
	// FetchArchive downloads the archive into destDir and returns its path.
	// If the archive is already present it is reused without a download.
	FetchArchive(ctx context.Context, product Product, destDir string) (string, error)
}

// ArchiveExtractor unpacks a downloaded SAFE archive in place.
type ArchiveExtractor interface {
	ExtractArchive(archivePath, destDir string) error
}

// Converter produces the NetCDF artifact from an extracted SAFE product.
// Implementations select the conversion engine by platform family.
type Converter interface {
	// Convert reads the extracted product from inDir and returns the path of
	// the artifact written to outDir.
	Convert(ctx context.Context, product Product, inDir, outDir string) (string, error)
}
