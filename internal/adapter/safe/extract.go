// Package safe handles the SAFE side of production: unpacking downloaded
// archives and invoking the external SAFE-to-NetCDF conversion engines.
package safe

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Extractor unpacks SAFE zip archives. It implements domain.ArchiveExtractor.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an archive extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractArchive unpacks archivePath into destDir.
func (e *Extractor) ExtractArchive(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", filepath.Base(archivePath), err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	e.logger.Debug("archive extracted", "archive", filepath.Base(archivePath), "entries", len(r.File))
	return nil
}

func extractEntry(f *zip.File, destDir string) error {
	// Reject entries that would escape the destination directory.
	dest := filepath.Join(destDir, filepath.Clean(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal entry path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
