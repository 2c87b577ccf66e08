package safe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/metno/netcdf-ondemand/internal/domain"
)

// ToolConverter runs the external SAFE-to-NetCDF conversion engines, one per
// platform family. It implements domain.Converter.
type ToolConverter struct {
	s1Cmd  string
	s2Cmd  string
	logger *slog.Logger
}

// NewToolConverter creates a converter invoking the given engine commands.
func NewToolConverter(s1Cmd, s2Cmd string, logger *slog.Logger) *ToolConverter {
	return &ToolConverter{
		s1Cmd:  s1Cmd,
		s2Cmd:  s2Cmd,
		logger: logger,
	}
}

// Convert invokes the platform-matched engine on the extracted product and
// returns the artifact path after verifying the engine produced it.
func (c *ToolConverter) Convert(ctx context.Context, product domain.Product, inDir, outDir string) (string, error) {
	command := c.s1Cmd
	if strings.HasPrefix(product.Platform, "S2") {
		command = c.s2Cmd
	}

	cmd := exec.CommandContext(ctx, command,
		"--product", product.Name,
		"--indir", inDir,
		"--outdir", outDir,
	)
	c.logger.Debug("running conversion engine", "product", product.Name, "command", command)

	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("conversion engine %s: %w: %s", command, err, tail(out, 512))
	}

	artifactPath := filepath.Join(outDir, product.ArtifactName())
	if _, err := os.Stat(artifactPath); err != nil {
		return "", fmt.Errorf("conversion engine %s reported success but %s is missing", command, product.ArtifactName())
	}
	return artifactPath, nil
}

// tail returns the last n bytes of engine output for error messages.
func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
