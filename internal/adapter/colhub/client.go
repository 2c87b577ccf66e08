// Package colhub implements the SAFE archive downloader against a
// Copernicus-style datahub (colhub.met.no): an OData catalog query resolves
// the product name to its entry UUID, then the archive body is streamed to
// the request's scratch directory.
package colhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/metno/netcdf-ondemand/internal/domain"
)

// Catalog failures a submitter can act on. Anything else from the hub is an
// unexpected fault, wrapped with its cause for the logs.
var (
	ErrProductNotFound  = errors.New("product not found on datahub")
	ErrAmbiguousProduct = errors.New("more than one dataset matches product name")
)

// Client implements domain.Downloader against the datahub's OData API.
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	catalog    *catalogCache
}

// NewClient creates a datahub client. cacheSize bounds the in-memory cache of
// name-to-UUID catalog lookups.
func NewClient(baseURL, user, password string, timeout time.Duration, cacheSize int, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		user:     user,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		catalog: newCatalogCache(cacheSize),
	}
}

// FetchArchive downloads the product's SAFE archive into destDir and returns
// its path. An archive already present from an earlier attempt is reused.
func (c *Client) FetchArchive(ctx context.Context, product domain.Product, destDir string) (string, error) {
	archivePath := filepath.Join(destDir, product.ArchiveName())
	if _, err := os.Stat(archivePath); err == nil {
		c.logger.Debug("archive already present, skipping download", "path", archivePath)
		return archivePath, nil
	}
	// Some providers emit the alternate .SAFE.zip double extension.
	if alt := filepath.Join(destDir, product.AltArchiveName()); fileExists(alt) {
		c.logger.Debug("archive already present, skipping download", "path", alt)
		return alt, nil
	}

	entryID, err := c.lookupUUID(ctx, product.Name)
	if err != nil {
		return "", err
	}
	c.logger.Debug("resolved product on datahub", "product", product.Name, "uuid", entryID)

	if err := c.download(ctx, entryID, archivePath); err != nil {
		return "", fmt.Errorf("download %s: %w", product.Name, err)
	}
	return archivePath, nil
}

// lookupUUID resolves a product name to its datahub entry UUID, consulting
// the catalog cache first. Only successful lookups are cached so transient
// "not found" responses can be retried.
func (c *Client) lookupUUID(ctx context.Context, name string) (string, error) {
	if id, ok := c.catalog.get(name); ok {
		return id, nil
	}

	q := url.Values{
		"$filter": {fmt.Sprintf("startswith(Name,'%s')", name)},
		"$format": {"json"},
	}
	u := c.baseURL + "/odata/v1/Products?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create catalog request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("catalog query for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("datahub catalog error: status %d: %s", resp.StatusCode, body)
	}

	var catalogResp odataResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalogResp); err != nil {
		return "", fmt.Errorf("decode catalog response: %w", err)
	}

	switch len(catalogResp.D.Results) {
	case 0:
		return "", fmt.Errorf("%s: %w", name, ErrProductNotFound)
	case 1:
		id := catalogResp.D.Results[0].ID
		c.catalog.put(name, id)
		return id, nil
	default:
		return "", fmt.Errorf("%s: %w", name, ErrAmbiguousProduct)
	}
}

// download streams the archive body to destPath via a temporary file, so a
// crashed download never leaves a truncated archive at the expected name.
func (c *Client) download(ctx context.Context, entryID, destPath string) error {
	u := fmt.Sprintf("%s/odata/v1/Products('%s')/$value", c.baseURL, entryID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("datahub download error: status %d: %s", resp.StatusCode, body)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".part-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

func (c *Client) authorize(req *http.Request) {
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OData catalog response types.

type odataResponse struct {
	D odataResults `json:"d"`
}

type odataResults struct {
	Results []odataEntry `json:"results"`
}

type odataEntry struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}
