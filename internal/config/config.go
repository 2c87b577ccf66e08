package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Storage tiers.
	OperationalRoot     string
	ScratchRoot         string // per-request directories are created beneath it
	PoolRoot            string // defaults to ScratchRoot
	OperationalKeepDays int
	ScratchKeepDays     int

	// External access bases for the two THREDDS instances.
	OnDemandTHREDDSBase    string
	OperationalTHREDDSBase string

	// Request transport.
	KafkaBrokers      []string
	KafkaRequestTopic string
	KafkaReportTopic  string
	KafkaGroupID      string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	MaxParallelProducts int

	// Datahub (colhub) download configuration.
	ColhubURL        string
	ColhubUser       string
	ColhubPassword   string
	ColhubTimeout    time.Duration
	CatalogCacheSize int

	// External conversion engines, one per platform family.
	ConvertS1Cmd string
	ConvertS2Cmd string
}

// Load reads configuration from environment variables, applying defaults
// where unset. Missing or invalid storage roots are the only startup-fatal
// conditions beyond malformed values.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	colhubTimeout, err := parseDuration("COLHUB_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}

	operationalDays, err := parsePositiveInt("OPERATIONAL_KEEP_DAYS", 90)
	if err != nil {
		return nil, err
	}
	scratchDays, err := parsePositiveInt("SCRATCH_KEEP_DAYS", 14)
	if err != nil {
		return nil, err
	}
	maxParallel, err := parsePositiveInt("MAX_PARALLEL_PRODUCTS", 4)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CATALOG_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	scratchRoot := os.Getenv("SCRATCH_ROOT")

	cfg := &Config{
		OperationalRoot:     os.Getenv("OPERATIONAL_ROOT"),
		ScratchRoot:         scratchRoot,
		PoolRoot:            envOrDefault("POOL_ROOT", scratchRoot),
		OperationalKeepDays: operationalDays,
		ScratchKeepDays:     scratchDays,

		OnDemandTHREDDSBase:    envOrDefault("ONDEMAND_THREDDS_BASE", "https://nbstds.met.no/thredds/dodsC/NetCDF_ondemand"),
		OperationalTHREDDSBase: envOrDefault("OPERATIONAL_THREDDS_BASE", "https://nbstds.met.no/thredds/dodsC/NBS"),

		KafkaBrokers:      parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRequestTopic: envOrDefault("KAFKA_REQUEST_TOPIC", "netcdf-conversion-requests"),
		KafkaReportTopic:  envOrDefault("KAFKA_REPORT_TOPIC", "netcdf-conversion-reports"),
		KafkaGroupID:      envOrDefault("KAFKA_GROUP_ID", "netcdf-ondemand"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MaxParallelProducts: maxParallel,

		ColhubURL:        envOrDefault("COLHUB_URL", "https://colhub.met.no"),
		ColhubUser:       os.Getenv("COLHUB_USER"),
		ColhubPassword:   os.Getenv("COLHUB_PASSWORD"),
		ColhubTimeout:    colhubTimeout,
		CatalogCacheSize: cacheSize,

		ConvertS1Cmd: envOrDefault("CONVERT_S1_CMD", "s1-to-netcdf"),
		ConvertS2Cmd: envOrDefault("CONVERT_S2_CMD", "s2-to-netcdf"),
	}

	if err := validateRoot("OPERATIONAL_ROOT", cfg.OperationalRoot); err != nil {
		return nil, err
	}
	if err := validateRoot("SCRATCH_ROOT", cfg.ScratchRoot); err != nil {
		return nil, err
	}
	if err := validateRoot("POOL_ROOT", cfg.PoolRoot); err != nil {
		return nil, err
	}
	if cfg.ScratchKeepDays >= cfg.OperationalKeepDays {
		return nil, errors.New("SCRATCH_KEEP_DAYS must be shorter than OPERATIONAL_KEEP_DAYS")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if _, err := url.Parse(cfg.ColhubURL); err != nil {
		return nil, fmt.Errorf("invalid COLHUB_URL: %w", err)
	}

	return cfg, nil
}

// validateRoot requires the storage root to be set and to exist as a directory.
func validateRoot(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", name)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %s is not a directory", name, path)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
