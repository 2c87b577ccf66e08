package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// on-demand conversion service.
type Metrics struct {
	RequestsProcessed prometheus.Counter
	ReportsPublished  prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Resolver metrics.
	Resolutions      *prometheus.CounterVec // labels: tier={scratch,operational,pool,none}, outcome={hit,miss,expired}
	PoolScanDuration prometheus.Histogram

	// Production metrics.
	ProductionDuration prometheus.Histogram
	ProductionFailures prometheus.Counter
	ParseFailures      prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcdf_ondemand",
			Name:      "requests_processed_total",
			Help:      "Total conversion requests handled.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcdf_ondemand",
			Name:      "reports_published_total",
			Help:      "Total reports published to the notification topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netcdf_ondemand",
			Name:      "pipeline_running",
			Help:      "1 when the request pipeline is active, 0 when shut down.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netcdf_ondemand",
			Name:      "resolutions_total",
			Help:      "Tier lookups by tier and outcome.",
		}, []string{"tier", "outcome"}),
		PoolScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netcdf_ondemand",
			Name:      "pool_scan_duration_seconds",
			Help:      "Duration of sibling-pool directory walks.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ProductionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netcdf_ondemand",
			Name:      "production_duration_seconds",
			Help:      "Duration of a full download-extract-convert cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		ProductionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcdf_ondemand",
			Name:      "production_failures_total",
			Help:      "Total products that could not be produced.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netcdf_ondemand",
			Name:      "parse_failures_total",
			Help:      "Total product names rejected by the parser.",
		}),
	}

	prometheus.MustRegister(
		m.RequestsProcessed,
		m.ReportsPublished,
		m.PipelineRunning,
		m.Resolutions,
		m.PoolScanDuration,
		m.ProductionDuration,
		m.ProductionFailures,
		m.ParseFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RequestsProcessed:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "netcdf_ondemand", Name: "requests_processed_total"}),
		ReportsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "netcdf_ondemand", Name: "reports_published_total"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "netcdf_ondemand", Name: "pipeline_running"}),
		Resolutions:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "netcdf_ondemand", Name: "resolutions_total"}, []string{"tier", "outcome"}),
		PoolScanDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "netcdf_ondemand", Name: "pool_scan_duration_seconds"}),
		ProductionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "netcdf_ondemand", Name: "production_duration_seconds"}),
		ProductionFailures: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "netcdf_ondemand", Name: "production_failures_total"}),
		ParseFailures:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "netcdf_ondemand", Name: "parse_failures_total"}),
	}
}
