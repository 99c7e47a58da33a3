package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/types"
)

var (
	// errRegisterMetric indicates a collector could not be registered.
	errRegisterMetric = errors.New("failed to register metric")
	// errWriteTextfile indicates the textfile export failed.
	errWriteTextfile = errors.New("failed to write metrics textfile")
)

// RegistryStats are the registry counters of the resolver used for a run.
type RegistryStats struct {
	Requests    uint64
	RateLimited uint64
}

// Metric holds data points from one run.
type Metric struct {
	Scanned     int     // Targets that produced a scan result.
	UpToDate    int     // Targets confirmed OK.
	Updatable   int     // Targets flagged UPDATE.
	RateLimited int     // Targets that could not be confirmed.
	NoCompose   int     // Targets without a compose file.
	Updated     int     // Targets whose recreate succeeded.
	Failed      int     // Targets whose recreate failed.
	Requests    uint64  // Registry lookups issued.
	Throttled   uint64  // Registry lookups that hit a rate limit.
	Duration    float64 // Scan duration in seconds.
}

// NewMetric creates a Metric from a run report.
//
// Parameters:
//   - report: Report of the run.
//   - stats: Registry counters for the run.
//
// Returns:
//   - *Metric: New metric instance.
func NewMetric(report *session.Report, stats RegistryStats) *Metric {
	if report == nil {
		return &Metric{Requests: stats.Requests, Throttled: stats.RateLimited}
	}

	return &Metric{
		Scanned:     report.Scanned(),
		UpToDate:    report.Count(types.StatusOK),
		Updatable:   report.Count(types.StatusUpdate),
		RateLimited: report.Count(types.StatusRateLimit),
		NoCompose:   report.Count(types.StatusNoCompose),
		Updated:     len(report.Updated()),
		Failed:      len(report.Failed()),
		Requests:    stats.Requests,
		Throttled:   stats.RateLimited,
		Duration:    report.ScanDuration().Seconds(),
	}
}

// Metrics exposes run metrics.
type Metrics struct {
	registry *prometheus.Registry
	stacks   *prometheus.GaugeVec // Targets per status during the last run.
	scanned  prometheus.Gauge
	updated  prometheus.Gauge
	failed   prometheus.Gauge
	duration prometheus.Gauge
	requests prometheus.Gauge
	limited  prometheus.Gauge
	runs     prometheus.Counter
	skipped  prometheus.Counter
	updates  prometheus.Counter
	failures prometheus.Counter
}

// New creates Metrics on a private registry.
//
// Returns:
//   - *Metrics: Metrics handler.
//   - error: Non-nil if a collector fails to register.
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates Metrics registered with registry.
//
// Parameters:
//   - registry: Registry used for registration and textfile export.
//
// Returns:
//   - *Metrics: Metrics handler.
//   - error: Non-nil if a collector fails to register.
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	metrics := &Metrics{
		registry: registry,
		stacks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ship_stacks",
			Help: "Number of stacks per scan status during the last run",
		}, []string{"status"}),
		scanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ship_stacks_scanned",
			Help: "Number of stacks scanned during the last run",
		}),
		updated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ship_stacks_updated",
			Help: "Number of stacks recreated successfully during the last run",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ship_stacks_failed",
			Help: "Number of stacks whose recreate failed during the last run",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ship_scan_duration_seconds",
			Help: "Duration of the scan phase of the last run",
		}),
		requests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ship_registry_requests",
			Help: "Number of registry lookups issued during the last run",
		}),
		limited: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ship_registry_rate_limited",
			Help: "Number of registry lookups throttled during the last run",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ship_runs_total",
			Help: "Number of runs since ship started",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ship_runs_skipped_total",
			Help: "Number of scheduled runs skipped because a run was still active",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ship_stacks_updated_total",
			Help: "Number of stacks recreated successfully since ship started",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ship_stacks_failed_total",
			Help: "Number of failed stack recreates since ship started",
		}),
	}

	collectors := []prometheus.Collector{
		metrics.stacks,
		metrics.scanned,
		metrics.updated,
		metrics.failed,
		metrics.duration,
		metrics.requests,
		metrics.limited,
		metrics.runs,
		metrics.skipped,
		metrics.updates,
		metrics.failures,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("%w: %w", errRegisterMetric, err)
		}
	}

	return metrics, nil
}

// Observe records the data points of one run.
func (m *Metrics) Observe(metric *Metric) {
	m.runs.Inc()
	m.stacks.WithLabelValues(string(types.StatusOK)).Set(float64(metric.UpToDate))
	m.stacks.WithLabelValues(string(types.StatusUpdate)).Set(float64(metric.Updatable))
	m.stacks.WithLabelValues(string(types.StatusRateLimit)).Set(float64(metric.RateLimited))
	m.stacks.WithLabelValues(string(types.StatusNoCompose)).Set(float64(metric.NoCompose))
	m.scanned.Set(float64(metric.Scanned))
	m.updated.Set(float64(metric.Updated))
	m.failed.Set(float64(metric.Failed))
	m.duration.Set(metric.Duration)
	m.requests.Set(float64(metric.Requests))
	m.limited.Set(float64(metric.Throttled))
	m.updates.Add(float64(metric.Updated))
	m.failures.Add(float64(metric.Failed))
}

// Skip records a scheduled run that did not start.
func (m *Metrics) Skip() {
	m.runs.Inc()
	m.skipped.Inc()
}

// WriteTextfile atomically writes every collector to path in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %w", errWriteTextfile, err)
	}

	return nil
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
