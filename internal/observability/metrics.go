package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "peilbesluit"

// Status label values.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// Metrics holds the Prometheus counters and gauges of one conversion run.
// A run is a short lived batch job, so the metrics live in their own
// registry and are written to a node-exporter textfile at the end.
type Metrics struct {
	registry *prometheus.Registry

	Rows          *prometheus.CounterVec // labels: status={accepted,rejected}
	Areas         *prometheus.CounterVec // labels: status={accepted,rejected,failed}
	EventsWritten prometheus.Counter
	RegimeDefects prometheus.Counter

	RunInfo       *prometheus.GaugeVec // labels: run_id
	RunDuration   prometheus.Gauge
	LastRunTime   prometheus.Gauge
	LastRunFailed prometheus.Gauge
}

// NewMetrics creates all run metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Input rows by validation outcome.",
		}, []string{"status"}),
		Areas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "areas_total",
			Help:      "Areas (pgid) by outcome.",
		}, []string{"status"}),
		EventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_written_total",
			Help:      "Events written to the FEWS-PI xml.",
		}),
		RegimeDefects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regime_defects_total",
			Help:      "Areas skipped because a regime failed the closure check.",
		}),
		RunInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Always 1; carries the id of the last run.",
		}, []string{"run_id"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last conversion run.",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last conversion run finished.",
		}),
		LastRunFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failed",
			Help:      "1 when the last conversion run ended with an error, 0 otherwise.",
		}),
	}

	m.registry.MustRegister(
		m.Rows,
		m.Areas,
		m.EventsWritten,
		m.RegimeDefects,
		m.RunInfo,
		m.RunDuration,
		m.LastRunTime,
		m.LastRunFailed,
	)

	return m
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(runID string, started, finished time.Time, runErr error) {
	m.RunInfo.WithLabelValues(runID).Set(1)
	m.RunDuration.Set(finished.Sub(started).Seconds())
	m.LastRunTime.Set(float64(finished.Unix()))
	if runErr != nil {
		m.LastRunFailed.Set(1)
	} else {
		m.LastRunFailed.Set(0)
	}
}

// Registry exposes the registry, e.g. for a push gateway.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in Prometheus text format. The file is
// replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
