// Package logger keeps the metrics of a harvest run: records accepted and
// rejected per source, abandoned sources and the run duration.
//
// Log lines themselves go through the zap global logger; this package only
// owns the prometheus registry. A run is short-lived, so the registry is
// written once to a node_exporter textfile instead of being scraped:
//
//	m := logger.NewMetrics()
//	m.Accepted("200")
//	m.Rejected("200", "bad_date")
//	m.ObserveRun(time.Since(start))
//	_ = m.WriteToTextfile("/var/lib/node_exporter/fresk.prom")
package logger

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"
)

const namespace = "fresk"

// Metrics tracks the counters of one run. All methods are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
}

// NewMetrics creates a tracker backed by its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Records accepted by the normalizer.",
		}, []string{"source"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Raw events rejected, by reason.",
		}, []string{"source", "reason"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_failed_total",
			Help:      "Sources abandoned on a fatal error.",
		}, []string{"source"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	m.registry.MustRegister(m.accepted, m.rejected, m.failed, m.duration, m.lastRun)
	return m
}

// Accepted counts one record kept for source.
func (m *Metrics) Accepted(source string) {
	m.accepted.WithLabelValues(source).Inc()
}

// Rejected counts one raw event of source dropped for reason.
func (m *Metrics) Rejected(source, reason string) {
	m.rejected.WithLabelValues(source, reason).Inc()
}

// SourceFailed counts a source whose adapter returned an error.
func (m *Metrics) SourceFailed(source string) {
	m.failed.WithLabelValues(source).Inc()
}

// ObserveRun records the run duration and stamps the finish time.
func (m *Metrics) ObserveRun(d time.Duration) {
	m.duration.Set(d.Seconds())
	m.lastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes every metric in the text exposition format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "logger: write metrics to %s", path)
	}
	return nil
}

// Snapshot flattens the registry into "name{label=value,...}" keys, sorted
// label order, for logging at the end of a run.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, eris.Wrap(err, "logger: gather metrics")
	}
	out := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			out[seriesName(f.GetName(), metric.GetLabel())] = value(metric)
		}
	}
	return out, nil
}

func seriesName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+"="+l.GetValue())
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
