// Package metrics exposes resolution and export counters to Prometheus.
package metrics

import (
	"time"

	"github.com/eleven-am/playbook/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

type Recorder struct {
	ResolveTotal    *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	CacheHitsTotal  *prometheus.CounterVec
	ExportsTotal    *prometheus.CounterVec
	ExportDuration  prometheus.Histogram
}

var _ ports.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the collectors with reg. A nil reg uses the
// default Prometheus registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		ResolveTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_resolve_total",
				Help: "Total number of resolve function executions",
			},
			[]string{"type", "status"},
		),
		ResolveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playbook_resolve_duration_seconds",
				Help:    "Duration of resolve function executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_cache_hits_total",
				Help: "Total number of outputs served without running a resolve function",
			},
			[]string{"layer"},
		),
		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playbook_exports_total",
				Help: "Total number of BioCompute Object exports",
			},
			[]string{"status"},
		),
		ExportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "playbook_export_duration_seconds",
				Help:    "Duration of BioCompute Object exports in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}

func (r *Recorder) ObserveResolve(processType string, duration time.Duration, err error) {
	r.ResolveTotal.WithLabelValues(processType, status(err)).Inc()
	r.ResolveDuration.WithLabelValues(processType).Observe(duration.Seconds())
}

func (r *Recorder) CacheHit(layer string) {
	r.CacheHitsTotal.WithLabelValues(layer).Inc()
}

func (r *Recorder) ObserveExport(duration time.Duration, err error) {
	r.ExportsTotal.WithLabelValues(status(err)).Inc()
	r.ExportDuration.Observe(duration.Seconds())
}
