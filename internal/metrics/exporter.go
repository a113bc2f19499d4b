// Package metrics exposes collection activity and decoded telemetry to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sdnpulse/sdnpulse/internal/parse"
	"github.com/sdnpulse/sdnpulse/internal/poller"
	"github.com/sdnpulse/sdnpulse/internal/snapshot"
)

const namespace = "sdnpulse"

// Exporter records poller activity. It implements poller.Recorder.
type Exporter struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	sourceUp        *prometheus.GaugeVec
	sourceAttempts  *prometheus.GaugeVec
	cycles          prometheus.Counter
	cyclesSkipped   prometheus.Counter
	cycleDuration   prometheus.Histogram
	sourcesFailed   prometheus.Gauge
	lastSnapshot    prometheus.Gauge

	queueBacklog    *prometheus.GaugeVec
	queueDrops      *prometheus.GaugeVec
	queueOverlimits *prometheus.GaugeVec
	queueCongested  *prometheus.GaugeVec
	dpiProtocols    *prometheus.GaugeVec
}

var _ poller.Recorder = (*Exporter)(nil)

// NewExporter initializes the collectors on a private registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()

	e := &Exporter{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts per source and result",
		}, []string{"source_id", "result"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempt_duration_seconds",
			Help:      "Duration of single fetch attempts",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"source_id"}),
		sourceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_up",
			Help:      "1 if the last fetch of the source succeeded",
		}, []string{"source_id"}),
		sourceAttempts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_last_attempts",
			Help:      "Attempts used by the last fetch of the source",
		}, []string{"source_id"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed collection cycles",
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Ticks skipped because the previous cycle was still running",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of collection cycles",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		sourcesFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources_failed",
			Help:      "Sources in error in the last snapshot",
		}),
		lastSnapshot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_snapshot_timestamp_seconds",
			Help:      "Collection time of the last snapshot",
		}),
		queueBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_backlog_bytes",
			Help:      "Queue backlog reported by tc",
		}, []string{"source_id"}),
		queueDrops: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_drops",
			Help:      "Dropped packets reported by tc",
		}, []string{"source_id"}),
		queueOverlimits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_overlimits",
			Help:      "Overlimit events reported by tc",
		}, []string{"source_id"}),
		queueCongested: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_congestion_predicted",
			Help:      "1 if the congestion rule fired for the queue",
		}, []string{"source_id"}),
		dpiProtocols: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dpi_protocol_packets",
			Help:      "Packets per detected protocol in the last DPI capture",
		}, []string{"source_id", "protocol"}),
	}

	reg.MustRegister(
		e.attempts, e.attemptDuration, e.sourceUp, e.sourceAttempts,
		e.cycles, e.cyclesSkipped, e.cycleDuration, e.sourcesFailed, e.lastSnapshot,
		e.queueBacklog, e.queueDrops, e.queueOverlimits, e.queueCongested, e.dpiProtocols,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// Handler returns the HTTP handler for /metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) ObserveAttempt(sourceID string, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	e.attempts.WithLabelValues(sourceID, result).Inc()
	e.attemptDuration.WithLabelValues(sourceID).Observe(elapsed.Seconds())
}

func (e *Exporter) ObserveOutcome(o poller.Outcome) {
	up := 0.0
	if o.OK() {
		up = 1
	}
	e.sourceUp.WithLabelValues(o.SourceID).Set(up)
	e.sourceAttempts.WithLabelValues(o.SourceID).Set(float64(o.Attempts))
}

// ObserveCycle records cycle totals and copies decoded queue and DPI
// payloads into gauges.
func (e *Exporter) ObserveCycle(snap snapshot.Snapshot) {
	e.cycles.Inc()
	e.cycleDuration.Observe(snap.Duration.Seconds())
	e.sourcesFailed.Set(float64(snap.Failed()))
	e.lastSnapshot.Set(float64(snap.CollectedAt.Unix()))

	e.dpiProtocols.Reset()
	for id, r := range snap.BySource {
		if !r.OK() {
			continue
		}
		switch data := r.Data.(type) {
		case parse.QueueStats:
			e.queueBacklog.WithLabelValues(id).Set(float64(data.Backlog))
			e.queueDrops.WithLabelValues(id).Set(float64(data.Drops))
			e.queueOverlimits.WithLabelValues(id).Set(float64(data.Overlimits))
			e.queueCongested.WithLabelValues(id).Set(float64(data.CongestionPredicted))
		case parse.DPISummary:
			for proto, n := range data.ProtocolCounts {
				e.dpiProtocols.WithLabelValues(id, proto).Set(float64(n))
			}
		}
	}
}

func (e *Exporter) CycleSkipped() {
	e.cyclesSkipped.Inc()
}
