package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the acquisition counters exported to Prometheus. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	spills       *prometheus.CounterVec
	events       *prometheus.CounterVec
	dropped      prometheus.Counter
	queueLength  prometheus.Gauge
	spectraCount prometheus.Gauge
	binLatency   prometheus.Histogram
}

// NewMetrics registers the acquisition metrics with reg, or with the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		spills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "binner_spills_total",
			Help: "Spills binned, by stream and spill type.",
		}, []string{"stream", "type"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "binner_events_total",
			Help: "Events delivered to the project, by stream.",
		}, []string{"stream"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "binner_spills_dropped_total",
			Help: "Spills lost because the queue was full.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "binner_queue_length",
			Help: "Spills waiting in the queue.",
		}),
		spectraCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "binner_spectra",
			Help: "Spectra in the running project.",
		}),
		binLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "binner_spill_bin_seconds",
			Help:    "Time spent pushing one spill through every spectrum.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
	reg.MustRegister(m.spills, m.events, m.dropped, m.queueLength, m.spectraCount, m.binLatency)
	return m
}

func (m *Metrics) spillBinned(stream string, typ string, events int, took time.Duration) {
	if m == nil {
		return
	}
	m.spills.WithLabelValues(stream, typ).Inc()
	m.events.WithLabelValues(stream).Add(float64(events))
	m.binLatency.Observe(took.Seconds())
}

func (m *Metrics) spillDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) setQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(n))
}

func (m *Metrics) setSpectra(n int) {
	if m == nil {
		return
	}
	m.spectraCount.Set(float64(n))
}
