package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iwvelando/blend-optimizer/internal/blend"
)

// metrics holds the collectors of one handler. Each handler owns a private
// registry so several handlers can coexist in one process.
type metrics struct {
	registry *prometheus.Registry
	solves   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	nodes    prometheus.Histogram
	rejected *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blend_solves_total",
			Help: "Number of optimisation requests solved, by operation and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blend_solve_duration_seconds",
			Help:    "Wall-clock time spent solving optimisation requests.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"operation"}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blend_solve_nodes",
			Help:    "Branch-and-bound nodes explored per solve.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blend_requests_rejected_total",
			Help: "Requests rejected before solving, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.solves,
		m.duration,
		m.nodes,
		m.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observe(res *blend.Result, elapsed time.Duration) {
	op := string(res.Operation)
	m.solves.WithLabelValues(op, res.Status.String()).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	m.nodes.Observe(float64(res.Nodes))
}

func (m *metrics) reject(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}
