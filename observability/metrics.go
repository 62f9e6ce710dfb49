package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the visualizer.
type Metrics struct {
	// labels: kind={scalar/random, ..., vector/radial}
	ScenariosGenerated *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	// labels: format={png,svg}
	RenderDuration *prometheus.HistogramVec
	// labels: outcome={hit,miss}
	PointerQueries   *prometheus.CounterVec
	WebsocketClients prometheus.Gauge
}

// NewMetrics creates all visualizer metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScenariosGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldviz",
			Name:      "scenarios_generated_total",
			Help:      "Scenarios generated, by strategy kind.",
		}, []string{"kind"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fieldviz",
			Name:      "generation_duration_seconds",
			Help:      "Duration of a single scenario generation.",
			Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fieldviz",
			Name:      "render_duration_seconds",
			Help:      "Duration of a surface export.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"format"}),
		PointerQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldviz",
			Name:      "pointer_queries_total",
			Help:      "Pointer queries by outcome.",
		}, []string{"outcome"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fieldviz",
			Name:      "websocket_clients",
			Help:      "Number of connected websocket clients.",
		}),
	}

	reg.MustRegister(
		m.ScenariosGenerated,
		m.GenerationDuration,
		m.RenderDuration,
		m.PointerQueries,
		m.WebsocketClients,
	)

	return m
}

// NewMetricsForTesting creates Metrics on a private registry, so tests may build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
