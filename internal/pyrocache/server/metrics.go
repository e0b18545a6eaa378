package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pyrocache/internal/pyrocache/keyspace"
)

// Prometheus collectors for the server. A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	cmdCount    *prometheus.CounterVec
	cmdDuration *prometheus.HistogramVec
	clients     prometheus.Gauge
}

func NewMetrics(store *keyspace.Store) *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		cmdCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pyrocache_commands_total",
			Help: "Commands processed, by command and outcome.",
		}, []string{"command", "status"}),
		cmdDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pyrocache_command_duration_seconds",
			Help:    "Command latency.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"command"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pyrocache_connected_clients",
			Help: "Open client sessions across every listener.",
		}),
	}

	keys := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pyrocache_keys",
		Help: "Keys currently stored, expired ones not yet purged included.",
	}, func() float64 {
		return float64(store.Len())
	})

	metrics.registry.MustRegister(metrics.cmdCount, metrics.cmdDuration, metrics.clients, keys)
	return metrics
}

func (m *Metrics) observe(command string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.cmdCount.WithLabelValues(command, status).Inc()
	m.cmdDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (m *Metrics) clientConnected() {
	if m != nil {
		m.clients.Inc()
	}
}

func (m *Metrics) clientDisconnected() {
	if m != nil {
		m.clients.Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
