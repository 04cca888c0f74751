package handler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors exported on /metrics.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	loads    *prometheus.CounterVec
	records  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stub",
			Name:      "collection_loads_total",
			Help:      "Collections loaded from the backing source, by result.",
		}, []string{"result"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stub",
			Name:      "collection_loaded_records",
			Help:      "Records read from the backing source when a collection was loaded.",
		}, []string{"collection"}),
	}
	reg.MustRegister(m.requests, m.duration, m.loads, m.records)
	return m
}

func (m *Metrics) observeRequest(method, route, code string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, code).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveLoad matches the store.WithLoadHook signature.
func (m *Metrics) ObserveLoad(name string, records int, err error) {
	if err != nil {
		m.loads.WithLabelValues("error").Inc()
		return
	}
	m.loads.WithLabelValues("ok").Inc()
	m.records.WithLabelValues(name).Set(float64(records))
}
