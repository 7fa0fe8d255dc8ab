package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinicore"

// Collector owns every metric the service exports. It satisfies the lab and
// record Metrics interfaces.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	PanelsTotal            *prometheus.CounterVec
	MeasurementsTotal      *prometheus.CounterVec
	TrendsTotal            *prometheus.CounterVec
	RecordsCreatedTotal    prometheus.Counter
	MutationsRejectedTotal *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Requests currently being served.",
		}),

		PanelsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lab",
			Name:      "panels_total",
			Help:      "Lab panels stored, by overall status.",
		}, []string{"status"}),

		MeasurementsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lab",
			Name:      "measurements_classified_total",
			Help:      "Measurements classified, by severity (none when within range).",
		}, []string{"severity"}),

		TrendsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lab",
			Name:      "trends_analyzed_total",
			Help:      "Trend analyses served, by direction.",
		}, []string{"trend"}),

		RecordsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "created_total",
			Help:      "Clinical records created.",
		}),

		MutationsRejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "mutations_rejected_total",
			Help:      "Record updates refused, by reason.",
		}, []string{"reason"}),
	}
}

func (c *Collector) PanelSubmitted(status string) { c.PanelsTotal.WithLabelValues(status).Inc() }
func (c *Collector) MeasurementClassified(severity string) {
	c.MeasurementsTotal.WithLabelValues(severity).Inc()
}
func (c *Collector) TrendAnalyzed(trend string) { c.TrendsTotal.WithLabelValues(trend).Inc() }
func (c *Collector) RecordCreated()             { c.RecordsCreatedTotal.Inc() }
func (c *Collector) MutationRejected(reason string) {
	c.MutationsRejectedTotal.WithLabelValues(reason).Inc()
}

// WatchPool exports database pool gauges read from stats on every scrape.
func (c *Collector) WatchPool(stats func() (acquired, idle, total int32)) {
	gauge := func(name, help string, pick func(a, i, t int32) int32) {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stats()))
		}))
	}
	gauge("pool_acquired_conns", "Connections currently in use.", func(a, _, _ int32) int32 { return a })
	gauge("pool_idle_conns", "Idle connections.", func(_, i, _ int32) int32 { return i })
	gauge("pool_total_conns", "Open connections.", func(_, _, t int32) int32 { return t })
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
