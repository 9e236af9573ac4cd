package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry so several collectors (one per test, one
// per binary) can coexist without duplicate registration panics.
type Collector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	operationsTotal     *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	remindersTotal      *prometheus.CounterVec
}

func NewCollector(serviceName string) *Collector {
	c := &Collector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code", "service"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "service"},
		),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduling_operations_total",
				Help: "Scheduling operations by outcome",
			},
			[]string{"operation", "outcome", "service"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scheduling_operation_duration_seconds",
				Help:    "Duration of scheduling operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"operation", "service"},
		),
		remindersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appointment_reminders_total",
				Help: "Appointment reminders by delivery status",
			},
			[]string{"status", "service"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.operationsTotal,
		c.operationDuration,
		c.remindersTotal,
	)

	return c
}

// RecordOperation records the outcome of a service operation.
func (c *Collector) RecordOperation(operation, outcome string, d time.Duration) {
	c.operationsTotal.WithLabelValues(operation, outcome, c.serviceName).Inc()
	c.operationDuration.WithLabelValues(operation, c.serviceName).Observe(d.Seconds())
}

func (c *Collector) RecordReminder(sent bool) {
	status := "sent"
	if !sent {
		status = "failed"
	}
	c.remindersTotal.WithLabelValues(status, c.serviceName).Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode), c.serviceName).Inc()
	c.httpRequestDuration.WithLabelValues(method, route, c.serviceName).Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
