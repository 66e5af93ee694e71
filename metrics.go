package strata

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the request metrics recorded by its middleware.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

// NewMetrics creates the request metrics and registers them with reg. A nil
// reg means prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Requests currently being handled",
			},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.InFlight)
	return m
}

// Middleware records count, duration and in-flight requests. The status
// label is the status the response will be sent with, including for errors
// returned by inner middleware.
func (m *Metrics) Middleware() Middleware {
	return func(ctx *Context, next Next) error {
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		start := time.Now()
		err := next()

		status := ctx.Status()
		if err != nil {
			status = responseStatus(err)
		}

		m.RequestsTotal.WithLabelValues(ctx.Method(), strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(ctx.Method()).Observe(time.Since(start).Seconds())
		return err
	}
}
