package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Биржевые метрики
	ExchangeRequestsTotal   *prometheus.CounterVec
	ExchangeRequestDuration *prometheus.HistogramVec

	// Ордера
	OrdersCreatedTotal         *prometheus.CounterVec
	OrdersForwardFailuresTotal *prometheus.CounterVec
}

// New creates the collectors. Pass nil to get unregistered collectors (tests).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests in flight",
			},
		),
		ExchangeRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_requests_total",
				Help: "Total number of order placement calls to the exchange",
			},
			[]string{"venue", "status"},
		),
		ExchangeRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "exchange_request_duration_seconds",
				Help: "Duration of order placement calls to the exchange in seconds",
			},
			[]string{"venue"},
		),
		OrdersCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Orders durably stored",
			},
			[]string{"type", "side"},
		),
		OrdersForwardFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_forward_failures_total",
				Help: "Orders stored but not accepted by the exchange",
			},
			[]string{"venue"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.HTTPRequestsInFlight,
			m.ExchangeRequestsTotal,
			m.ExchangeRequestDuration,
			m.OrdersCreatedTotal,
			m.OrdersForwardFailuresTotal,
			// Стандартные метрики Go
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return m
}
