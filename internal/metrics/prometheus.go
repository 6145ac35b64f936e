// Package metrics provides Prometheus metrics for the bridge
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcomes used as the "outcome" label
const (
	OutcomeSuccess        = "success"
	OutcomeError          = "error"
	OutcomeNotImplemented = "not_implemented"
	OutcomeDropped        = "dropped"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Channel metrics
	MethodCalls      *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	EventsSent       *prometheus.CounterVec
	DroppedCalls     *prometheus.CounterVec
	OutboxDepth      prometheus.Gauge

	// Instance metrics
	LiveAds *prometheus.GaugeVec

	// Auction metrics
	AuctionsTotal   *prometheus.CounterVec
	AuctionDuration *prometheus.HistogramVec
	BidPrice        *prometheus.HistogramVec
	CircuitState    prometheus.Gauge

	// Tracker metrics
	TrackerPings *prometheus.CounterVec

	// HTTP transport metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
// A nil registerer means prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "owbridge"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		MethodCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "method_calls_total",
				Help:      "Inbound method channel calls by route and outcome",
			},
			[]string{"route", "outcome"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent handling one inbound call",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"route"},
		),
		EventsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_sent_total",
				Help:      "Outward channel events by method",
			},
			[]string{"method"},
		),
		DroppedCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_calls_total",
				Help:      "Per-instance calls dropped because the ad id is not registered",
			},
			[]string{"route"},
		),
		OutboxDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_depth",
				Help:      "Outward events waiting to be delivered",
			},
		),
		LiveAds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_ads",
				Help:      "Ad clients currently registered",
			},
			[]string{"format"},
		),
		AuctionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auctions_total",
				Help:      "Total number of auctions by format and status",
			},
			[]string{"format", "status"},
		),
		AuctionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auction_duration_seconds",
				Help:      "Auction duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, .75, 1, 1.5, 2, 3, 5},
			},
			[]string{"format"},
		),
		BidPrice: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bid_price",
				Help:      "Winning bid price distribution",
				Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 20, 50},
			},
			[]string{"format", "partner"},
		),
		CircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "auction_circuit_breaker_state",
				Help:      "Auction endpoint circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		TrackerPings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracker_pings_total",
				Help:      "Notification URL pings by kind and status",
			},
			[]string{"kind", "status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.MethodCalls,
		m.DispatchDuration,
		m.EventsSent,
		m.DroppedCalls,
		m.OutboxDepth,
		m.LiveAds,
		m.AuctionsTotal,
		m.AuctionDuration,
		m.BidPrice,
		m.CircuitState,
		m.TrackerPings,
		m.RequestsTotal,
		m.RequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a Prometheus HTTP handler for a specific registry
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordCall records one inbound method call
func (m *Metrics) RecordCall(route, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.MethodCalls.WithLabelValues(route, outcome).Inc()
	m.DispatchDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordDropped records a per-instance call for an unknown ad id
func (m *Metrics) RecordDropped(route string) {
	if m == nil {
		return
	}
	m.DroppedCalls.WithLabelValues(route).Inc()
}

// RecordEvent records an outward event
func (m *Metrics) RecordEvent(method string) {
	if m == nil {
		return
	}
	m.EventsSent.WithLabelValues(method).Inc()
}

// SetOutboxDepth sets the outward queue depth
func (m *Metrics) SetOutboxDepth(n int) {
	if m == nil {
		return
	}
	m.OutboxDepth.Set(float64(n))
}

// AdRegistered increments the live ad gauge
func (m *Metrics) AdRegistered(format string) {
	if m == nil {
		return
	}
	m.LiveAds.WithLabelValues(format).Inc()
}

// AdUnregistered decrements the live ad gauge
func (m *Metrics) AdUnregistered(format string) {
	if m == nil {
		return
	}
	m.LiveAds.WithLabelValues(format).Dec()
}

// RecordAuction records auction metrics
func (m *Metrics) RecordAuction(format, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AuctionsTotal.WithLabelValues(format, status).Inc()
	m.AuctionDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordBid records the winning bid of an auction
func (m *Metrics) RecordBid(format, partner string, price float64) {
	if m == nil {
		return
	}
	m.BidPrice.WithLabelValues(format, partner).Observe(price)
}

// SetCircuitState sets the auction circuit breaker state metric
func (m *Metrics) SetCircuitState(state string) {
	if m == nil {
		return
	}
	var value float64
	switch state {
	case "closed":
		value = 0
	case "open":
		value = 1
	case "half-open":
		value = 2
	}
	m.CircuitState.Set(value)
}

// RecordTrackerPing records a notification URL ping
func (m *Metrics) RecordTrackerPing(kind string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.TrackerPings.WithLabelValues(kind, status).Inc()
}

// RecordHTTPRequest records an HTTP transport request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
