// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vkrpg"

// Purchase results.
const (
	ResultSuccess      = "success"
	ResultUnavailable  = "unavailable"
	ResultBusy         = "busy"
	ResultInsufficient = "insufficient_funds"
	ResultError        = "error"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		},
	)
)

// Economy metrics
var (
	PlayersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_created_total",
			Help:      "Players created on first identity verification.",
		},
	)

	ListingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_listings_created_total",
			Help:      "Market listings created.",
		},
	)

	Purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_purchases_total",
			Help:      "Market purchase attempts by result.",
		},
		[]string{"result"},
	)

	GoldVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_gold_volume_total",
			Help:      "Gold paid by buyers in completed purchases.",
		},
	)

	CommissionSunk = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_commission_sunk_total",
			Help:      "Gold removed from circulation by market commission.",
		},
	)

	PremiumExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "premium_expired_total",
			Help:      "Premium subscriptions cleared by the expiry sweep.",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		},
	)

	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_recovered_total",
			Help:      "Handler panics turned into 500 responses.",
		},
	)
)
