package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_sync", Name: "trips_requested_total", Help: "Total trip requests accepted"})
	NoDriverTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_sync", Name: "no_driver_total", Help: "Trip requests failed for lack of an eligible driver"})
	DriversOnline  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "trip_sync", Name: "drivers_online", Help: "Number of online drivers"})

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_sync", Name: "transitions_total", Help: "Trip state transition attempts"},
		[]string{"event", "outcome"},
	)
	RouteEstimates = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_sync", Name: "route_estimates_total", Help: "Route estimation calls"},
		[]string{"outcome"},
	)
	ObserverEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_sync", Name: "observer_events_total", Help: "Change events delivered to role observers"},
		[]string{"role"},
	)
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_sync", Name: "decode_failures_total", Help: "Change payloads dropped because they failed to decode"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_sync", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip_sync",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
