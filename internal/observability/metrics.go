package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ride_dispatch"

var (
	RidesRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rides_requested_total", Help: "Ride requests accepted by the engine"},
		[]string{"mode", "vehicle_class"},
	)
	MatchesTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "matches_total", Help: "Total number of driver assignments"})
	DriverRejections = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "driver_rejections_total", Help: "Simulated driver rejections"})
	NoDriverTotal    = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "no_driver_total", Help: "Requests that ended without a driver"},
		[]string{"reason"},
	)
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "match_latency_seconds", Help: "Match latency seconds"})

	RidesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rides_completed_total", Help: "Rides settled at completion"},
		[]string{"mode"},
	)
	FareAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fare_amount",
		Help:      "Settled fare distribution",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
	})
	DriversByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "drivers", Help: "Registered drivers by status"},
		[]string{"status"},
	)

	DriverUpdatesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "driver_updates_consumed_total", Help: "Driver update messages read from Kafka"},
		[]string{"result"},
	)

	NotifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notify_failures_total", Help: "Observer deliveries that errored or panicked"},
		[]string{"observer"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
