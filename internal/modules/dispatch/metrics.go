package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_requests_total",
			Help: "Matching requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	responsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_driver_responses_total",
			Help: "Driver responses by kind",
		},
		[]string{"response"},
	)

	expansionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_expansions_total",
			Help: "Broadcast expansion passes after full rejection",
		},
	)

	timeToAssign = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_time_to_assign_seconds",
			Help:    "Time from request submission to assignment",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	candidatesPerBroadcast = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_candidates_per_broadcast",
			Help:    "Eligible candidates contacted per broadcast pass",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		},
	)
)
