package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "activity_aggregation_duration_sec",
	Help:    "Duration of history aggregations",
	Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
}, []string{"mode"})

var aggregationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "activity_aggregations",
	Help: "Number of aggregations run, by outcome",
}, []string{"mode", "outcome"})

var messagesScanned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "activity_messages_scanned",
	Help: "Number of archived messages folded into aggregations",
}, []string{"mode"})

var channelsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "activity_channels_skipped",
	Help: "Number of channels left out of aggregations",
}, []string{"reason"})
