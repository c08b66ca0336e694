package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK        = "ok"
	resultDuplicate = "duplicate"
	resultMalformed = "malformed"
	resultPoison    = "poison"
	resultInFlight  = "in_flight"
	resultTimeout   = "timeout"
	resultPanic     = "panic"
	resultError     = "error"
)

type processorMetrics struct {
	messages    *prometheus.CounterVec
	batch       prometheus.Histogram
	batchPanics prometheus.Counter
	acked       *prometheus.CounterVec
}

var metrics = sync.OnceValue(func() *processorMetrics {
	return &processorMetrics{
		messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poshub_processor_messages_total",
			Help: "Messages processed, by result.",
		}, []string{"result"}),
		batch: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poshub_processor_batch_seconds",
			Help:    "Wall time of one batch.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		batchPanics: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poshub_processor_batch_failures_total",
			Help: "Batches failed as a whole after an unexpected fault.",
		}),
		acked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poshub_processor_settled_total",
			Help: "Worker settlements against the queue, by action.",
		}, []string{"action"}),
	}
})
