package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type queueMetrics struct {
	sent         *prometheus.CounterVec
	received     *prometheus.CounterVec
	acked        *prometheus.CounterVec
	released     *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	redriven     *prometheus.CounterVec
}

func counter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poshub",
		Subsystem: "queue",
		Name:      name,
		Help:      help,
	}, []string{"queue"})
}

var metrics = sync.OnceValue(func() *queueMetrics {
	return &queueMetrics{
		sent:         counter("sent_total", "Messages durably enqueued."),
		received:     counter("received_total", "Deliveries leased to consumers."),
		acked:        counter("acked_total", "Deliveries acknowledged and deleted."),
		released:     counter("released_total", "Deliveries released for redelivery."),
		deadLettered: counter("dead_lettered_total", "Messages moved to the dead-letter queue."),
		redriven:     counter("redriven_total", "Dead letters moved back to their source queue."),
	}
})
