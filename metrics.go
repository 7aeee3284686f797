package main

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "signup"

var (
	backendRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backend_requests_total",
			Help:      "Count of backend API calls by operation and result.",
		},
		[]string{"operation", "result"},
	)
	transitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "workflow_transitions_total",
			Help:      "Count of registration workflow state transitions.",
		},
		[]string{"from", "to"},
	)
	collisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registration_collisions_total",
			Help:      "Count of registrations blocked by an existing account, by colliding field.",
		},
		[]string{"field"},
	)
	activeSessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of registration sessions currently held in memory.",
		},
	)
)

var registerMetrics sync.Once

// RegisterMetrics registers all metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(backendRequestCounter)
		reg.MustRegister(transitionCounter)
		reg.MustRegister(collisionCounter)
		reg.MustRegister(activeSessionsGauge)
	})
}

func RecordBackendRequest(operation, result string) {
	backendRequestCounter.WithLabelValues(operation, result).Inc()
}

func RecordTransition(from, to WorkflowState) {
	transitionCounter.WithLabelValues(from.String(), to.String()).Inc()
}

func RecordCollision(field CollisionField) {
	collisionCounter.WithLabelValues(field.String()).Inc()
}

func SessionStarted() {
	activeSessionsGauge.Inc()
}

func SessionEnded() {
	activeSessionsGauge.Dec()
}
