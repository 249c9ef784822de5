package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for curator.
type Metrics struct {
	config MetricsConfig

	// Reconciliation metrics
	resourcesCreated *prometheus.CounterVec
	reconcilePasses  *prometheus.CounterVec

	// Scheduler metrics
	tasksCreated    prometheus.Counter
	tasksDeleted    prometheus.Counter
	triggerFirings  *prometheus.CounterVec

	// Notification metrics
	notificationsSent    *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "curator"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resourcesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_created_total",
				Help:      "Total number of remote resource create calls that succeeded",
			},
			[]string{"kind"},
		),
		reconcilePasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_passes_total",
				Help:      "Total number of reconciliation passes by outcome",
			},
			[]string{"kind", "outcome"},
		),
		tasksCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_tasks_created_total",
				Help:      "Total number of scheduler tasks created at version 1",
			},
		),
		tasksDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_tasks_deleted_total",
				Help:      "Total number of scheduler tasks deleted",
			},
		),
		triggerFirings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_trigger_firings_total",
				Help:      "Total number of trigger-loop workflow invocations",
			},
			[]string{"result"},
		),
		notificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notifications delivered by transition",
			},
			[]string{"notifier", "transition"},
		),
		notificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Total number of notification sink failures",
			},
			[]string{"notifier"},
		),
	}

	registry.MustRegister(
		m.resourcesCreated,
		m.reconcilePasses,
		m.tasksCreated,
		m.tasksDeleted,
		m.triggerFirings,
		m.notificationsSent,
		m.notificationFailures,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ResourceCreated records a successful remote create call.
func (m *Metrics) ResourceCreated(kind string) {
	if m != nil && m.resourcesCreated != nil {
		m.resourcesCreated.WithLabelValues(kind).Inc()
	}
}

// ReconcilePass records the outcome of one reconciliation pass.
func (m *Metrics) ReconcilePass(kind, outcome string) {
	if m != nil && m.reconcilePasses != nil {
		m.reconcilePasses.WithLabelValues(kind, outcome).Inc()
	}
}

// TaskCreated records the first version of a scheduler task.
func (m *Metrics) TaskCreated() {
	if m != nil && m.tasksCreated != nil {
		m.tasksCreated.Inc()
	}
}

// TaskDeleted records a scheduler task deletion.
func (m *Metrics) TaskDeleted() {
	if m != nil && m.tasksDeleted != nil {
		m.tasksDeleted.Inc()
	}
}

// TriggerFired records a trigger-loop invocation result.
func (m *Metrics) TriggerFired(result string) {
	if m != nil && m.triggerFirings != nil {
		m.triggerFirings.WithLabelValues(result).Inc()
	}
}

// NotificationSent records a delivered notification.
func (m *Metrics) NotificationSent(notifier, transition string) {
	if m != nil && m.notificationsSent != nil {
		m.notificationsSent.WithLabelValues(notifier, transition).Inc()
	}
}

// NotificationFailed records a sink delivery failure.
func (m *Metrics) NotificationFailed(notifier string) {
	if m != nil && m.notificationFailures != nil {
		m.notificationFailures.WithLabelValues(notifier).Inc()
	}
}
