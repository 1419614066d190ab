package entitlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reasons reported through Metrics.
const (
	DropNoListeners   = "no_listeners"
	DropNotFound      = "not_found"
	DropNoTransitions = "no_transitions"
	DropUnknownAction = "unknown_action"
	DropStalePhase    = "stale_phase"
	DropCancelled     = "cancelled"

	SkipTerminal         = "terminal"
	SkipAlreadyScheduled = "already_scheduled"
	SkipCancelled        = "cancelled"

	FailureError   = "error"
	FailureTimeout = "timeout"
	FailurePanic   = "panic"
)

// Metrics observes engine outcomes, including the silent paths.
type Metrics interface {
	EventProcessed(kind EventKind, took time.Duration)
	EventDropped(reason string)
	ListenerFailed(callback, reason string)
	PhaseScheduled()
	PhaseScheduleSkipped(reason string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) EventProcessed(EventKind, time.Duration) {}
func (NopMetrics) EventDropped(string)                     {}
func (NopMetrics) ListenerFailed(string, string)           {}
func (NopMetrics) PhaseScheduled()                         {}
func (NopMetrics) PhaseScheduleSkipped(string)             {}

// PrometheusMetrics exports engine metrics under the "entitlement" namespace.
type PrometheusMetrics struct {
	processed        *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	dropped          *prometheus.CounterVec
	listenerFailures *prometheus.CounterVec
	scheduled        prometheus.Counter
	skipped          *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors with reg, reusing collectors
// that are already registered. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	const ns = "entitlement"
	m := &PrometheusMetrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_processed_total",
			Help:      "Ready events fully processed, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "event_processing_seconds",
			Help:      "Time spent processing a ready event, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_dropped_total",
			Help:      "Ready events dropped without dispatch, by reason.",
		}, []string{"reason"}),
		listenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listener_failures_total",
			Help:      "Listener callbacks that failed, timed out or panicked.",
		}, []string{"callback", "reason"}),
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "phase_events_scheduled_total",
			Help:      "Phase events persisted for future delivery.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "phase_schedule_skipped_total",
			Help:      "Scheduling passes that persisted nothing, by reason.",
		}, []string{"reason"}),
	}

	var err error
	if m.processed, err = register(reg, m.processed); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.dropped, err = register(reg, m.dropped); err != nil {
		return nil, err
	}
	if m.listenerFailures, err = register(reg, m.listenerFailures); err != nil {
		return nil, err
	}
	if m.scheduled, err = register(reg, m.scheduled); err != nil {
		return nil, err
	}
	if m.skipped, err = register(reg, m.skipped); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PrometheusMetrics) EventProcessed(kind EventKind, took time.Duration) {
	m.processed.WithLabelValues(string(kind)).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(took.Seconds())
}

func (m *PrometheusMetrics) EventDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) ListenerFailed(callback, reason string) {
	m.listenerFailures.WithLabelValues(callback, reason).Inc()
}

func (m *PrometheusMetrics) PhaseScheduled() {
	m.scheduled.Inc()
}

func (m *PrometheusMetrics) PhaseScheduleSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

// register returns the already registered collector when c duplicates one,
// so several engines can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register entitlement metric: %w", err)
	}
	return c, nil
}
