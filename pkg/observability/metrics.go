package observability

import (
	"context"
	"net/http"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	fieldsRequired       prometheus.Counter
	transitionsCompleted prometheus.Counter
	transitionsRejected  prometheus.Counter
	previewHits          prometheus.Counter
	previewMisses        prometheus.Counter
}

// NewMetrics creates and registers the engine instruments on a fresh
// registry, including the standard Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		fieldsRequired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adoflow",
			Name:      "transitions_pending_total",
			Help:      "Transitions that paused to collect required fields.",
		}),
		transitionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adoflow",
			Name:      "transitions_completed_total",
			Help:      "State changes accepted by the system of record.",
		}),
		transitionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adoflow",
			Name:      "transitions_rejected_total",
			Help:      "State changes refused by the system of record.",
		}),
		previewHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adoflow",
			Name:      "preview_cache_hits_total",
			Help:      "Preview lookups served from cache.",
		}),
		previewMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adoflow",
			Name:      "preview_cache_misses_total",
			Help:      "Preview lookups that queried the provider.",
		}),
	}

	reg.MustRegister(
		m.fieldsRequired,
		m.transitionsCompleted,
		m.transitionsRejected,
		m.previewHits,
		m.previewMisses,
	)
	return m
}

// Hooks returns lifecycle hooks that count engine events. Merge them with
// other hook consumers via domain.MergeHooks.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFieldsRequired: func(context.Context, *domain.FieldsRequiredEvent) {
			m.fieldsRequired.Inc()
		},
		OnTransitionCompleted: func(context.Context, *domain.TransitionCompletedEvent) {
			m.transitionsCompleted.Inc()
		},
		OnTransitionRejected: func(context.Context, *domain.TransitionRejectedEvent) {
			m.transitionsRejected.Inc()
		},
	}
}

// PreviewObserver returns the hit/miss callbacks for the preview cache.
func (m *Metrics) PreviewObserver() (onHit, onMiss func()) {
	return m.previewHits.Inc, m.previewMisses.Inc
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
