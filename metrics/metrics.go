// Package metrics exposes Prometheus collectors for webhook and delivery activity.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blessing"

// Metrics groups the service collectors. A nil *Metrics is a no-op.
type Metrics struct {
	events           *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	textSources      *prometheus.CounterVec
}

// MustNew registers the collectors with reg, reusing ones already registered.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook events dispatched, by event type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "deliveries_total",
			Help:      "Image generation requests, by result.",
		}, []string{"result"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent generating, delivering and cleaning up one image.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"result"}),
		textSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "text_source_total",
			Help:      "Where the overlaid blessing text came from.",
		}, []string{"source"}),
	}
	m.events = register(reg, m.events)
	m.deliveries = register(reg, m.deliveries)
	m.deliveryDuration = register(reg, m.deliveryDuration)
	m.textSources = register(reg, m.textSources)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// IncEvent counts one dispatched webhook event.
func (m *Metrics) IncEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// ObserveDelivery records the outcome of one generation request.
func (m *Metrics) ObserveDelivery(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(result).Inc()
	m.deliveryDuration.WithLabelValues(result).Observe(d.Seconds())
}

// IncTextSource counts the origin of the text; empty means the user typed it.
func (m *Metrics) IncTextSource(source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "user"
	}
	m.textSources.WithLabelValues(source).Inc()
}
