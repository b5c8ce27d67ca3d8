// Package metrics records store activity as Prometheus metrics through the
// lifecycle hooks of a store.
//
//	collector := metrics.NewCollector("todo")
//	collector.MustRegister(prometheus.DefaultRegisterer)
//	store := rxstore.New(reduce, initial, mws, rxstore.WithHooks(collector.Hooks()))
package metrics

import (
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the metrics of every store it is hooked into. Series are
// labelled by store name.
type Collector struct {
	activations  *prometheus.CounterVec
	active       *prometheus.GaugeVec
	actions      *prometheus.CounterVec
	foldDuration *prometheus.HistogramVec
	faults       *prometheus.CounterVec
}

// NewCollector creates the metrics under namespace (e.g. "rxstore").
func NewCollector(namespace string) *Collector {
	return &Collector{
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activations_total",
				Help:      "Total number of store activations",
			},
			[]string{"store"},
		),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_activations",
				Help:      "Number of activations currently running",
			},
			[]string{"store"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of actions folded",
			},
			[]string{"store", "action_type"},
		),
		foldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fold_duration_seconds",
				Help:      "Duration of reducer calls",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"store"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "faults_total",
				Help:      "Total number of activations stopped by a fault",
			},
			[]string{"store", "kind"},
		),
	}
}

// Collectors lists the underlying Prometheus collectors.
func (c *Collector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.activations, c.active, c.actions, c.foldDuration, c.faults}
}

// Register registers every metric with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range c.Collectors() {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register that panics on error.
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.Collectors()...)
}

// Hooks returns the lifecycle hooks feeding the collector.
func (c *Collector) Hooks() domain.Hooks {
	return domain.Hooks{
		OnActivate: func(e *domain.ActivationEvent) {
			c.activations.WithLabelValues(e.Store).Inc()
			c.active.WithLabelValues(e.Store).Inc()
		},
		OnTransition: func(e *domain.TransitionEvent) {
			c.actions.WithLabelValues(e.Store, e.ActionType).Inc()
			c.foldDuration.WithLabelValues(e.Store).Observe(e.Duration.Seconds())
		},
		OnTeardown: func(e *domain.TeardownEvent) {
			c.active.WithLabelValues(e.Store).Dec()
			if e.Reason != nil {
				kind := string(domain.KindOf(e.Reason))
				if kind == "" {
					kind = "unknown"
				}
				c.faults.WithLabelValues(e.Store, kind).Inc()
			}
		},
	}
}
