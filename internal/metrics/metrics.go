// Package metrics exposes Prometheus counters for chore transitions,
// notification delivery, router access changes and scheduled sweeps.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "choregate"

type Metrics struct {
	registry *prometheus.Registry

	choreTransitions *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	accessChanges    *prometheus.CounterVec
	sweepRuns        *prometheus.CounterVec
	sweepDuration    *prometheus.HistogramVec
	choresSpawned    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		choreTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chore_transitions_total",
			Help:      "Chore lifecycle transitions by kind.",
		}, []string{"transition"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications persisted by type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_deliveries_total",
			Help:      "Out-of-band email delivery attempts by result.",
		}, []string{"result"}),
		accessChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_changes_total",
			Help:      "Internet access grant and revoke attempts by result.",
		}, []string{"action", "result"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Scheduled sweep firings by outcome.",
		}, []string{"sweep", "outcome"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of scheduled sweeps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sweep"}),
		choresSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_chores_spawned_total",
			Help:      "Chore instances spawned from recurring templates.",
		}),
	}
	reg.MustRegister(
		m.choreTransitions, m.notifications, m.deliveries, m.accessChanges,
		m.sweepRuns, m.sweepDuration, m.choresSpawned,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ChoreTransition(transition string) {
	if m == nil {
		return
	}
	m.choreTransitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) NotificationCreated(notifType string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notifType).Inc()
}

// Delivery records an email attempt; result is sent, failed or skipped.
func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) AccessChange(action, result string) {
	if m == nil {
		return
	}
	m.accessChanges.WithLabelValues(action, result).Inc()
}

func (m *Metrics) SweepRun(sweep string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sweepRuns.WithLabelValues(sweep, outcome).Inc()
	m.sweepDuration.WithLabelValues(sweep).Observe(d.Seconds())
}

func (m *Metrics) ChoresSpawned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.choresSpawned.Add(float64(n))
}
