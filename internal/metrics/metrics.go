// Package metrics holds the Prometheus collectors of the service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors.
type Metrics struct {
	Pairings        *prometheus.CounterVec
	Scores          prometheus.Counter
	FanoutDelivered prometheus.Counter
	FanoutDropped   prometheus.Counter
	NotifyFailures  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Pairings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "live_pk",
			Name:      "pairings_total",
			Help:      "PK pairing transitions by outcome (invited, accepted, rejected, ended).",
		}, []string{"outcome"}),
		Scores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "live_pk",
			Name:      "scores_total",
			Help:      "Accepted score updates.",
		}),
		FanoutDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "live_pk",
			Name:      "fanout_delivered_total",
			Help:      "Events queued to subscriber connections.",
		}),
		FanoutDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "live_pk",
			Name:      "fanout_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "live_pk",
			Name:      "notify_failures_total",
			Help:      "Failed deliveries to the external notification sink.",
		}),
	}
	reg.MustRegister(m.Pairings, m.Scores, m.FanoutDelivered, m.FanoutDropped, m.NotifyFailures)
	return m
}

// RegisterGauge exposes a gauge computed on scrape.
func RegisterGauge(reg prometheus.Registerer, name, help string, fn func() float64) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "live_pk",
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) Pairing(outcome string) {
	if m == nil {
		return
	}
	m.Pairings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Score() {
	if m == nil {
		return
	}
	m.Scores.Inc()
}

func (m *Metrics) Fanout(delivered, dropped int) {
	if m == nil {
		return
	}
	m.FanoutDelivered.Add(float64(delivered))
	m.FanoutDropped.Add(float64(dropped))
}

func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
