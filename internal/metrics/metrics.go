// Package metrics collects and exposes Prometheus metrics for the gate and
// guard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts gate and guard outcomes. It satisfies gate.Metrics and
// guard.Metrics.
type Collector struct {
	registry *prometheus.Registry

	logins         *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	guardDecisions *prometheus.CounterVec
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portalgate_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portalgate_verifications_total",
			Help: "Background token verifications by outcome.",
		}, []string{"outcome"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portalgate_guard_decisions_total",
			Help: "Route guard decisions by outcome.",
		}, []string{"decision"}),
	}

	c.registry.MustRegister(c.logins, c.verifications, c.guardDecisions)
	return c
}

// LoginAttempt counts a login attempt.
func (c *Collector) LoginAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// Verification counts a background verification outcome.
func (c *Collector) Verification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

// GuardDecision counts a route guard decision.
func (c *Collector) GuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// Handler returns the HTTP handler exposing the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
