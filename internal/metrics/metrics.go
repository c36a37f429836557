// Package metrics exposes Prometheus instrumentation for the accounts
// service. All methods are safe to call on a nil receiver so metrics can be
// disabled by simply not constructing them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors for the accounts service.
type Metrics struct {
	registry *prometheus.Registry

	loginAttempts        *prometheus.CounterVec
	registrations        prometheus.Counter
	protectionViolations prometheus.Counter
	directoryAccounts    prometheus.Gauge
}

// New creates and registers the service collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modfusion",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modfusion",
			Name:      "registrations_total",
			Help:      "Successful account registrations.",
		}),
		protectionViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modfusion",
			Name:      "protection_violations_total",
			Help:      "Rejected attempts to delete or demote the protected admin.",
		}),
		directoryAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "modfusion",
			Name:      "directory_accounts",
			Help:      "Number of accounts in the directory.",
		}),
	}

	registry.MustRegister(
		m.loginAttempts,
		m.registrations,
		m.protectionViolations,
		m.directoryAccounts,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLogin counts a login attempt with the given outcome.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordRegistration counts a successful registration.
func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

// RecordProtectionViolation counts a rejected protected-admin mutation.
func (m *Metrics) RecordProtectionViolation() {
	if m == nil {
		return
	}
	m.protectionViolations.Inc()
}

// SetDirectorySize records the current number of accounts.
func (m *Metrics) SetDirectorySize(n int) {
	if m == nil {
		return
	}
	m.directoryAccounts.Set(float64(n))
}
