// Package metrics holds the Prometheus instrumentation for the subscription core.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rentdesk"

type Metrics struct {
	guardDecisions       *prometheus.CounterVec
	verificationDecision *prometheus.CounterVec
	requestsSubmitted    *prometheus.CounterVec
	lifecycleTransitions *prometheus.CounterVec
	adminActions         *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		guardDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "plan_limit",
				Name:      "decisions_total",
				Help:      "Plan-limit guard decisions by feature, plan and outcome.",
			},
			[]string{"feature", "plan", "outcome"},
		),
		verificationDecision: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "verifications_total",
				Help:      "Admin verification decisions on subscription requests.",
			},
			[]string{"action", "plan"},
		),
		requestsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "requests_submitted_total",
				Help:      "Subscription requests submitted for verification.",
			},
			[]string{"kind", "plan", "method"},
		),
		lifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "lifecycle_transitions_total",
				Help:      "Subscription status transitions by source and target status.",
			},
			[]string{"from", "to"},
		),
		adminActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admin",
				Name:      "actions_total",
				Help:      "Organization admin actions.",
			},
			[]string{"action"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration observed at the API layer.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		httpTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled by the API.",
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		m.guardDecisions,
		m.verificationDecision,
		m.requestsSubmitted,
		m.lifecycleTransitions,
		m.adminActions,
		m.httpDuration,
		m.httpTotal,
	)
	return m
}

func (m *Metrics) GuardDecision(feature, plan string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.guardDecisions.WithLabelValues(feature, plan, outcome).Inc()
}

func (m *Metrics) Verification(action, plan string) {
	m.verificationDecision.WithLabelValues(action, plan).Inc()
}

func (m *Metrics) RequestSubmitted(kind, plan, method string) {
	m.requestsSubmitted.WithLabelValues(kind, plan, method).Inc()
}

func (m *Metrics) Transition(from, to string) {
	m.lifecycleTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) AdminAction(action string) {
	m.adminActions.WithLabelValues(action).Inc()
}

// Middleware records duration and count per matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			code := strconv.Itoa(status)
			m.httpDuration.WithLabelValues(c.Request().Method, route, code).Observe(time.Since(start).Seconds())
			m.httpTotal.WithLabelValues(c.Request().Method, route, code).Inc()
			return err
		}
	}
}
