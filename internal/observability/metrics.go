// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/domainhive/domainhive/internal/auth"
)

// Metrics contains the DomainHive Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	AuthEventsTotal *prometheus.CounterVec
	LoginFailures   *prometheus.CounterVec
}

// NewMetrics creates and registers the DomainHive metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "domainhive_requests_total",
				Help: "Total number of requests by transport, route and status",
			},
			[]string{"transport", "route", "status"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "domainhive_auth_events_total",
				Help: "Total number of user lifecycle events by type",
			},
			[]string{"type"},
		),
		LoginFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "domainhive_login_failures_total",
				Help: "Total number of rejected logins by reason",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.AuthEventsTotal)
	reg.MustRegister(m.LoginFailures)

	return m
}

// RecordRequest counts one handled request.
func (m *Metrics) RecordRequest(transport, route, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(transport, route, status).Inc()
}

// RecordLoginFailure counts one rejected login. reason is the error code.
func (m *Metrics) RecordLoginFailure(reason string) {
	if m == nil {
		return
	}
	m.LoginFailures.WithLabelValues(reason).Inc()
}

// Watch counts auth events until ctx is done or events is closed.
func (m *Metrics) Watch(ctx context.Context, events <-chan auth.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.AuthEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}
