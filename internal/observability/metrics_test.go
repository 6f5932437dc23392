// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/domainhive/domainhive/internal/auth"
)

func TestMetrics_WatchCountsEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	events := make(chan auth.Event, 3)
	events <- auth.Event{Type: auth.EventUserRegistered}
	events <- auth.Event{Type: auth.EventUserLoggedIn}
	events <- auth.Event{Type: auth.EventUserLoggedIn}
	close(events)

	m.Watch(context.Background(), events)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues(string(auth.EventUserRegistered))), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues(string(auth.EventUserLoggedIn))), 0)
}

func TestMetrics_WatchStopsOnCancel(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Watch(ctx, make(chan auth.Event))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
