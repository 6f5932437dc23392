// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainhive/domainhive/internal/auth"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := auth.NewBroadcaster(nil)
	first := b.Subscribe()
	second := b.Subscribe()

	b.Publish(auth.Event{Type: auth.EventUserRegistered, UserID: "u1"})

	assert.Equal(t, "u1", (<-first).UserID)
	assert.Equal(t, "u1", (<-second).UserID)
	b.Close()
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := auth.NewBroadcaster(nil)
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)

	b.Unsubscribe(ch)
	b.Publish(auth.Event{Type: auth.EventUserDeleted})
}

func TestBroadcaster_DropsWhenFull(t *testing.T) {
	var buf bytes.Buffer
	b := auth.NewBroadcaster(slog.New(slog.NewJSONHandler(&buf, nil)))
	ch := b.Subscribe()

	for range 65 {
		b.Publish(auth.Event{Type: auth.EventUserLoggedIn, UserID: "u1"})
	}

	assert.Len(t, ch, cap(ch))
	require.Contains(t, buf.String(), "event dropped")
	assert.Contains(t, buf.String(), `"event_type":"user.logged_in"`)
	b.Close()
}

func TestBroadcaster_CloseClosesAll(t *testing.T) {
	b := auth.NewBroadcaster(nil)
	first := b.Subscribe()
	second := b.Subscribe()

	b.Close()

	_, ok := <-first
	assert.False(t, ok)
	_, ok = <-second
	assert.False(t, ok)
}
