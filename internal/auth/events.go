// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies a user lifecycle notification.
type EventType string

// Event types published by Module.
const (
	EventUserRegistered EventType = "user.registered"
	EventUserLoggedIn   EventType = "user.logged_in"
	EventUserLoggedOut  EventType = "user.logged_out"
	EventUserUpdated    EventType = "user.updated"
	EventUserDeleted    EventType = "user.deleted"
)

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 64

// Event is a user lifecycle notification.
// User is nil for logout and delete events; UserID is always set when known.
type Event struct {
	Type   EventType
	User   *User
	UserID string
	At     time.Time
}

// Broadcaster distributes events to subscribers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   []chan Event
	logger *slog.Logger
}

// NewBroadcaster creates a new broadcaster. A nil logger discards output.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{logger: logger}
}

// Subscribe creates a channel receiving every subsequent event.
func (b *Broadcaster) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (b *Broadcaster) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Publish sends an event to every subscriber without blocking.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event dropped: subscriber buffer full",
				"event_type", string(event.Type),
				"user_id", event.UserID,
			)
		}
	}
}

// Close closes every subscription channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
