// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

import (
	"sync"
	"time"
)

// DefaultLockoutDuration is how long a username stays locked once the
// failure threshold is reached.
const DefaultLockoutDuration = 15 * time.Minute

// maxLoginDelay caps the progressive delay suggested before lockout.
const maxLoginDelay = 32 * time.Second

// RateLimitResult describes the throttling state of a username.
type RateLimitResult struct {
	// Failures is the number of consecutive failed attempts.
	Failures int

	// Delay is the time a client should wait before the next attempt.
	Delay time.Duration

	// IsLockedOut indicates the username is temporarily locked.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

type loginFailures struct {
	count       int
	lastFailure time.Time
	lockedUntil time.Time
}

// stale reports whether the entry no longer affects logins at now: a served
// lockout, or failures older than the lockout window.
func (f *loginFailures) stale(now time.Time, window time.Duration) bool {
	if !f.lockedUntil.IsZero() {
		return !now.Before(f.lockedUntil)
	}
	return now.Sub(f.lastFailure) >= window
}

// LoginLimiter counts consecutive failed logins per username. Failures
// older than the lockout duration are forgotten. A threshold of zero
// disables lockout.
type LoginLimiter struct {
	threshold int
	duration  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures map[string]*loginFailures
}

// NewLoginLimiter creates a LoginLimiter.
func NewLoginLimiter(threshold int, duration time.Duration, now func() time.Time) *LoginLimiter {
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	if now == nil {
		now = time.Now
	}
	return &LoginLimiter{
		threshold: threshold,
		duration:  duration,
		now:       now,
		failures:  make(map[string]*loginFailures),
	}
}

// Enabled reports whether lockout is active.
func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.threshold > 0
}

// Check evaluates the current state for username.
func (l *LoginLimiter) Check(username string) RateLimitResult {
	if !l.Enabled() {
		return RateLimitResult{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.failures[username]
	if !ok {
		return RateLimitResult{}
	}
	now := l.now()
	if f.stale(now, l.duration) {
		delete(l.failures, username)
		return RateLimitResult{}
	}

	result := RateLimitResult{Failures: f.count, Delay: progressiveDelay(f.count)}
	if now.Before(f.lockedUntil) {
		result.IsLockedOut = true
		result.Delay = 0
		result.LockoutRemaining = f.lockedUntil.Sub(now)
	}
	return result
}

// RecordFailure counts a failed attempt and returns the resulting state.
func (l *LoginLimiter) RecordFailure(username string) RateLimitResult {
	if !l.Enabled() {
		return RateLimitResult{}
	}

	l.mu.Lock()
	now := l.now()
	l.pruneLocked(now)
	f, ok := l.failures[username]
	if !ok {
		f = &loginFailures{}
		l.failures[username] = f
	}
	f.count++
	f.lastFailure = now
	if f.count >= l.threshold && f.lockedUntil.IsZero() {
		f.lockedUntil = now.Add(l.duration)
	}
	l.mu.Unlock()

	return l.Check(username)
}

// Reset clears the failure count after a successful login.
func (l *LoginLimiter) Reset(username string) {
	if !l.Enabled() {
		return
	}
	l.mu.Lock()
	delete(l.failures, username)
	l.mu.Unlock()
}

func (l *LoginLimiter) pruneLocked(now time.Time) {
	for username, f := range l.failures {
		if f.stale(now, l.duration) {
			delete(l.failures, username)
		}
	}
}

// progressiveDelay returns 2^(failures-1) seconds, capped at maxLoginDelay.
func progressiveDelay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	if failures > 6 {
		return maxLoginDelay
	}
	return min(time.Duration(1<<(failures-1))*time.Second, maxLoginDelay)
}
