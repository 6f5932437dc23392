// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

// TrackedTokens returns the size of the token tracking map, expired entries included.
func (m *Module) TrackedTokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

// Tracked returns the number of usernames with recorded failures.
func (l *LoginLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}
