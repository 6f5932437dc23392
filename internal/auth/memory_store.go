// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// MemoryStore is an in-memory Store. It is the default store of a Module.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*User
	passwords  map[string]string
	byUsername map[string]string
	byEmail    map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*User),
		passwords:  make(map[string]string),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create stores a new user together with its password hash.
func (s *MemoryStore) Create(_ context.Context, user *User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return oops.With("id", user.ID).Wrap(ErrDuplicate)
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return oops.With("username", user.Username).Wrap(ErrDuplicate)
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return oops.With("email", user.Email).Wrap(ErrDuplicate)
	}

	s.users[user.ID] = user.Clone()
	s.passwords[user.ID] = passwordHash
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, oops.With("id", id).Wrap(ErrNotFound)
	}
	return u.Clone(), nil
}

// GetByUsername retrieves a user by exact username.
func (s *MemoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, oops.With("username", username).Wrap(ErrNotFound)
	}
	return s.users[id].Clone(), nil
}

// GetByEmail retrieves a user by exact email.
func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, oops.With("email", email).Wrap(ErrNotFound)
	}
	return s.users[id].Clone(), nil
}

// Update replaces every field of an existing user except its ID.
func (s *MemoryStore) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return oops.With("id", user.ID).Wrap(ErrNotFound)
	}
	if owner, taken := s.byUsername[user.Username]; taken && owner != user.ID {
		return oops.With("username", user.Username).Wrap(ErrDuplicate)
	}
	if owner, taken := s.byEmail[user.Email]; taken && owner != user.ID {
		return oops.With("email", user.Email).Wrap(ErrDuplicate)
	}

	delete(s.byUsername, current.Username)
	delete(s.byEmail, current.Email)
	s.users[user.ID] = user.Clone()
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID
	return nil
}

// Delete removes a user and its credential.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}
	delete(s.byUsername, u.Username)
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	delete(s.passwords, id)
	return nil
}

// PasswordHash returns the stored password hash for a user.
func (s *MemoryStore) PasswordHash(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.passwords[id]
	if !ok {
		return "", oops.With("id", id).Wrap(ErrNotFound)
	}
	return hash, nil
}

// SetPasswordHash replaces the stored password hash for a user.
func (s *MemoryStore) SetPasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return oops.With("id", id).Wrap(ErrNotFound)
	}
	s.passwords[id] = hash
	return nil
}

// Len returns the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
