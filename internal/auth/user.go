// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"
)

// DefaultRole is assigned when Register is called without roles.
const DefaultRole = "user"

// User is an identity record owned by the auth module.
type User struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Roles     []string       `json:"roles"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of u so callers never share store state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	if u.Metadata != nil {
		c.Metadata = maps.Clone(u.Metadata)
	}
	return &c
}

// UserUpdate carries the fields UpdateUser replaces. Nil fields are left as is.
// The user ID can never be changed.
type UserUpdate struct {
	Username *string
	Email    *string
	Roles    *[]string
	Metadata map[string]any
}

// apply merges the update over a copy of u and returns it.
func (up UserUpdate) apply(u *User) *User {
	merged := u.Clone()
	if up.Username != nil {
		merged.Username = *up.Username
	}
	if up.Email != nil {
		merged.Email = *up.Email
	}
	if up.Roles != nil {
		merged.Roles = slices.Clone(*up.Roles)
	}
	if up.Metadata != nil {
		merged.Metadata = maps.Clone(up.Metadata)
	}
	return merged
}

// HasRole reports whether role is one of the user's roles.
func HasRole(u *User, role string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// HasAnyRole reports whether the user has at least one of roles.
// It is false when roles is empty.
func HasAnyRole(u *User, roles ...string) bool {
	for _, r := range roles {
		if HasRole(u, r) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the user has every one of roles.
// It is vacuously true when roles is empty.
func HasAllRoles(u *User, roles ...string) bool {
	for _, r := range roles {
		if !HasRole(u, r) {
			return false
		}
	}
	return true
}

func validateIdentity(username, email string) error {
	if strings.TrimSpace(username) == "" {
		return oops.Code(CodeInvalidInput).With("field", "username").Errorf("username cannot be empty")
	}
	if strings.TrimSpace(email) == "" {
		return oops.Code(CodeInvalidInput).With("field", "email").Errorf("email cannot be empty")
	}
	return nil
}

// Store persists users and their password hashes.
// Implementations return ErrNotFound and ErrDuplicate (possibly wrapped)
// so the module can translate them into its own error kinds.
type Store interface {
	// Create stores a new user together with its password hash.
	Create(ctx context.Context, user *User, passwordHash string) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by exact email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update replaces every field of an existing user except its ID.
	Update(ctx context.Context, user *User) error

	// Delete removes a user and its credential. Deleting a missing user is not an error.
	Delete(ctx context.Context, id string) error

	// PasswordHash returns the stored password hash for a user.
	PasswordHash(ctx context.Context, id string) (string, error)

	// SetPasswordHash replaces the stored password hash for a user.
	SetPasswordHash(ctx context.Context, id, hash string) error
}
