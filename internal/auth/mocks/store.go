// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/domainhive/domainhive/internal/auth"
)

// MockStore is a testify mock of auth.Store.
type MockStore struct {
	mock.Mock
}

// NewMockStore creates a MockStore whose expectations are asserted on cleanup.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create implements auth.Store.
func (m *MockStore) Create(ctx context.Context, user *auth.User, passwordHash string) error {
	args := m.Called(ctx, user, passwordHash)
	return args.Error(0)
}

// GetByID implements auth.Store.
func (m *MockStore) GetByID(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

// GetByUsername implements auth.Store.
func (m *MockStore) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	return userArg(args, 0), args.Error(1)
}

// GetByEmail implements auth.Store.
func (m *MockStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return userArg(args, 0), args.Error(1)
}

// Update implements auth.Store.
func (m *MockStore) Update(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// Delete implements auth.Store.
func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// PasswordHash implements auth.Store.
func (m *MockStore) PasswordHash(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

// SetPasswordHash implements auth.Store.
func (m *MockStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func userArg(args mock.Arguments, i int) *auth.User {
	u, _ := args.Get(i).(*auth.User)
	return u
}

var _ auth.Store = (*MockStore)(nil)
