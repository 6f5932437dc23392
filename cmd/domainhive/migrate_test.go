// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainhive/domainhive/internal/config"
	"github.com/domainhive/domainhive/pkg/errutil"
)

type fakeMigrator struct {
	url     string
	ups     int
	downs   int
	forced  int
	version uint
	dirty   bool
	pending []uint
	upErr   error
	closed  bool
}

func (f *fakeMigrator) Up() error                    { f.ups++; return f.upErr }
func (f *fakeMigrator) Down() error                  { f.downs++; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }
func (f *fakeMigrator) Force(v int) error            { f.forced = v; return nil }
func (f *fakeMigrator) Pending() ([]uint, error)     { return f.pending, nil }
func (f *fakeMigrator) Close() error                 { f.closed = true; return nil }

func useFakeMigrator(t *testing.T) *fakeMigrator {
	t.Helper()
	fake := &fakeMigrator{}
	orig := newMigrator
	newMigrator = func(url string) (migrator, error) {
		fake.url = url
		return fake, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return fake
}

func TestMigrateUp(t *testing.T) {
	isolate(t)
	fake := useFakeMigrator(t)

	out, err := execute(t, "migrate", "up", "--database-url", "postgres://flag/db")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.ups)
	assert.True(t, fake.closed)
	assert.Equal(t, "postgres://flag/db", fake.url)
	assert.Contains(t, out, "Migrations completed successfully")
}

func TestMigrateUp_URLFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDatabaseURL, "postgres://env/db")
	fake := useFakeMigrator(t)

	_, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", fake.url)
}

func TestMigrateUp_PropagatesFailure(t *testing.T) {
	isolate(t)
	fake := useFakeMigrator(t)
	fake.upErr = oops.Code("MIGRATION_UP_FAILED").Errorf("boom")

	_, err := execute(t, "migrate", "up", "--database-url", "postgres://x/db")
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	assert.True(t, fake.closed, "migrator is closed on failure")
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	isolate(t)
	useFakeMigrator(t)

	_, err := execute(t, "migrate", "up")
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}

func TestMigrateDown_RequiresConfirmation(t *testing.T) {
	isolate(t)
	fake := useFakeMigrator(t)

	_, err := execute(t, "migrate", "down", "--database-url", "postgres://x/db")
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
	assert.Zero(t, fake.downs)

	_, err = execute(t, "migrate", "down", "--yes", "--database-url", "postgres://x/db")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.downs)
}

func TestMigrateVersion(t *testing.T) {
	isolate(t)
	fake := useFakeMigrator(t)
	fake.version = 1
	fake.dirty = true
	fake.pending = []uint{2}

	out, err := execute(t, "migrate", "version", "--database-url", "postgres://x/db")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1 (000001_")
	assert.Contains(t, out, "dirty")
	assert.Contains(t, out, "Pending: 1")
	assert.Contains(t, out, "000002_")
}

func TestMigrateForce(t *testing.T) {
	isolate(t)
	fake := useFakeMigrator(t)

	_, err := execute(t, "migrate", "force", "2", "--database-url", "postgres://x/db")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.forced)

	_, err = execute(t, "migrate", "force", "two", "--database-url", "postgres://x/db")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}
