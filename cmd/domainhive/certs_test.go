// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainhive/domainhive/internal/tls"
	"github.com/domainhive/domainhive/pkg/errutil"
)

func TestCertsGenerate(t *testing.T) {
	isolate(t)
	dir := filepath.Join(t.TempDir(), "certs")

	out, err := execute(t, "certs", "generate", "--dir", dir, "--hive-id", "hive-1", "--host", "auth.internal")
	require.NoError(t, err)
	assert.Contains(t, out, "hive-1")

	for _, name := range []string{tls.CACertFile, tls.CAKeyFile, "grpc.crt", "grpc.key", "client.crt", "client.key"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	ca, err := tls.LoadCA(dir)
	require.NoError(t, err)
	assert.Equal(t, "hive-1", ca.HiveID())

	_, err = tls.LoadServerTLS(dir, defaultServerCertName)
	require.NoError(t, err)
	_, err = tls.LoadClientTLS(dir, defaultClientCertName, "auth.internal")
	require.NoError(t, err)
}

func TestCertsGenerate_RefusesToOverwrite(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, generateCerts(dir, "first", nil))
	before, err := os.ReadFile(filepath.Join(dir, tls.CACertFile))
	require.NoError(t, err)

	_, err = execute(t, "certs", "generate", "--dir", dir)
	errutil.AssertErrorCode(t, err, tls.CodeGenerateFailed)

	after, err := os.ReadFile(filepath.Join(dir, tls.CACertFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = execute(t, "certs", "generate", "--dir", dir, "--force", "--hive-id", "second")
	require.NoError(t, err)
	ca, err := tls.LoadCA(dir)
	require.NoError(t, err)
	assert.Equal(t, "second", ca.HiveID())
}

func TestCertsIssue(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	_, err := execute(t, "certs", "issue", "worker", "--dir", dir)
	errutil.AssertErrorCode(t, err, tls.CodeLoadFailed)

	require.NoError(t, generateCerts(dir, "hive-2", nil))
	out, err := execute(t, "certs", "issue", "worker", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "hive-2")
	assert.FileExists(t, filepath.Join(dir, "worker.crt"))
}

func TestCertsDir_DefaultsToXDG(t *testing.T) {
	isolate(t)
	cmd := NewCertsCmd()
	assert.Equal(t, filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "domainhive", "certs"), certsDir(cmd))
}
