// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package tls

import (
	cryptotls "crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainhive/domainhive/pkg/errutil"
)

const testHiveID = "01HX7MZABC123DEF456GHJ"

func TestGenerateCA(t *testing.T) {
	ca, err := GenerateCA(testHiveID)
	require.NoError(t, err)

	assert.True(t, ca.Certificate.IsCA)
	assert.Equal(t, "DomainHive CA "+testHiveID, ca.Certificate.Subject.CommonName)
	require.Len(t, ca.Certificate.URIs, 1)
	assert.Equal(t, "domainhive://hive/"+testHiveID, ca.Certificate.URIs[0].String())
	assert.Equal(t, testHiveID, ca.HiveID())
}

func TestGenerateCert(t *testing.T) {
	ca, err := GenerateCA(testHiveID)
	require.NoError(t, err)

	cert, err := GenerateCert(ca, "grpc", "auth.internal", "10.0.0.7")
	require.NoError(t, err)

	assert.Equal(t, "domainhive-grpc", cert.Certificate.Subject.CommonName)
	assert.ElementsMatch(t, []string{"localhost", "domainhive-" + testHiveID, "auth.internal"}, cert.Certificate.DNSNames)
	require.Len(t, cert.Certificate.IPAddresses, 2)
	assert.Equal(t, "10.0.0.7", cert.Certificate.IPAddresses[1].String())

	pool := x509.NewCertPool()
	pool.AddCert(ca.Certificate)
	_, err = cert.Certificate.Verify(x509.VerifyOptions{
		Roots:     pool,
		DNSName:   "auth.internal",
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	assert.NoError(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	ca, err := GenerateCA(testHiveID)
	require.NoError(t, err)
	server, err := GenerateCert(ca, "grpc")
	require.NoError(t, err)
	client, err := GenerateCert(ca, "cli")
	require.NoError(t, err)

	require.NoError(t, SaveCertificates(dir, ca, server, client))

	for _, name := range []string{"root-ca", "grpc", "cli"} {
		info, err := os.Stat(filepath.Join(dir, name+".key"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := LoadCA(dir)
	require.NoError(t, err)
	assert.True(t, loaded.Certificate.Equal(ca.Certificate))
	assert.True(t, loaded.PrivateKey.Equal(ca.PrivateKey))

	serverCfg, err := LoadServerTLS(dir, "grpc")
	require.NoError(t, err)
	assert.Equal(t, cryptotls.RequireAndVerifyClientCert, serverCfg.ClientAuth)
	assert.Equal(t, uint16(cryptotls.VersionTLS13), serverCfg.MinVersion)
	require.Len(t, serverCfg.Certificates, 1)

	clientCfg, err := LoadClientTLS(dir, "cli", "localhost")
	require.NoError(t, err)
	assert.Equal(t, "localhost", clientCfg.ServerName)
	assert.NotNil(t, clientCfg.RootCAs)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCA(dir)
	errutil.AssertErrorCode(t, err, CodeLoadFailed)

	_, err = LoadServerTLS(dir, "grpc")
	errutil.AssertErrorCode(t, err, CodeLoadFailed)

	require.NoError(t, os.WriteFile(filepath.Join(dir, CACertFile), []byte("not pem"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CAKeyFile), []byte("not pem"), 0o600))
	_, err = LoadCA(dir)
	errutil.AssertErrorCode(t, err, CodeLoadFailed)
}
