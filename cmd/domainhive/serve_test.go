// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/config"
	authgrpc "github.com/domainhive/domainhive/internal/grpc"
	"github.com/domainhive/domainhive/internal/tls"
	"github.com/domainhive/domainhive/pkg/errutil"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.SecretKey = "serve-test-secret"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.GRPC.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.GRPC.CertsDir = t.TempDir()
	return cfg
}

func startApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	ctx := context.Background()
	a, err := newApp(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Stop(stopCtx))
	})
	return a
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func scrape(t *testing.T, addr string) string {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestApp_ServesAllTransports(t *testing.T) {
	a := startApp(t, testConfig(t))
	httpBase := "http://" + a.http.Addr()

	assert.Equal(t, []string{moduleAuth, moduleGRPC, moduleHTTP, moduleMetrics}, a.hive.Names())

	resp := postJSON(t, httpBase+"/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, httpBase+"/auth/login", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	metricsAddr := a.metrics.Addr()
	assert.Contains(t, scrape(t, metricsAddr), "domainhive_active_tokens 1")
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(scrape(t, metricsAddr)), []byte(`domainhive_auth_events_total{type="user.logged_in"} 1`))
	}, 2*time.Second, 20*time.Millisecond)

	ready, err := http.Get("http://" + metricsAddr + "/healthz/readiness")
	require.NoError(t, err)
	_ = ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)

	client, err := authgrpc.NewClient(authgrpc.ClientConfig{Address: a.grpc.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := client.Health(ctx, authgrpc.AuthServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	verified, err := client.Verify(ctx, login.Token)
	require.NoError(t, err)
	assert.True(t, verified.Valid)
}

func TestApp_ListenersCanBeDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.GRPC.Addr = ""
	cfg.Metrics.Addr = ""
	a := startApp(t, cfg)

	assert.Equal(t, []string{moduleAuth, moduleHTTP}, a.hive.Names())
	assert.Nil(t, a.grpc)
	assert.Nil(t, a.metrics)
	assert.Len(t, a.errorChannels(), 1)
}

func TestApp_GRPCOverMutualTLS(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Addr = ""
	cfg.Metrics.Addr = ""
	cfg.GRPC.TLS = true
	require.NoError(t, generateCerts(cfg.GRPC.CertsDir, "tls-hive", nil))
	a := startApp(t, cfg)

	clientTLS, err := tls.LoadClientTLS(cfg.GRPC.CertsDir, defaultClientCertName, "localhost")
	require.NoError(t, err)
	client, err := authgrpc.NewClient(authgrpc.ClientConfig{Address: a.grpc.Addr(), TLSConfig: clientTLS})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := client.Health(ctx, authgrpc.AuthServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

func TestNewApp_MissingCertificates(t *testing.T) {
	cfg := testConfig(t)
	cfg.GRPC.TLS = true
	cfg.GRPC.CertsDir = filepath.Join(t.TempDir(), "absent")

	_, err := newApp(context.Background(), cfg, slog.New(slog.DiscardHandler))
	errutil.AssertErrorCode(t, err, tls.CodeLoadFailed)
}

func TestServeCommand_RejectsInvalidConfig(t *testing.T) {
	isolate(t)

	_, err := execute(t, "serve", "--http-addr", "127.0.0.1:0", "--grpc-addr", "", "--metrics-addr", "")
	errutil.AssertErrorCode(t, err, auth.CodeInvalidConfig)

	t.Setenv(config.EnvSecretKey, "s3cret")
	_, err = execute(t, "serve", "--http-addr", "", "--grpc-addr", "")
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}

func TestMonitorServerErrors_CancelsOnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	errCh <- assert.AnError
	monitorServerErrors(ctx, cancel, errCh, "test", slog.New(slog.DiscardHandler))
	assert.Error(t, ctx.Err())
}

func TestMonitorServerErrors_IgnoresClosedChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error)
	close(errCh)
	monitorServerErrors(ctx, cancel, errCh, "test", slog.New(slog.DiscardHandler))
	assert.NoError(t, ctx.Err())
}
