// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainhive/domainhive/internal/registry"
	"github.com/domainhive/domainhive/pkg/errutil"
)

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, s)
}

type lifecycleModule struct {
	name     string
	rec      *recorder
	startErr error
	stopErr  error
	cfg      map[string]any
	cfgErr   error
}

func (m *lifecycleModule) Start(context.Context) error {
	m.rec.add("start " + m.name)
	return m.startErr
}

func (m *lifecycleModule) Stop(context.Context) error {
	m.rec.add("stop " + m.name)
	return m.stopErr
}

func (m *lifecycleModule) Configure(cfg map[string]any) error {
	m.cfg = cfg
	return m.cfgErr
}

type greeter struct{ greeting string }

func TestHive_RegisterAndLookup(t *testing.T) {
	h := registry.New(nil)
	g := &greeter{greeting: "hi"}

	require.NoError(t, h.Register("greeter", g))
	require.NoError(t, h.Register("auth", "placeholder"))

	got, err := h.Module("greeter")
	require.NoError(t, err)
	assert.Same(t, g, got)

	typed, err := registry.Lookup[*greeter](h, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "hi", typed.greeting)

	assert.Equal(t, []string{"auth", "greeter"}, h.Names())
}

func TestHive_RegisterErrors(t *testing.T) {
	h := registry.New(nil)
	require.NoError(t, h.Register("auth", 1))

	err := h.Register("auth", 2)
	errutil.AssertErrorCode(t, err, registry.CodeDuplicateModule)

	err = h.Register("", 3)
	errutil.AssertErrorCode(t, err, registry.CodeInvalidModule)

	err = h.Register("nil", nil)
	errutil.AssertErrorCode(t, err, registry.CodeInvalidModule)

	got, err := h.Module("auth")
	require.NoError(t, err)
	assert.Equal(t, 1, got, "first registration wins")
}

func TestHive_LookupErrors(t *testing.T) {
	h := registry.New(nil)
	require.NoError(t, h.Register("auth", "not a greeter"))

	_, err := h.Module("missing")
	errutil.AssertErrorCode(t, err, registry.CodeModuleNotFound)

	_, err = registry.Lookup[*greeter](h, "missing")
	errutil.AssertErrorCode(t, err, registry.CodeModuleNotFound)

	g, err := registry.Lookup[*greeter](h, "auth")
	assert.Nil(t, g)
	errutil.AssertErrorCode(t, err, registry.CodeModuleType)
	errutil.AssertErrorContext(t, err, "actual", "string")
}

func TestHive_Config(t *testing.T) {
	seed := map[string]any{"a": 1}
	h := registry.New(seed)
	seed["a"] = 99

	assert.Equal(t, map[string]any{"a": 1}, h.Config(), "seed is copied")

	mod := &lifecycleModule{name: "m", rec: &recorder{}}
	require.NoError(t, h.Register("m", mod))

	require.NoError(t, h.SetConfig(map[string]any{"b": 2}))
	require.NoError(t, h.SetConfig(map[string]any{"a": 3}))

	want := map[string]any{"a": 3, "b": 2}
	assert.Equal(t, want, h.Config())
	assert.Equal(t, want, mod.cfg)

	snapshot := h.Config()
	snapshot["c"] = 4
	assert.NotContains(t, h.Config(), "c")
}

func TestHive_SetConfigReportsConfigurerErrors(t *testing.T) {
	h := registry.New(nil)
	boom := errors.New("bad setting")
	require.NoError(t, h.Register("ok", &lifecycleModule{name: "ok", rec: &recorder{}}))
	require.NoError(t, h.Register("bad", &lifecycleModule{name: "bad", rec: &recorder{}, cfgErr: boom}))

	err := h.SetConfig(map[string]any{"x": true})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, true, h.Config()["x"], "config is applied regardless")
}

func TestHive_Subscribe(t *testing.T) {
	h := registry.New(nil)
	var got []registry.Notification
	unsubscribe := h.Subscribe(func(n registry.Notification) { got = append(got, n) })

	require.NoError(t, h.Register("auth", 1))
	require.NoError(t, h.SetConfig(map[string]any{"k": "v"}))

	require.Len(t, got, 2)
	assert.Equal(t, registry.ModuleRegistered, got[0].Type)
	assert.Equal(t, "auth", got[0].Name)
	assert.Equal(t, 1, got[0].Module)
	assert.Equal(t, registry.ConfigUpdated, got[1].Type)
	assert.Equal(t, map[string]any{"k": "v"}, got[1].Config)

	unsubscribe()
	require.NoError(t, h.Register("other", 2))
	assert.Len(t, got, 2)
}

func TestHive_StartStopOrder(t *testing.T) {
	rec := &recorder{}
	h := registry.New(nil)
	require.NoError(t, h.Register("db", &lifecycleModule{name: "db", rec: rec}))
	require.NoError(t, h.Register("plain", &greeter{}))
	require.NoError(t, h.Register("auth", &lifecycleModule{name: "auth", rec: rec}))
	require.NoError(t, h.Register("http", &lifecycleModule{name: "http", rec: rec}))

	ctx := context.Background()
	require.NoError(t, h.Start(ctx))
	require.NoError(t, h.Stop(ctx))
	require.NoError(t, h.Stop(ctx), "second stop is a no-op")

	assert.Equal(t, []string{
		"start db", "start auth", "start http",
		"stop http", "stop auth", "stop db",
	}, rec.log)
}

func TestHive_StartRollsBack(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("port in use")
	h := registry.New(nil)
	require.NoError(t, h.Register("db", &lifecycleModule{name: "db", rec: rec}))
	require.NoError(t, h.Register("http", &lifecycleModule{name: "http", rec: rec, startErr: boom}))
	require.NoError(t, h.Register("never", &lifecycleModule{name: "never", rec: rec}))

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	errutil.AssertErrorCode(t, err, registry.CodeLifecycle)
	errutil.AssertErrorContext(t, err, "module", "http")

	assert.Equal(t, []string{"start db", "start http", "stop db"}, rec.log)
}

func TestHive_StopCollectsErrors(t *testing.T) {
	rec := &recorder{}
	first := errors.New("first")
	second := errors.New("second")
	h := registry.New(nil)
	require.NoError(t, h.Register("a", &lifecycleModule{name: "a", rec: rec, stopErr: first}))
	require.NoError(t, h.Register("b", &lifecycleModule{name: "b", rec: rec, stopErr: second}))

	ctx := context.Background()
	require.NoError(t, h.Start(ctx))
	err := h.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, rec.log)
}

func TestHive_ConcurrentAccess(t *testing.T) {
	h := registry.New(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := string(rune('a' + i))
			assert.NoError(t, h.Register(name, i))
			_, _ = h.Module(name)
			_ = h.SetConfig(map[string]any{name: i})
			_ = h.Names()
		}()
	}
	wg.Wait()
	assert.Len(t, h.Names(), 20)
	assert.Len(t, h.Config(), 20)
}
