// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package registry wires named modules together and shares configuration
// between them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/samber/oops"
)

// Error codes returned by Hive.
const (
	CodeDuplicateModule = "REGISTRY_DUPLICATE_MODULE"
	CodeModuleNotFound  = "REGISTRY_MODULE_NOT_FOUND"
	CodeModuleType      = "REGISTRY_MODULE_TYPE"
	CodeInvalidModule   = "REGISTRY_INVALID_MODULE"
	CodeLifecycle       = "REGISTRY_LIFECYCLE_FAILED"
)

// NotificationType identifies a registry notification.
type NotificationType string

// Notification types.
const (
	ModuleRegistered NotificationType = "module.registered"
	ConfigUpdated    NotificationType = "config.updated"
)

// Notification describes a change in the hive. Name and Module are set for
// ModuleRegistered; Config holds a copy of the merged configuration for
// ConfigUpdated.
type Notification struct {
	Type   NotificationType
	Name   string
	Module any
	Config map[string]any
}

// Starter is implemented by modules that need to run after wiring.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by modules that hold resources.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Configurer is implemented by modules that react to configuration changes.
type Configurer interface {
	Configure(cfg map[string]any) error
}

type entry struct {
	name   string
	module any
}

// Hive is a named module container. It is safe for concurrent use.
type Hive struct {
	mu      sync.RWMutex
	modules []entry
	index   map[string]int
	config  map[string]any
	subs    map[int]func(Notification)
	nextSub int
	started []entry
	logger  *slog.Logger
}

// Option configures a Hive.
type Option func(*Hive)

// WithLogger sets the hive logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hive) { h.logger = logger }
}

// New creates a Hive seeded with cfg.
func New(cfg map[string]any, opts ...Option) *Hive {
	h := &Hive{
		index:  make(map[string]int),
		config: maps.Clone(cfg),
		subs:   make(map[int]func(Notification)),
		logger: slog.New(slog.DiscardHandler),
	}
	if h.config == nil {
		h.config = map[string]any{}
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a module under name. Names are unique.
func (h *Hive) Register(name string, module any) error {
	if name == "" || module == nil {
		return oops.Code(CodeInvalidModule).With("name", name).Errorf("module name and value are required")
	}

	h.mu.Lock()
	if _, ok := h.index[name]; ok {
		h.mu.Unlock()
		return oops.Code(CodeDuplicateModule).With("name", name).Errorf("module %s already registered", name)
	}
	h.index[name] = len(h.modules)
	h.modules = append(h.modules, entry{name: name, module: module})
	subs := h.subscribersLocked()
	h.mu.Unlock()

	h.logger.Debug("module registered", "module", name, "type", fmt.Sprintf("%T", module))
	notify(subs, Notification{Type: ModuleRegistered, Name: name, Module: module})
	return nil
}

// Module returns the module registered under name.
func (h *Hive) Module(name string) (any, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	i, ok := h.index[name]
	if !ok {
		return nil, oops.Code(CodeModuleNotFound).With("name", name).Errorf("module %s not found", name)
	}
	return h.modules[i].module, nil
}

// Lookup returns the module registered under name as a T.
func Lookup[T any](h *Hive, name string) (T, error) {
	var zero T
	m, err := h.Module(name)
	if err != nil {
		return zero, err
	}
	typed, ok := m.(T)
	if !ok {
		return zero, oops.Code(CodeModuleType).
			With("name", name).
			With("actual", fmt.Sprintf("%T", m)).
			With("expected", fmt.Sprintf("%T", zero)).
			Errorf("module %s has unexpected type %T", name, m)
	}
	return typed, nil
}

// Names returns the registered module names in sorted order.
func (h *Hive) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Sorted(maps.Keys(h.index))
}

// SetConfig shallow-merges cfg into the hive configuration and passes the
// result to every Configurer. All Configurer errors are returned joined.
func (h *Hive) SetConfig(cfg map[string]any) error {
	h.mu.Lock()
	maps.Copy(h.config, cfg)
	merged := maps.Clone(h.config)
	modules := slices.Clone(h.modules)
	subs := h.subscribersLocked()
	h.mu.Unlock()

	var errs []error
	for _, e := range modules {
		c, ok := e.module.(Configurer)
		if !ok {
			continue
		}
		if err := c.Configure(maps.Clone(merged)); err != nil {
			errs = append(errs, oops.With("module", e.name).Wrap(err))
		}
	}

	notify(subs, Notification{Type: ConfigUpdated, Config: merged})
	return errors.Join(errs...)
}

// Config returns a copy of the current configuration.
func (h *Hive) Config() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.config)
}

// Subscribe registers fn for every subsequent notification and returns a
// function that removes it. Callbacks run synchronously, outside the hive lock.
func (h *Hive) Subscribe(fn func(Notification)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *Hive) subscribersLocked() []func(Notification) {
	ids := slices.Sorted(maps.Keys(h.subs))
	subs := make([]func(Notification), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, h.subs[id])
	}
	return subs
}

func notify(subs []func(Notification), n Notification) {
	for _, fn := range subs {
		fn(n)
	}
}

// Start starts every Starter in registration order. If one fails, the
// modules already started are stopped in reverse order.
func (h *Hive) Start(ctx context.Context) error {
	h.mu.RLock()
	modules := slices.Clone(h.modules)
	h.mu.RUnlock()

	var started []entry
	for _, e := range modules {
		s, ok := e.module.(Starter)
		if !ok {
			started = append(started, e)
			continue
		}
		if err := s.Start(ctx); err != nil {
			rollbackErr := stopAll(ctx, started, h.logger)
			return oops.Code(CodeLifecycle).
				With("module", e.name).
				With("phase", "start").
				Wrap(errors.Join(err, rollbackErr))
		}
		h.logger.Info("module started", "module", e.name)
		started = append(started, e)
	}

	h.mu.Lock()
	h.started = started
	h.mu.Unlock()
	return nil
}

// Stop stops every started Stopper in reverse order and returns all failures.
func (h *Hive) Stop(ctx context.Context) error {
	h.mu.Lock()
	started := h.started
	h.started = nil
	h.mu.Unlock()

	if err := stopAll(ctx, started, h.logger); err != nil {
		return oops.Code(CodeLifecycle).With("phase", "stop").Wrap(err)
	}
	return nil
}

func stopAll(ctx context.Context, started []entry, logger *slog.Logger) error {
	var errs []error
	for _, e := range slices.Backward(started) {
		s, ok := e.module.(Stopper)
		if !ok {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Warn("module stop failed", "module", e.name, "error", err)
			errs = append(errs, oops.With("module", e.name).Wrap(err))
			continue
		}
		logger.Info("module stopped", "module", e.name)
	}
	return errors.Join(errs...)
}
