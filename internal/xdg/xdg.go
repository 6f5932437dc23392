// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package xdg provides XDG Base Directory paths for DomainHive.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "domainhive"

// ConfigDir returns $XDG_CONFIG_HOME/domainhive, falling back to
// ~/.config/domainhive.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// CertsDir returns the TLS certificates directory.
func CertsDir() string {
	return filepath.Join(ConfigDir(), "certs")
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	return nil
}
