// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package config loads DomainHive settings from defaults, an optional YAML
// file, the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/logging"
	"github.com/domainhive/domainhive/internal/store"
	"github.com/domainhive/domainhive/internal/xdg"
)

// EnvSecretKey names the environment variable holding the token secret.
const EnvSecretKey = "DOMAINHIVE_AUTH_SECRET_KEY"

// EnvDatabaseURL names the environment variable holding the database URL.
const EnvDatabaseURL = "DATABASE_URL"

// Error codes.
const (
	CodeLoadFailed = "CONFIG_LOAD_FAILED"
	CodeInvalid    = "CONFIG_INVALID"
)

// Config is the complete service configuration.
type Config struct {
	Auth     AuthConfig     `koanf:"auth"`
	HTTP     ListenConfig   `koanf:"http"`
	GRPC     GRPCConfig     `koanf:"grpc"`
	Metrics  ListenConfig   `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
}

// AuthConfig mirrors auth.Config.
type AuthConfig struct {
	SecretKey              string        `koanf:"secret_key"`
	TokenExpiration        time.Duration `koanf:"token_expiration"`
	RefreshTokenExpiration time.Duration `koanf:"refresh_token_expiration"`
	DisableRevocation      bool          `koanf:"disable_revocation"`
	LockoutThreshold       int           `koanf:"lockout_threshold"`
	LockoutDuration        time.Duration `koanf:"lockout_duration"`
}

// ListenConfig is a listen address. An empty address disables the listener.
type ListenConfig struct {
	Addr string `koanf:"addr"`
}

// GRPCConfig configures the gRPC listener.
type GRPCConfig struct {
	Addr     string `koanf:"addr"`
	TLS      bool   `koanf:"tls"`
	CertsDir string `koanf:"certs_dir"`
	CertName string `koanf:"cert_name"`
}

// DatabaseConfig selects the user store. An empty URL keeps users in memory.
type DatabaseConfig struct {
	URL            string `koanf:"url"`
	AutoMigrate    bool   `koanf:"auto_migrate"`
	ConnectRetries uint64 `koanf:"connect_retries"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Auth: AuthConfig{
			TokenExpiration:        auth.DefaultTokenExpiration,
			RefreshTokenExpiration: auth.DefaultRefreshTokenExpiration,
			LockoutDuration:        auth.DefaultLockoutDuration,
		},
		HTTP:    ListenConfig{Addr: ":8080"},
		GRPC:    GRPCConfig{Addr: ":9090", CertsDir: xdg.CertsDir(), CertName: "grpc"},
		Metrics: ListenConfig{Addr: ":9100"},
		Database: DatabaseConfig{
			AutoMigrate:    true,
			ConnectRetries: store.DefaultConnectRetries,
		},
		Log: LogConfig{Format: "json", Level: "info"},
	}
}

// ModuleConfig converts the auth section into an auth.Config.
func (c AuthConfig) ModuleConfig() auth.Config {
	return auth.Config{
		SecretKey:              c.SecretKey,
		TokenExpiration:        c.TokenExpiration,
		RefreshTokenExpiration: c.RefreshTokenExpiration,
		DisableRevocation:      c.DisableRevocation,
		LockoutThreshold:       c.LockoutThreshold,
		LockoutDuration:        c.LockoutDuration,
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.Auth.ModuleConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Addr == "" && c.GRPC.Addr == "" {
		errs = append(errs, oops.Code(CodeInvalid).Errorf("at least one of http.addr or grpc.addr must be set"))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, oops.Code(CodeInvalid).With("format", c.Log.Format).Errorf("log.format must be json or text"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.GRPC.TLS && c.GRPC.CertsDir == "" {
		errs = append(errs, oops.Code(CodeInvalid).Errorf("grpc.certs_dir is required when grpc.tls is set"))
	}
	return errors.Join(errs...)
}

// flagKeys maps flag names registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"http-addr":          "http.addr",
	"grpc-addr":          "grpc.addr",
	"grpc-tls":           "grpc.tls",
	"certs-dir":          "grpc.certs_dir",
	"metrics-addr":       "metrics.addr",
	"database-url":       "database.url",
	"auto-migrate":       "database.auto_migrate",
	"token-expiration":   "auth.token_expiration",
	"disable-revocation": "auth.disable_revocation",
	"lockout-threshold":  "auth.lockout_threshold",
	"lockout-duration":   "auth.lockout_duration",
	"log-format":         "log.format",
	"log-level":          "log.level",
}

// RegisterFlags adds the overridable settings to fs with defaults taken
// from Default. The token secret has no flag.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "HTTP listen address (empty disables)")
	fs.String("grpc-addr", d.GRPC.Addr, "gRPC listen address (empty disables)")
	fs.Bool("grpc-tls", d.GRPC.TLS, "serve gRPC over mutual TLS")
	fs.String("certs-dir", d.GRPC.CertsDir, "directory holding TLS certificates")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty disables)")
	fs.String("database-url", d.Database.URL, "PostgreSQL URL (empty keeps users in memory)")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
	fs.Duration("token-expiration", d.Auth.TokenExpiration, "token lifetime")
	fs.Bool("disable-revocation", d.Auth.DisableRevocation, "let logged out tokens verify until they expire")
	fs.Int("lockout-threshold", d.Auth.LockoutThreshold, "failed logins before lockout (0 disables)")
	fs.Duration("lockout-duration", d.Auth.LockoutDuration, "how long a lockout lasts")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Load builds a Config. path names a YAML file; when empty the default
// file under the XDG config directory is used if it exists. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		if _, err := os.Stat(xdg.ConfigFile()); err == nil {
			path = xdg.ConfigFile()
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code(CodeLoadFailed).With("path", path).Wrap(err)
		}
	}

	for env, key := range map[string]string{EnvSecretKey: "auth.secret_key", EnvDatabaseURL: "database.url"} {
		if v := os.Getenv(env); v != "" {
			if err := k.Set(key, v); err != nil {
				return Config{}, oops.Code(CodeLoadFailed).With("env", env).Wrap(err)
			}
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code(CodeLoadFailed).With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code(CodeLoadFailed).Wrap(err)
	}
	return cfg, nil
}
