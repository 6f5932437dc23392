// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectRetries   = 5
	DefaultConnectBaseDelay = 500 * time.Millisecond
	maxConnectDelay         = 10 * time.Second
)

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// MaxRetries is the number of extra ping attempts. Zero means DefaultConnectRetries.
	MaxRetries uint64

	// BaseDelay is the first backoff interval. Zero means DefaultConnectBaseDelay.
	BaseDelay time.Duration

	// Logger receives one line per failed attempt. Nil discards.
	Logger *slog.Logger
}

func (o ConnectOptions) backoff() retry.Backoff {
	retries := o.MaxRetries
	if retries == 0 {
		retries = DefaultConnectRetries
	}
	base := o.BaseDelay
	if base == 0 {
		base = DefaultConnectBaseDelay
	}
	return retry.WithMaxRetries(retries, retry.WithCappedDuration(maxConnectDelay, retry.NewExponential(base)))
}

// Connect opens a pgx pool and waits until the database answers a ping,
// retrying with exponential backoff.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := waitReady(ctx, pool, opts.backoff(), logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func waitReady(ctx context.Context, db pinger, backoff retry.Backoff, logger *slog.Logger) error {
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}
