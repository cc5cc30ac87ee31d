// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ClientConfig configures connection behavior for Client.
type ClientConfig struct {
	// ConnectTimeout bounds each connect attempt. Default: 5s.
	ConnectTimeout time.Duration

	// MaxRetries is the number of connect attempts per connect cycle. Default: 3.
	MaxRetries uint

	// InitialBackoff is the first delay between attempts. Default: 50ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts. Default: 2s.
	MaxBackoff time.Duration

	// Cooldown is how long operations fail fast after a connect cycle
	// fails. Default: 30s.
	Cooldown time.Duration

	// Logger for connection events. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultClientConfig returns the production connection settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 5 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Cooldown:       30 * time.Second,
	}
}

func applyClientDefaults(cfg ClientConfig) ClientConfig {
	d := DefaultClientConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = d.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = d.MaxBackoff
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Client is the best-effort cache used by the pipeline.
//
// # Description
//
// Get and Set never return errors. Connection is established lazily on the
// first operation. A failed operation drops the connection so the next call
// reconnects. A failed connect cycle puts the client in cooldown, during
// which operations behave as misses without dialing.
//
// # Thread Safety
//
// Safe for concurrent use. At most one connect cycle runs at a time, and
// operations that arrive during it are misses.
type Client struct {
	connect Connector
	cfg     ClientConfig
	now     func() time.Time

	mu            sync.Mutex
	store         Store
	cooldownUntil time.Time
	connecting    bool
	closed        bool
}

// NewClient creates a Client. Nothing is dialed until the first operation.
func NewClient(connect Connector, cfg ClientConfig) *Client {
	return &Client{
		connect: connect,
		cfg:     applyClientDefaults(cfg),
		now:     time.Now,
	}
}

// Get returns the cached value for key.
//
// # Outputs
//
//   - []byte: The value, nil on miss.
//   - bool: True only on a hit. Any failure is reported as a miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	store := c.acquire(ctx)
	if store == nil {
		return nil, false
	}
	value, err := store.Get(ctx, key)
	if err == nil {
		return value, true
	}
	if !errors.Is(err, ErrNotFound) {
		c.cfg.Logger.Warn("cache read failed", "key", key, "error", err)
		c.drop(store)
	}
	return nil, false
}

// Set stores value under key for ttl and reports whether the write landed.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	store := c.acquire(ctx)
	if store == nil {
		return false
	}
	if err := store.Set(ctx, key, value, ttl); err != nil {
		c.cfg.Logger.Warn("cache write failed", "key", key, "error", err)
		c.drop(store)
		return false
	}
	return true
}

// Close releases the connection. Later operations are misses.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// acquire returns the live store, connecting if needed. Nil means
// unavailable. Only one caller runs a connect cycle; callers arriving while
// it is in progress get nil instead of waiting on it.
func (c *Client) acquire(ctx context.Context) Store {
	c.mu.Lock()
	if c.closed || c.connecting {
		c.mu.Unlock()
		return nil
	}
	if c.store != nil {
		store := c.store
		c.mu.Unlock()
		return store
	}
	if c.now().Before(c.cooldownUntil) {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	store, attempts, err := c.dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting = false

	if err != nil {
		c.cooldownUntil = c.now().Add(c.cfg.Cooldown)
		c.cfg.Logger.Warn("cache unavailable",
			"attempts", attempts,
			"cooldown", c.cfg.Cooldown,
			"error", err)
		return nil
	}
	if c.closed {
		_ = store.Close()
		return nil
	}

	c.store = store
	c.cfg.Logger.Info("cache connected", "attempts", attempts)
	return store
}

// dial runs one connect cycle with backoff. It is called without c.mu held.
func (c *Client) dial(ctx context.Context) (Store, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff

	attempt := 0
	store, err := backoff.Retry(ctx, func() (Store, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		s, err := c.connect(attemptCtx)
		if err != nil {
			c.cfg.Logger.Debug("cache connect attempt failed", "attempt", attempt, "error", err)
			return nil, err
		}
		return s, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.cfg.MaxRetries))
	return store, attempt, err
}

// drop discards store if it is still the current connection.
func (c *Client) drop(store Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != store {
		return
	}
	_ = c.store.Close()
	c.store = nil
}
