// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the content-addressable preset cache.
//
// # Description
//
// The pipeline treats the cache as best-effort: a read failure is a miss
// and a write failure is a no-op. Client implements that contract on top of
// a Store adapter (Redis or BadgerDB), connecting lazily and reconnecting
// with capped exponential backoff.
//
//	Pipeline ──► Client (lazy connect, backoff, cooldown) ──► Store
//	                                                         ├─ RedisStore
//	                                                         └─ BadgerStore
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned by Store.Get for a missing or expired key.
var ErrNotFound = errors.New("cache: key not found")

// Store is a key/value store with per-key TTL.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases the underlying connection.
	Close() error
}

// Connector opens a Store. The context bounds the connect attempt.
type Connector func(ctx context.Context) (Store, error)

// ConnectorFromURL returns the Connector for a cache endpoint URL.
//
// # Description
//
// Supported schemes:
//   - redis://, rediss://: Redis via go-redis.
//   - badger:///abs/path: persistent BadgerDB at the given directory.
//   - memory:// or "": in-memory BadgerDB (single process only).
//
// # Outputs
//
//   - Connector: Opens the store on demand; nothing is dialed here.
//   - error: Non-nil when the URL cannot be parsed or the scheme is unknown.
func ConnectorFromURL(endpoint string) (Connector, error) {
	endpoint = strings.Trim(endpoint, "\"' ")
	if endpoint == "" {
		return badgerConnector(InMemoryConfig()), nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "redis", "rediss":
		return redisConnector(endpoint), nil
	case "badger":
		cfg := DefaultConfig()
		cfg.Path = u.Path
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger cache URL %q has no path", endpoint)
		}
		return badgerConnector(cfg), nil
	case "memory":
		return badgerConnector(InMemoryConfig()), nil
	default:
		return nil, fmt.Errorf("unsupported cache URL scheme %q", u.Scheme)
	}
}
