// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// tree.go provides a Valkey-backed cache for the serialized category tree.
// Building the nested tree touches every active category row; public
// navigation requests it constantly, so the JSON payload is cached and
// invalidated on any structural mutation.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// treeKey is the Valkey key holding the serialized category tree.
	treeKey = "categories:tree"

	// DefaultTreeTTL bounds staleness if an invalidation is ever missed.
	DefaultTreeTTL = 10 * time.Minute
)

// TreeCache manages the cached category tree in Valkey. A nil client
// disables caching entirely; every Get is then a miss.
type TreeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTreeCache creates a tree cache backed by the given Valkey client.
func NewTreeCache(client *redis.Client, ttl time.Duration) *TreeCache {
	if ttl == 0 {
		ttl = DefaultTreeTTL
	}
	return &TreeCache{client: client, ttl: ttl}
}

// Get retrieves the cached tree JSON. Returns false on miss or when
// caching is disabled.
func (tc *TreeCache) Get(ctx context.Context) ([]byte, bool) {
	if tc.client == nil {
		return nil, false
	}
	val, err := tc.client.Get(ctx, treeKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("tree cache get error", "error", err)
		return nil, false
	}
	slog.Debug("tree cache hit")
	return val, true
}

// Set stores the serialized tree with the configured TTL.
func (tc *TreeCache) Set(ctx context.Context, data []byte) {
	if tc.client == nil {
		return
	}
	if err := tc.client.Set(ctx, treeKey, data, tc.ttl).Err(); err != nil {
		slog.Warn("tree cache set error", "error", err)
	}
}

// Invalidate drops the cached tree. Called after every create, move,
// (de)activation, reorder, or delete.
func (tc *TreeCache) Invalidate(ctx context.Context) {
	if tc.client == nil {
		return
	}
	if err := tc.client.Del(ctx, treeKey).Err(); err != nil {
		slog.Warn("tree cache invalidate error", "error", err)
	}
	slog.Debug("tree cache invalidated")
}
