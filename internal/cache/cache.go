/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-backed, tenant-keyed mirror for playback
// state. Queues are authoritative in memory; the mirror only gives other
// processes best-effort visibility and lets preserved snapshots survive a
// process restart. All operations degrade gracefully when Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes for Redis.
const (
	KeySnapshot = "bragi:snapshot:" // + tenant_id
	KeyQueue    = "bragi:queue:"    // + tenant_id
)

// DefaultTTL bounds how long mirrored state lingers after the writer stops
// refreshing it.
const DefaultTTL = time.Hour

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration

	// If true, disable the mirror entirely on the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		TTL:            DefaultTTL,
		DisableOnError: true,
	}
}

// Cache mirrors per-tenant state into Redis with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a cache instance. An unreachable Redis is not an error; the
// mirror simply starts disabled.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, state mirror disabled")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis state mirror initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the mirror is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("mirror operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling state mirror due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal mirrored value")
		return false, nil
	}

	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal mirror value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// SetSnapshot mirrors a preserved playback snapshot for a tenant.
func (c *Cache) SetSnapshot(ctx context.Context, tenantID string, snapshot any) error {
	c.logger.Debug().Str("tenant_id", tenantID).Msg("mirroring preserved snapshot")
	return c.set(ctx, KeySnapshot+tenantID, snapshot)
}

// GetSnapshot retrieves a mirrored snapshot into dest. The second return is
// false when nothing is mirrored.
func (c *Cache) GetSnapshot(ctx context.Context, tenantID string, dest any) (bool, error) {
	return c.get(ctx, KeySnapshot+tenantID, dest)
}

// DeleteSnapshot removes a tenant's mirrored snapshot.
func (c *Cache) DeleteSnapshot(ctx context.Context, tenantID string) error {
	return c.delete(ctx, KeySnapshot+tenantID)
}

// SetQueue mirrors the tenant's queue contents for cross-process visibility.
func (c *Cache) SetQueue(ctx context.Context, tenantID string, tracks any) error {
	return c.set(ctx, KeyQueue+tenantID, tracks)
}

// GetQueue retrieves the mirrored queue contents into dest.
func (c *Cache) GetQueue(ctx context.Context, tenantID string, dest any) (bool, error) {
	return c.get(ctx, KeyQueue+tenantID, dest)
}

// DeleteQueue removes the tenant's mirrored queue.
func (c *Cache) DeleteQueue(ctx context.Context, tenantID string) error {
	return c.delete(ctx, KeyQueue+tenantID)
}
