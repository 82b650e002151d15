// Package redisstore provides a Redis backed shared tier for tokenstore.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AmmannChristian/go-oidcx/tokenstore"
)

// Config configures a Backend.
type Config struct {
	// KeyPrefix is prepended to every key. Empty by default, so keys are the
	// tokenstore keys ("name~serialized request") verbatim.
	KeyPrefix string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Backend stores entries as JSON strings in Redis.
type Backend struct {
	redis  redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ tokenstore.Backend = (*Backend)(nil)

// New wraps a go-redis client. The client is owned by the caller.
func New(client redis.UniversalClient, cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		redis:  client,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}
}

func (b *Backend) key(key string) string {
	return b.prefix + key
}

// Get implements tokenstore.Backend.
func (b *Backend) Get(ctx context.Context, key string) (*tokenstore.Entry, error) {
	data, err := b.redis.Get(ctx, b.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, tokenstore.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}

	var entry tokenstore.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// a corrupt value is treated as a miss so the next write replaces it
		b.logger.Warn("Discarding unreadable token cache entry", "key", key, "error", err)
		return nil, tokenstore.ErrNotFound
	}

	return &entry, nil
}

// Set implements tokenstore.Backend.
func (b *Backend) Set(ctx context.Context, key string, entry *tokenstore.Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redisstore: failed to marshal entry: %w", err)
	}

	if err := b.redis.Set(ctx, b.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set: %w", err)
	}

	b.logger.Debug("Stored token cache entry", "key", key, "ttl", ttl)
	return nil
}

// Delete implements tokenstore.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.redis.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete: %w", err)
	}
	return nil
}
