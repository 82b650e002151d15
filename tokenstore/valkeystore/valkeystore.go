// Package valkeystore provides a Valkey backed shared tier for tokenstore.
package valkeystore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/AmmannChristian/go-oidcx/tokenstore"
)

const (
	// DefaultKeyPrefix is prepended to every key.
	DefaultKeyPrefix = "oidcx:"

	// connectionVerifyTimeout bounds the initial PING.
	connectionVerifyTimeout = 5 * time.Second

	// maxEntrySize rejects oversized values read back from the server.
	maxEntrySize = 64 * 1024
)

// Config holds configuration for the Valkey backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "oidcx:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Backend stores entries as JSON strings in Valkey.
type Backend struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger
	owned  bool
}

var _ tokenstore.Backend = (*Backend)(nil)

// New connects to Valkey and verifies the connection.
func New(cfg Config) (*Backend, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkeystore: address is required")
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("valkeystore: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkeystore: failed to connect: %w", err)
	}

	b := NewWithClient(client, cfg.KeyPrefix, cfg.Logger)
	b.owned = true

	b.logger.Info("Connected to Valkey token cache",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", b.prefix)

	return b, nil
}

// NewWithClient wraps an existing client. The client is owned by the caller.
func NewWithClient(client valkeygo.Client, prefix string, logger *slog.Logger) *Backend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Close closes the connection if New created it.
func (b *Backend) Close() {
	if b.owned {
		b.client.Close()
		b.logger.Info("Valkey token cache connection closed")
	}
}

func (b *Backend) key(key string) string {
	return b.prefix + key
}

// Get implements tokenstore.Backend.
func (b *Backend) Get(ctx context.Context, key string) (*tokenstore.Entry, error) {
	data, err := b.client.Do(ctx, b.client.B().Get().Key(b.key(key)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, tokenstore.ErrNotFound
		}
		return nil, fmt.Errorf("valkeystore: get: %w", err)
	}

	if len(data) > maxEntrySize {
		b.logger.Warn("Discarding oversized token cache entry", "key", key, "size", len(data))
		return nil, tokenstore.ErrNotFound
	}

	var entry tokenstore.Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		b.logger.Warn("Discarding unreadable token cache entry", "key", key, "error", err)
		return nil, tokenstore.ErrNotFound
	}

	return &entry, nil
}

// Set implements tokenstore.Backend.
func (b *Backend) Set(ctx context.Context, key string, entry *tokenstore.Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("valkeystore: failed to marshal entry: %w", err)
	}

	var execErr error
	if ttl > 0 {
		execErr = b.client.Do(ctx, b.client.B().Set().Key(b.key(key)).Value(string(data)).Px(ttl).Build()).Error()
	} else {
		execErr = b.client.Do(ctx, b.client.B().Set().Key(b.key(key)).Value(string(data)).Build()).Error()
	}
	if execErr != nil {
		return fmt.Errorf("valkeystore: set: %w", execErr)
	}

	b.logger.Debug("Stored token cache entry", "key", key, "ttl", ttl)
	return nil
}

// Delete implements tokenstore.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Do(ctx, b.client.B().Del().Key(b.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("valkeystore: delete: %w", err)
	}
	return nil
}

// isNilError reports whether err is a Valkey nil reply.
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
