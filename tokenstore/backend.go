package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned by Backend.Get on a miss.
var ErrNotFound = errors.New("tokenstore: entry not found")

// ErrBackendUnavailable is matched by every BackendError.
var ErrBackendUnavailable = errors.New("tokenstore: shared backend unavailable")

// Entry is the value kept in a tier.
type Entry struct {
	Token *oauth2.Token `json:"token"`

	// TTL is the lifetime the entry was written with. Zero means it does not expire.
	TTL time.Duration `json:"ttl,omitempty"`
}

// Backend is a key/value tier with per-entry expiry.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under key. A zero ttl stores it without expiry.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// BackendError reports a failed shared tier operation.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("tokenstore: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}
