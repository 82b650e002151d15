package oauth2client

import (
	"context"
	"time"
)

// RefreshReason tells why a token was replaced.
type RefreshReason string

const (
	ReasonExpired        RefreshReason = "expired"
	ReasonNearExpiration RefreshReason = "near-expiration"
	ReasonRetry          RefreshReason = "retry"
	ReasonForced         RefreshReason = "forced"
)

// Event is emitted for every successful token endpoint call the TokenManager makes.
// Tokens served from the cache emit nothing.
type Event struct {
	Token       string
	Scope       string
	Fingerprint string
	Reason      RefreshReason
	At          time.Time
}

// EventSink receives token-refreshed events.
// Implementations must be safe for concurrent use and should not block.
type EventSink interface {
	TokenRefreshed(ctx context.Context, event Event)
}

// FailureObserver is implemented by sinks that also want failed refreshes.
type FailureObserver interface {
	RefreshFailed(ctx context.Context, reason RefreshReason, err error)
}

// RetryObserver is implemented by sinks that want to know about replays.
type RetryObserver interface {
	RequestRetried(ctx context.Context, status int)
}

// CacheObserver is implemented by sinks that want token cache lookups.
type CacheObserver interface {
	CacheLookup(ctx context.Context, tier string, hit bool)
}

// EventFunc adapts a function to EventSink.
type EventFunc func(ctx context.Context, event Event)

// TokenRefreshed implements EventSink.
func (f EventFunc) TokenRefreshed(ctx context.Context, event Event) {
	f(ctx, event)
}

// NopSink discards events.
type NopSink struct{}

// TokenRefreshed implements EventSink.
func (NopSink) TokenRefreshed(context.Context, Event) {}

// MultiSink fans out to every sink, including the optional observer interfaces.
type MultiSink []EventSink

// TokenRefreshed implements EventSink.
func (m MultiSink) TokenRefreshed(ctx context.Context, event Event) {
	for _, sink := range m {
		sink.TokenRefreshed(ctx, event)
	}
}

// RefreshFailed implements FailureObserver.
func (m MultiSink) RefreshFailed(ctx context.Context, reason RefreshReason, err error) {
	for _, sink := range m {
		if observer, ok := sink.(FailureObserver); ok {
			observer.RefreshFailed(ctx, reason, err)
		}
	}
}

// RequestRetried implements RetryObserver.
func (m MultiSink) RequestRetried(ctx context.Context, status int) {
	for _, sink := range m {
		if observer, ok := sink.(RetryObserver); ok {
			observer.RequestRetried(ctx, status)
		}
	}
}

// CacheLookup implements CacheObserver.
func (m MultiSink) CacheLookup(ctx context.Context, tier string, hit bool) {
	for _, sink := range m {
		if observer, ok := sink.(CacheObserver); ok {
			observer.CacheLookup(ctx, tier, hit)
		}
	}
}
