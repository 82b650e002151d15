package instrumentation

import (
	"errors"

	"github.com/AmmannChristian/go-oidcx/oauth2client"
	"github.com/AmmannChristian/go-oidcx/refresh"
	"github.com/AmmannChristian/go-oidcx/tokenstore"
)

// Error types attached to refresh failures.
const (
	ErrorTypeIdP       = "idp"
	ErrorTypeTokenType = "token_type"
	ErrorTypeCache     = "cache"
	ErrorTypeTransport = "transport"
)

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

var (
	_ oauth2client.EventSink       = (*Metrics)(nil)
	_ oauth2client.FailureObserver = (*Metrics)(nil)
	_ oauth2client.RetryObserver   = (*Metrics)(nil)
	_ oauth2client.CacheObserver   = (*Metrics)(nil)

	_ oauth2client.EventSink       = (*PrometheusSink)(nil)
	_ oauth2client.FailureObserver = (*PrometheusSink)(nil)
	_ oauth2client.RetryObserver   = (*PrometheusSink)(nil)
	_ oauth2client.CacheObserver   = (*PrometheusSink)(nil)
)

// ErrorType classifies a refresh failure for use as a low-cardinality label.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, refresh.ErrTokenTypeMismatch):
		return ErrorTypeTokenType
	case errors.Is(err, refresh.ErrRefresh):
		return ErrorTypeIdP
	case errors.Is(err, tokenstore.ErrBackendUnavailable):
		return ErrorTypeCache
	default:
		return ErrorTypeTransport
	}
}

func lookupResult(hit bool) string {
	if hit {
		return resultHit
	}
	return resultMiss
}
