package oauth2client

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

type scopeKey struct{}

// WithScope returns a context that requests tokens for scope instead of the configured one.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope set by WithScope, or "".
func ScopeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	scope, _ := ctx.Value(scopeKey{}).(string)
	return scope
}

// ShouldAuthenticate reports whether req should carry a bearer token.
//
// Requests to the token endpoint never do. Otherwise the configured predicate
// decides; without one, req must match a configured origin or URL.
func (tm *TokenManager) ShouldAuthenticate(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}

	target, ok := normalizeURL(req.URL.String())
	if ok && target == tm.tokenEndpoint {
		return false
	}

	if tm.shouldAuthenticate != nil {
		return tm.shouldAuthenticate(req)
	}

	if origin, ok := normalizeOrigin(req.URL.String()); ok {
		if _, found := tm.origins[origin]; found {
			return true
		}
	}

	if ok {
		_, found := tm.urls[target]
		return found
	}

	return false
}

// ShouldRetry reports whether a downstream status warrants a replay with a fresh token.
func (tm *TokenManager) ShouldRetry(status int) bool {
	return slices.Contains(tm.retryOn, status)
}

// normalizeOrigin returns the lower-cased scheme://host[:port] of raw.
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// normalizeURL returns raw without query or fragment, scheme and host lower-cased.
func normalizeURL(raw string) (string, bool) {
	origin, ok := normalizeOrigin(raw)
	if !ok {
		return "", false
	}

	u, _ := url.Parse(raw)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return origin + path, true
}
