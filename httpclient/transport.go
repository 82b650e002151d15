package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/AmmannChristian/go-oidcx/oauth2client"
)

const (
	// maxDrainSize bounds how much of a rejected response is read before it is discarded.
	maxDrainSize = 64 << 10

	// DefaultMaxReplayBodySize is the largest request body buffered for a replay.
	DefaultMaxReplayBodySize = 1 << 20
)

type (
	replayKey    struct{}
	requestIDKey struct{}
)

// WithScope returns a context whose requests are authenticated with a token for scope.
func WithScope(ctx context.Context, scope string) context.Context {
	return oauth2client.WithScope(ctx, scope)
}

// RequestID returns the ID an OAuth2Transport assigned to the request carrying ctx.
// Both the first dispatch and a replay carry the same ID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// OAuth2Transport is an http.RoundTripper that automatically adds OAuth2
// Bearer tokens to outgoing HTTP requests.
//
// It wraps an existing transport (typically http.DefaultTransport). Requests
// the TokenManager does not consider eligible pass through untouched. For the
// others the current token is attached, refreshed first if it has expired, and
// a response with a status listed in Config.RetryOnStatusCodes is replayed once
// with a freshly refreshed token.
//
// Replaying needs the request body twice. Bodies with GetBody set are rewound;
// other bodies up to MaxReplayBodySize are buffered in memory. A larger body is
// streamed as is and its request is never replayed.
type OAuth2Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// TokenManager provides OAuth2 access tokens.
	TokenManager *oauth2client.TokenManager

	// Logger optionally records token failures and replays.
	Logger oauth2client.Logger

	// MaxReplayBodySize caps the buffered body size. Zero selects
	// DefaultMaxReplayBodySize; a negative value disables buffering.
	MaxReplayBodySize int64
}

// RoundTrip implements http.RoundTripper interface.
// The token fetch respects the request context's cancellation and deadline.
// Errors from the base transport are returned unchanged.
func (t *OAuth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.TokenManager == nil {
		return nil, fmt.Errorf("httpclient: TokenManager is nil")
	}

	base := t.base()
	if !t.TokenManager.ShouldAuthenticate(req) {
		return base.RoundTrip(req)
	}

	ctx := req.Context()
	scope := oauth2client.ScopeFromContext(ctx)

	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = context.WithValue(ctx, requestIDKey{}, id)
	}

	// Get a valid access token using the request context
	token, err := t.TokenManager.Token(ctx, scope)
	if err != nil {
		closeBody(req)
		t.logf("httpclient: [%s] failed to get token for %s %s: %v", id, req.Method, req.URL.Redacted(), err)
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(ctx)
	if reqClone.Header.Get("Authorization") == "" {
		reqClone.Header.Set("Authorization", "Bearer "+token)
	}

	// an outer OAuth2Transport is already replaying this request
	if replayed, _ := ctx.Value(replayKey{}).(bool); replayed {
		return base.RoundTrip(reqClone)
	}

	if err := bufferBody(reqClone, t.maxReplayBodySize()); err != nil {
		return nil, err
	}

	resp, err := base.RoundTrip(reqClone)
	if err != nil {
		return nil, err
	}
	if !t.TokenManager.ShouldRetry(resp.StatusCode) || !rewindable(reqClone) {
		return resp, nil
	}

	t.logf("httpclient: [%s] %s %s answered %d, refreshing token", id, req.Method, req.URL.Redacted(), resp.StatusCode)
	drain(resp)

	retry := reqClone.Clone(context.WithValue(ctx, replayKey{}, true))
	return t.replay(retry, id, scope, resp.StatusCode)
}

// replay dispatches req once more with a freshly refreshed token. It never retries.
func (t *OAuth2Transport) replay(req *http.Request, id, scope string, status int) (*http.Response, error) {
	ctx := req.Context()

	token, err := t.TokenManager.Reauthenticate(ctx, scope, status)
	if err != nil {
		closeBody(req)
		t.logf("httpclient: [%s] failed to refresh token for replay: %v", id, err)
		return nil, fmt.Errorf("httpclient: failed to refresh token: %w", err)
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("httpclient: failed to rewind request body: %w", err)
		}
		req.Body = body
	}
	req.Header.Set("Authorization", "Bearer "+token)

	t.logf("httpclient: [%s] replaying %s %s with a refreshed token", id, req.Method, req.URL.Redacted())

	return t.base().RoundTrip(req)
}

func (t *OAuth2Transport) base() http.RoundTripper {
	// Use base transport or default
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *OAuth2Transport) logf(format string, args ...any) {
	if t.Logger != nil {
		t.Logger.Printf(format, args...)
	}
}

func (t *OAuth2Transport) maxReplayBodySize() int64 {
	if t.MaxReplayBodySize == 0 {
		return DefaultMaxReplayBodySize
	}
	return t.MaxReplayBodySize
}

// bufferBody makes the body of req replayable by reading it into memory
// unless req already knows how to produce it again. A body longer than limit
// keeps streaming from where the read stopped and leaves req not rewindable.
func bufferBody(req *http.Request, limit int64) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil || limit < 0 {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	if err != nil {
		_ = req.Body.Close()
		return fmt.Errorf("httpclient: failed to buffer request body: %w", err)
	}

	if int64(len(data)) > limit {
		req.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), req.Body), req.Body}
		return nil
	}

	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

// NewOAuth2Transport creates a new OAuth2Transport with the given token manager.
// The base transport defaults to http.DefaultTransport if not specified.
func NewOAuth2Transport(tm *oauth2client.TokenManager, base http.RoundTripper) *OAuth2Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &OAuth2Transport{
		Base:         base,
		TokenManager: tm,
	}
}
