package oauth2client

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-oidcx/refresh"
	"github.com/AmmannChristian/go-oidcx/tokenstate"
	"github.com/AmmannChristian/go-oidcx/tokenstore"
)

// Logger is an interface for optional logging in TokenManager.
// Implementations can log token refresh events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenManager keeps a current access token per scope and decides when to
// refresh it. It is safe for concurrent access.
type TokenManager struct {
	request       refresh.TokenRequest
	tokenEndpoint string

	classifier *tokenstate.Classifier
	refresher  refresh.Refresher
	store      *tokenstore.Store
	storeCfg   tokenstore.Config
	httpClient *http.Client
	sink       EventSink
	logger     Logger // optional logger

	retryOn            []int
	origins            map[string]struct{}
	urls               map[string]struct{}
	shouldAuthenticate func(*http.Request) bool

	// cells holds one *atomic.Pointer[oauth2.Token] per request fingerprint.
	cells   sync.Map
	current *atomic.Pointer[oauth2.Token]

	// pending holds the fingerprints with a background refresh running.
	pending sync.Map
	wg      sync.WaitGroup

	now func() time.Time
}

// Option is a functional option for configuring TokenManager.
type Option func(*TokenManager)

// WithLogger sets a custom logger for token refresh events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(tm *TokenManager) {
		tm.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(tm *TokenManager) {
		tm.logger = log.Default()
	}
}

// WithEventSink sets the receiver of token-refreshed events.
func WithEventSink(sink EventSink) Option {
	return func(tm *TokenManager) {
		tm.sink = sink
	}
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(client *http.Client) Option {
	return func(tm *TokenManager) {
		tm.httpClient = client
	}
}

// WithRefresher replaces the token endpoint client. The refresher is used
// behind the token cache, so it is only called on cache misses and forced refreshes.
func WithRefresher(refresher refresh.Refresher) Option {
	return func(tm *TokenManager) {
		tm.refresher = refresher
	}
}

// WithBackend sets the shared tier of the token cache.
func WithBackend(backend tokenstore.Backend) Option {
	return func(tm *TokenManager) {
		tm.storeCfg.Backend = backend
	}
}

// NewTokenManager validates cfg and creates a TokenManager.
//
// Errors are *ConfigurationError. Nothing is fetched until a token is needed.
func NewTokenManager(cfg Config, opts ...Option) (*TokenManager, error) {
	resolved, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	tm := &TokenManager{
		request:            resolved.tokenRequest(),
		classifier:         resolved.Classifier,
		storeCfg:           resolved.Store,
		httpClient:         resolved.HTTPClient,
		sink:               resolved.EventSink,
		logger:             resolved.Logger,
		retryOn:            resolved.RetryOnStatusCodes,
		origins:            make(map[string]struct{}, len(resolved.Origins)),
		urls:               make(map[string]struct{}, len(resolved.URLs)),
		shouldAuthenticate: resolved.ShouldAuthenticate,
		now:                time.Now,
	}

	// Apply options
	for _, opt := range opts {
		opt(tm)
	}

	for _, origin := range resolved.Origins {
		normalized, _ := normalizeOrigin(origin)
		tm.origins[normalized] = struct{}{}
	}
	for _, raw := range resolved.URLs {
		normalized, _ := normalizeURL(raw)
		tm.urls[normalized] = struct{}{}
	}
	tm.tokenEndpoint, _ = normalizeURL(resolved.TokenURL)

	if tm.classifier == nil {
		tm.classifier = &tokenstate.Classifier{}
	}
	if tm.sink == nil {
		tm.sink = NopSink{}
	}
	if tm.refresher == nil {
		tm.refresher = refresh.NewCoordinator(&notifyingFetcher{tm: tm, next: refresh.NewFetcher(tm.httpClient)})
	} else {
		tm.refresher = &notifyingRefresher{tm: tm, next: tm.refresher}
	}
	if tm.storeCfg.OnLookup == nil {
		if observer, ok := tm.sink.(CacheObserver); ok {
			tm.storeCfg.OnLookup = observer.CacheLookup
		}
	}

	tm.store, err = tokenstore.New(tm.refresher, tm.storeCfg)
	if err != nil {
		return nil, fmt.Errorf("oauth2client: failed to create token store: %w", err)
	}

	tm.current = tm.cell(tm.request)
	if resolved.AccessToken != "" {
		tm.current.Store(&oauth2.Token{AccessToken: resolved.AccessToken, TokenType: "Bearer"})
	}

	return tm, nil
}

// CurrentToken returns the access token for the configured scope without refreshing it.
func (tm *TokenManager) CurrentToken() string {
	if token := tm.current.Load(); token != nil {
		return token.AccessToken
	}
	return ""
}

// State classifies the current token for the configured scope.
func (tm *TokenManager) State() tokenstate.State {
	return tm.classify(tm.current.Load())
}

// Store returns the token cache.
func (tm *TokenManager) Store() *tokenstore.Store {
	return tm.store
}

// Token returns an access token for scope; an empty scope selects the configured one.
//
// A VALID token is returned as is. A NEAR_EXPIRATION token is returned too, and a
// background refresh is started. An EXPIRED or missing token is replaced
// synchronously; if that fails the error is returned.
func (tm *TokenManager) Token(ctx context.Context, scope string) (string, error) {
	token, err := tm.token(ctx, tm.request.WithScope(scope))
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (tm *TokenManager) token(ctx context.Context, req refresh.TokenRequest) (*oauth2.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cell := tm.cell(req)
	current := cell.Load()

	switch tm.classify(current) {
	case tokenstate.Valid:
		return current, nil
	case tokenstate.NearExpiration:
		tm.refreshAsync(ctx, req)
		return current, nil
	}

	token, err := tm.obtain(withReason(ctx, ReasonExpired), req)
	if err != nil {
		tm.failed(ctx, ReasonExpired, err)
		return nil, fmt.Errorf("oauth2client: failed to obtain token: %w", err)
	}

	tm.publish(req, token, ReasonExpired)
	return token, nil
}

// obtain reads the token through the cache. A cached token that is already
// expired is evicted and replaced once.
func (tm *TokenManager) obtain(ctx context.Context, req refresh.TokenRequest) (*oauth2.Token, error) {
	token, err := tm.store.Token(ctx, req)
	if err != nil {
		return nil, err
	}

	if !tm.knownExpired(token) {
		return token, nil
	}

	tm.logf("oauth2client: cached token %s already expired, clearing cache", maskToken(token.AccessToken))
	if err := tm.store.Clear(ctx, req); err != nil {
		return nil, err
	}

	return tm.store.Refresh(ctx, req)
}

// Refresh replaces the token for scope with a new one from the token endpoint,
// bypassing the cache.
func (tm *TokenManager) Refresh(ctx context.Context, scope string) (string, error) {
	return tm.forceRefresh(ctx, tm.request.WithScope(scope), ReasonForced)
}

// Reauthenticate is Refresh after a downstream answered status with the current token.
func (tm *TokenManager) Reauthenticate(ctx context.Context, scope string, status int) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer, ok := tm.sink.(RetryObserver); ok {
		observer.RequestRetried(ctx, status)
	}
	return tm.forceRefresh(ctx, tm.request.WithScope(scope), ReasonRetry)
}

func (tm *TokenManager) forceRefresh(ctx context.Context, req refresh.TokenRequest, reason RefreshReason) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	token, err := tm.store.Refresh(withReason(ctx, reason), req)
	if err != nil {
		tm.failed(ctx, reason, err)
		return "", fmt.Errorf("oauth2client: failed to refresh token: %w", err)
	}

	tm.publish(req, token, reason)
	return token.AccessToken, nil
}

// RefreshAsync starts a background refresh for scope unless one is already running.
// The refresh outlives ctx; failures are logged and otherwise ignored.
func (tm *TokenManager) RefreshAsync(ctx context.Context, scope string) {
	if ctx == nil {
		ctx = context.Background()
	}
	tm.refreshAsync(ctx, tm.request.WithScope(scope))
}

func (tm *TokenManager) refreshAsync(ctx context.Context, req refresh.TokenRequest) {
	fingerprint := req.Fingerprint()
	if _, running := tm.pending.LoadOrStore(fingerprint, struct{}{}); running {
		return
	}

	detached := withReason(context.WithoutCancel(ctx), ReasonNearExpiration)

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		defer tm.pending.Delete(fingerprint)

		token, err := tm.renew(detached, req)
		if err != nil {
			tm.failed(detached, ReasonNearExpiration, err)
			tm.logf("oauth2client: background token refresh failed: %v", err)
			return
		}

		tm.publish(req, token, ReasonNearExpiration)
	}()
}

// renew prefers a cached token that is still VALID, and refreshes otherwise.
func (tm *TokenManager) renew(ctx context.Context, req refresh.TokenRequest) (*oauth2.Token, error) {
	token, err := tm.store.Token(ctx, req)
	if err != nil {
		return nil, err
	}
	if tm.classify(token) == tokenstate.Valid {
		return token, nil
	}
	return tm.store.Refresh(ctx, req)
}

// Wait blocks until all background refreshes have finished.
func (tm *TokenManager) Wait() {
	tm.wg.Wait()
}

// Clear forgets the token for scope and evicts it from the cache.
func (tm *TokenManager) Clear(ctx context.Context, scope string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req := tm.request.WithScope(scope)
	tm.cell(req).Store(nil)

	if err := tm.store.Clear(ctx, req); err != nil {
		return fmt.Errorf("oauth2client: failed to clear token cache: %w", err)
	}
	return nil
}

// TokenSource adapts the manager to oauth2.TokenSource for scope.
func (tm *TokenManager) TokenSource(scope string) oauth2.TokenSource {
	return &tokenSource{tm: tm, req: tm.request.WithScope(scope)}
}

type tokenSource struct {
	tm  *TokenManager
	req refresh.TokenRequest
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.tm.token(context.Background(), s.req)
	if err != nil {
		return nil, err
	}

	out := *token
	if out.Expiry.IsZero() {
		if expiry, ok := tokenstate.Expiry(out.AccessToken); ok {
			out.Expiry = expiry
		}
	}
	return &out, nil
}

func (tm *TokenManager) cell(req refresh.TokenRequest) *atomic.Pointer[oauth2.Token] {
	if tm.current != nil && req.Scope == tm.request.Scope {
		return tm.current
	}

	value, _ := tm.cells.LoadOrStore(req.Fingerprint(), new(atomic.Pointer[oauth2.Token]))
	return value.(*atomic.Pointer[oauth2.Token])
}

// publish makes token current for req.
func (tm *TokenManager) publish(req refresh.TokenRequest, token *oauth2.Token, reason RefreshReason) {
	previous := tm.cell(req).Swap(token)
	if previous != nil && previous.AccessToken == token.AccessToken {
		return
	}
	tm.logf("oauth2client: using new access token %s (%s)", maskToken(token.AccessToken), reason)
}

// refreshed emits a token-refreshed event for a token the endpoint just issued.
func (tm *TokenManager) refreshed(ctx context.Context, req refresh.TokenRequest, token *oauth2.Token) {
	tm.sink.TokenRefreshed(ctx, Event{
		Token:       token.AccessToken,
		Scope:       req.Scope,
		Fingerprint: req.Fingerprint(),
		Reason:      reasonFrom(ctx),
		At:          tm.now(),
	})
}

func (tm *TokenManager) failed(ctx context.Context, reason RefreshReason, err error) {
	if observer, ok := tm.sink.(FailureObserver); ok {
		observer.RefreshFailed(ctx, reason, err)
	}
}

// classify treats a token without any known expiry as EXPIRED, so it is
// always read through the cache.
func (tm *TokenManager) classify(token *oauth2.Token) tokenstate.State {
	if token == nil || token.AccessToken == "" {
		return tokenstate.Expired
	}
	if expiry, ok := tm.expiry(token); ok {
		return tm.classifier.ClassifyExpiry(expiry)
	}
	return tokenstate.Expired
}

func (tm *TokenManager) knownExpired(token *oauth2.Token) bool {
	expiry, ok := tm.expiry(token)
	return ok && tm.classifier.ClassifyExpiry(expiry) == tokenstate.Expired
}

func (tm *TokenManager) expiry(token *oauth2.Token) (time.Time, bool) {
	if expiry, ok := tokenstate.Expiry(token.AccessToken); ok {
		return expiry, true
	}
	if !token.Expiry.IsZero() {
		return token.Expiry, true
	}
	return time.Time{}, false
}

func (tm *TokenManager) logf(format string, args ...any) {
	// Log only if logger is configured
	if tm.logger != nil {
		tm.logger.Printf(format, args...)
	}
}

// maskToken keeps the first characters of a token for log correlation.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

type reasonKey struct{}

func withReason(ctx context.Context, reason RefreshReason) context.Context {
	return context.WithValue(ctx, reasonKey{}, reason)
}

// reasonFrom defaults to ReasonExpired, the reason of a plain cache miss.
func reasonFrom(ctx context.Context) RefreshReason {
	if reason, ok := ctx.Value(reasonKey{}).(RefreshReason); ok {
		return reason
	}
	return ReasonExpired
}

// notifyingFetcher sits behind the refresh coordinator, so concurrent
// callers sharing one endpoint call produce a single event.
type notifyingFetcher struct {
	tm   *TokenManager
	next refresh.TokenFetcher
}

func (f *notifyingFetcher) Fetch(ctx context.Context, req refresh.TokenRequest) (*oauth2.Token, error) {
	token, err := f.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	f.tm.refreshed(ctx, req, token)
	return token, nil
}

// notifyingRefresher wraps a refresher supplied through WithRefresher.
type notifyingRefresher struct {
	tm   *TokenManager
	next refresh.Refresher
}

func (r *notifyingRefresher) Refresh(ctx context.Context, req refresh.TokenRequest) (*oauth2.Token, error) {
	token, err := r.next.Refresh(ctx, req)
	if err != nil {
		return nil, err
	}
	r.tm.refreshed(ctx, req, token)
	return token, nil
}
