package tokenstore

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/AmmannChristian/go-oidcx/refresh"
	"github.com/AmmannChristian/go-oidcx/tokenstate"
)

const (
	// DefaultName prefixes every key written by a Store.
	DefaultName = "refreshAccessToken"

	// DefaultLocalTTL bounds how long a token is served from the local tier.
	DefaultLocalTTL = 60 * time.Second

	// Tier names passed to LookupFunc.
	TierLocal  = "local"
	TierShared = "shared"
)

// TTLPolicy returns the shared tier lifetime for a freshly obtained token.
// Zero means the entry does not expire.
type TTLPolicy func(token *oauth2.Token) time.Duration

// DefaultTTL keeps a token for 80% of its expires_in.
func DefaultTTL(token *oauth2.Token) time.Duration {
	if token == nil || token.ExpiresIn <= 0 {
		return 0
	}
	return refresh.ExpiresInDuration(token.ExpiresIn) / 10 * 8
}

// SerializeFunc maps a token request to the variable part of its cache key.
type SerializeFunc func(req refresh.TokenRequest) string

// DefaultSerialize uses the request fingerprint, so secrets never appear in keys.
func DefaultSerialize(req refresh.TokenRequest) string {
	return req.Fingerprint()
}

// LookupFunc observes a cache lookup.
type LookupFunc func(ctx context.Context, tier string, hit bool)

// Config configures a Store.
type Config struct {
	// Name prefixes every key. Defaults to DefaultName.
	Name string

	// LocalTTL is the local tier lifetime. Zero selects DefaultLocalTTL;
	// a negative value disables the local tier.
	LocalTTL time.Duration

	// Backend is the shared tier. Defaults to a MemoryBackend.
	Backend Backend

	// TTL derives the shared tier lifetime. Defaults to DefaultTTL.
	TTL TTLPolicy

	// Serialize derives keys. Defaults to DefaultSerialize.
	Serialize SerializeFunc

	// FallbackOnBackendError makes shared tier failures non-fatal: reads fall
	// through to a refresh and failed writes are logged. By default they are
	// returned as *BackendError.
	FallbackOnBackendError bool

	// OnLookup, if set, is called for every tier lookup.
	OnLookup LookupFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Stats counts cache activity since the Store was created.
type Stats struct {
	LocalHits     int64
	SharedHits    int64
	Misses        int64
	Refreshes     int64
	BackendErrors int64
}

// Store serves tokens from its tiers and refreshes them on a miss.
type Store struct {
	name      string
	localTTL  time.Duration
	local     *MemoryBackend
	shared    Backend
	ttl       TTLPolicy
	serialize SerializeFunc
	fallback  bool
	onLookup  LookupFunc
	logger    *slog.Logger
	now       func() time.Time

	refresher refresh.Refresher
	group     singleflight.Group

	localHits     atomic.Int64
	sharedHits    atomic.Int64
	misses        atomic.Int64
	refreshes     atomic.Int64
	backendErrors atomic.Int64
}

// New creates a Store that obtains tokens from refresher.
func New(refresher refresh.Refresher, cfg Config) (*Store, error) {
	if refresher == nil {
		return nil, errors.New("tokenstore: refresher is required")
	}

	s := &Store{
		name:      cfg.Name,
		localTTL:  cfg.LocalTTL,
		shared:    cfg.Backend,
		ttl:       cfg.TTL,
		serialize: cfg.Serialize,
		fallback:  cfg.FallbackOnBackendError,
		onLookup:  cfg.OnLookup,
		logger:    cfg.Logger,
		now:       time.Now,
		refresher: refresher,
	}

	if s.name == "" {
		s.name = DefaultName
	}
	if s.localTTL == 0 {
		s.localTTL = DefaultLocalTTL
	}
	if s.localTTL > 0 {
		s.local = NewMemoryBackend()
	}
	if s.shared == nil {
		s.shared = NewMemoryBackend()
	}
	if s.ttl == nil {
		s.ttl = DefaultTTL
	}
	if s.serialize == nil {
		s.serialize = DefaultSerialize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Key returns the cache key for req.
func (s *Store) Key(req refresh.TokenRequest) string {
	return s.name + "~" + s.serialize(req)
}

// Token returns a cached token for req, refreshing it on a miss in both tiers.
func (s *Store) Token(ctx context.Context, req refresh.TokenRequest) (*oauth2.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	key := s.Key(req)
	if token := s.lookupLocal(ctx, key); token != nil {
		return token, nil
	}

	detached := context.WithoutCancel(ctx)
	results := s.group.DoChan(key, func() (any, error) {
		return s.load(detached, key, req)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refresh obtains a new token for req without consulting either tier and
// writes it to both.
func (s *Store) Refresh(ctx context.Context, req refresh.TokenRequest) (*oauth2.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	key := s.Key(req)
	token, err := s.refresher.Refresh(ctx, req)
	if err != nil {
		return nil, err
	}
	s.refreshes.Add(1)

	if err := s.write(ctx, key, token); err != nil {
		return nil, err
	}

	return token, nil
}

// Clear removes the entry for req from both tiers.
func (s *Store) Clear(ctx context.Context, req refresh.TokenRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	key := s.Key(req)
	if s.local != nil {
		_ = s.local.Delete(ctx, key)
	}

	if err := s.shared.Delete(ctx, key); err != nil {
		return s.backendFailure("delete", key, err)
	}

	return nil
}

// Stats returns a snapshot of the cache counters.
func (s *Store) Stats() Stats {
	return Stats{
		LocalHits:     s.localHits.Load(),
		SharedHits:    s.sharedHits.Load(),
		Misses:        s.misses.Load(),
		Refreshes:     s.refreshes.Load(),
		BackendErrors: s.backendErrors.Load(),
	}
}

func (s *Store) lookupLocal(ctx context.Context, key string) *oauth2.Token {
	if s.local == nil {
		return nil
	}

	entry, err := s.local.Get(ctx, key)
	hit := err == nil && entry.Token != nil
	s.observe(ctx, TierLocal, hit)
	if !hit {
		return nil
	}

	s.localHits.Add(1)
	return entry.Token
}

func (s *Store) load(ctx context.Context, key string, req refresh.TokenRequest) (*oauth2.Token, error) {
	// a flight that just finished may have filled the local tier
	if s.local != nil {
		if entry, err := s.local.Get(ctx, key); err == nil && entry.Token != nil {
			s.localHits.Add(1)
			return entry.Token, nil
		}
	}

	entry, err := s.shared.Get(ctx, key)
	switch {
	case err == nil && entry.Token != nil:
		s.observe(ctx, TierShared, true)
		s.sharedHits.Add(1)
		s.storeLocal(ctx, key, entry.Token, s.remaining(entry.Token, 0))
		return entry.Token, nil
	case err == nil, errors.Is(err, ErrNotFound):
		s.observe(ctx, TierShared, false)
	default:
		if failure := s.backendFailure("get", key, err); failure != nil {
			return nil, failure
		}
	}

	s.misses.Add(1)

	token, err := s.refresher.Refresh(ctx, req)
	if err != nil {
		return nil, err
	}
	s.refreshes.Add(1)

	if err := s.write(ctx, key, token); err != nil {
		return nil, err
	}

	return token, nil
}

// write stores token in the shared tier, then in the local tier.
func (s *Store) write(ctx context.Context, key string, token *oauth2.Token) error {
	ttl := s.remaining(token, s.ttl(token))
	if ttl < 0 {
		s.logger.Debug("token already expired, not caching", "store", s.name, "key", key)
		if s.local != nil {
			_ = s.local.Delete(ctx, key)
		}
		return nil
	}

	if err := s.shared.Set(ctx, key, &Entry{Token: token, TTL: ttl}, ttl); err != nil {
		if failure := s.backendFailure("set", key, err); failure != nil {
			return failure
		}
	}

	s.storeLocal(ctx, key, token, ttl)
	return nil
}

func (s *Store) storeLocal(ctx context.Context, key string, token *oauth2.Token, ttl time.Duration) {
	if s.local == nil || ttl < 0 {
		return
	}

	localTTL := s.localTTL
	if ttl > 0 && ttl < localTTL {
		localTTL = ttl
	}
	_ = s.local.Set(ctx, key, &Entry{Token: token, TTL: localTTL}, localTTL)
}

// remaining clamps ttl to the token's remaining lifetime.
// It returns a negative duration when the token has already expired.
func (s *Store) remaining(token *oauth2.Token, ttl time.Duration) time.Duration {
	expiry, ok := tokenstate.Expiry(token.AccessToken)
	if !ok {
		expiry = token.Expiry
	}
	if expiry.IsZero() {
		return ttl
	}

	left := expiry.Sub(s.now())
	if left <= 0 {
		return -1
	}
	if ttl == 0 || left < ttl {
		return left
	}
	return ttl
}

func (s *Store) observe(ctx context.Context, tier string, hit bool) {
	if s.onLookup != nil {
		s.onLookup(ctx, tier, hit)
	}
}

// backendFailure returns the error to surface for a failed shared tier
// operation, or nil when falling back.
func (s *Store) backendFailure(op, key string, err error) error {
	s.backendErrors.Add(1)

	if s.fallback {
		s.logger.Warn("shared token cache unavailable, continuing without it",
			"store", s.name, "op", op, "error", err)
		return nil
	}

	s.logger.Error("shared token cache unavailable",
		"store", s.name, "op", op, "error", err)
	return &BackendError{Op: op, Key: key, Err: err}
}
