package tokenstate

import (
	"time"
)

const (
	// DefaultExpiredWithin is the window before exp in which a token is already treated as expired.
	DefaultExpiredWithin = 10 * time.Second

	// DefaultNearExpirationWithin is the window before exp in which a token is refreshed optimistically.
	DefaultNearExpirationWithin = 30 * time.Second
)

// State is the freshness of a bearer token.
type State int

const (
	// Expired tokens must be refreshed before use.
	Expired State = iota
	// NearExpiration tokens are still usable but should be renewed in the background.
	NearExpiration
	// Valid tokens can be used as-is.
	Valid
)

// String returns the upper-case name of the state.
func (s State) String() string {
	switch s {
	case Expired:
		return "EXPIRED"
	case NearExpiration:
		return "NEAR_EXPIRATION"
	case Valid:
		return "VALID"
	default:
		return "UNKNOWN"
	}
}

// Classifier classifies tokens against configurable thresholds.
// The zero value uses the default thresholds and the wall clock.
type Classifier struct {
	// ExpiredWithin is the expiry window for Expired. Zero uses DefaultExpiredWithin.
	ExpiredWithin time.Duration

	// NearExpirationWithin is the expiry window for NearExpiration. Zero uses DefaultNearExpirationWithin.
	NearExpirationWithin time.Duration

	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

var defaultClassifier = &Classifier{}

// Classify classifies token with the default thresholds.
func Classify(token string) State {
	return defaultClassifier.Classify(token)
}

// Classify reports the state of token. Empty, undecodable and exp-less tokens are Expired.
func (c *Classifier) Classify(token string) State {
	if token == "" {
		return Expired
	}

	expiry, ok := Expiry(token)
	if !ok {
		return Expired
	}

	return c.ClassifyExpiry(expiry)
}

// ClassifyExpiry classifies an already known expiry instant.
func (c *Classifier) ClassifyExpiry(expiry time.Time) State {
	now := c.now()

	if !expiry.After(now.Add(c.expiredWithin())) {
		return Expired
	}
	if !expiry.After(now.Add(c.nearExpirationWithin())) {
		return NearExpiration
	}
	return Valid
}

func (c *Classifier) now() time.Time {
	if c == nil || c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Classifier) expiredWithin() time.Duration {
	if c == nil || c.ExpiredWithin <= 0 {
		return DefaultExpiredWithin
	}
	return c.ExpiredWithin
}

func (c *Classifier) nearExpirationWithin() time.Duration {
	if c == nil || c.NearExpirationWithin <= 0 {
		return DefaultNearExpirationWithin
	}
	return c.NearExpirationWithin
}
