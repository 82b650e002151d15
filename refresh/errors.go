package refresh

import (
	"errors"
	"fmt"
)

// ErrRefresh is matched by every error returned for a failed token refresh.
var ErrRefresh = errors.New("token refresh failed")

// ErrNoAccessToken is returned when the identity provider answers 200 without an access_token.
var ErrNoAccessToken = fmt.Errorf("%w: no access_token in response", ErrRefresh)

// ErrTokenTypeMismatch is matched by TokenTypeError.
var ErrTokenTypeMismatch = fmt.Errorf("%w: token_type mismatch", ErrRefresh)

// RefreshError reports a non-200 answer from the token endpoint.
type RefreshError struct {
	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Body is the raw upstream response body.
	Body string

	// Message is the "message", "error_description" or "error" field of a JSON body, if any.
	Message string
}

func (e *RefreshError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Body
	}
	if detail == "" {
		return fmt.Sprintf("%s: token endpoint returned status %d", ErrRefresh, e.StatusCode)
	}
	return fmt.Sprintf("%s: token endpoint returned status %d: %s", ErrRefresh, e.StatusCode, detail)
}

func (e *RefreshError) Unwrap() error {
	return ErrRefresh
}

// TokenTypeError reports a token_type other than bearer.
type TokenTypeError struct {
	TokenType string
}

func (e *TokenTypeError) Error() string {
	return fmt.Sprintf("%s: expected bearer, got %q", ErrTokenTypeMismatch, e.TokenType)
}

func (e *TokenTypeError) Unwrap() error {
	return ErrTokenTypeMismatch
}
