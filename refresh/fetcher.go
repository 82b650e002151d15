package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// maxResponseSize bounds how much of a token endpoint response is read.
	maxResponseSize = 1 << 20

	defaultTimeout = 30 * time.Second
)

// TokenFetcher performs a single token endpoint call.
type TokenFetcher interface {
	Fetch(ctx context.Context, req TokenRequest) (*oauth2.Token, error)
}

// Fetcher calls the token endpoint over HTTP.
type Fetcher struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewFetcher creates a Fetcher. A nil client gets a dedicated client with a 30s timeout.
func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Fetcher{
		httpClient: httpClient,
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   *string     `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// Fetch posts req to its token endpoint and validates the answer.
// The returned token must not be modified; it may be shared between callers.
func (f *Fetcher) Fetch(ctx context.Context, req TokenRequest) (*oauth2.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	httpReq, err := f.newTokenRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("refresh: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("refresh: failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RefreshError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Message:    errorMessage(body),
		}
	}

	return f.decodeToken(body)
}

func (f *Fetcher) newTokenRequest(ctx context.Context, req TokenRequest) (*http.Request, error) {
	if req.TokenURL == "" {
		return nil, errors.New("refresh: token URL is required")
	}

	body, contentType, err := req.encode()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.TokenURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("refresh: failed to create token request: %w", err)
	}

	httpReq.Header.Set("Content-Type", string(contentType))
	httpReq.Header.Set("Accept", "application/json")

	return httpReq, nil
}

func (f *Fetcher) decodeToken(body []byte) (*oauth2.Token, error) {
	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid token response: %v", ErrRefresh, err)
	}

	if payload.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	token := &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   "Bearer",
	}

	if payload.TokenType != nil {
		if !strings.EqualFold(*payload.TokenType, "bearer") {
			return nil, &TokenTypeError{TokenType: *payload.TokenType}
		}
		token.TokenType = *payload.TokenType
	}

	if payload.ExpiresIn != "" {
		seconds, err := payload.ExpiresIn.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid expires_in: %v", ErrRefresh, err)
		}
		if seconds > 0 {
			token.ExpiresIn = seconds
			token.Expiry = f.now().Add(ExpiresInDuration(seconds))
		}
	}

	return token, nil
}

// ExpiresInDuration converts an expires_in value to a Duration, saturating
// at the largest representable one instead of overflowing.
func ExpiresInDuration(seconds int64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	if seconds > math.MaxInt64/int64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds) * time.Second
}

// errorMessage extracts a human readable message from a JSON error body.
func errorMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"message", "error_description", "error"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}

	return ""
}
