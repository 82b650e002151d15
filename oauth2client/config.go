package oauth2client

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/AmmannChristian/go-oidcx/refresh"
	"github.com/AmmannChristian/go-oidcx/tokenstate"
	"github.com/AmmannChristian/go-oidcx/tokenstore"
)

// Config describes where tokens come from and which requests receive them.
type Config struct {
	// AccessToken is an optional initial access token.
	AccessToken string

	// RefreshToken selects the refresh_token grant. If ClientID or TokenURL
	// are empty they are derived from its "sub" and "iss" claims.
	RefreshToken string

	ClientID     string
	ClientSecret string

	// TokenURL is the token endpoint. Defaults to iss + "/token" of RefreshToken.
	TokenURL string

	Scope       string
	Resource    []string
	Audience    string
	ContentType refresh.ContentType

	// RetryOnStatusCodes lists downstream statuses that trigger one replay
	// with a fresh token. Defaults to 401.
	RetryOnStatusCodes []int

	// Origins lists scheme://host[:port] values whose requests are authenticated.
	Origins []string

	// URLs lists full URLs (without query) whose requests are authenticated.
	URLs []string

	// ShouldAuthenticate, if set, replaces the Origins and URLs matching.
	ShouldAuthenticate func(*http.Request) bool

	// Store configures the token cache.
	Store tokenstore.Config

	// HTTPClient is used for token endpoint calls. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Classifier decides token freshness. Defaults to the 10s/30s thresholds.
	Classifier *tokenstate.Classifier

	// EventSink receives token-refreshed events.
	EventSink EventSink

	// Logger receives refresh logging. Nil disables logging.
	Logger Logger
}

// resolve validates the configuration and fills in derived values.
func (c Config) resolve() (Config, error) {
	if c.RefreshToken != "" && (c.ClientID == "" || c.TokenURL == "") {
		issuer, subject, err := tokenstate.BootstrapClaims(c.RefreshToken)
		if err != nil {
			return c, &ConfigurationError{Field: "RefreshToken", Reason: err.Error()}
		}
		if c.ClientID == "" {
			c.ClientID = subject
		}
		if c.TokenURL == "" && issuer != "" {
			c.TokenURL = strings.TrimSuffix(issuer, "/") + "/token"
		}
	}

	if c.RefreshToken == "" && c.ClientSecret == "" {
		return c, &ConfigurationError{Reason: "refreshToken or clientSecret is required"}
	}
	if c.ClientID == "" {
		return c, &ConfigurationError{Field: "ClientID", Reason: "is required"}
	}
	if c.TokenURL == "" {
		return c, &ConfigurationError{Field: "TokenURL", Reason: "is required"}
	}

	parsed, err := url.Parse(c.TokenURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return c, &ConfigurationError{Field: "TokenURL", Reason: "must be an absolute URL"}
	}

	contentType, err := refresh.ParseContentType(string(c.ContentType))
	if err != nil {
		return c, &ConfigurationError{Field: "ContentType", Reason: err.Error()}
	}
	c.ContentType = contentType

	if len(c.RetryOnStatusCodes) == 0 {
		c.RetryOnStatusCodes = []int{http.StatusUnauthorized}
	}

	for _, origin := range c.Origins {
		if _, ok := normalizeOrigin(origin); !ok {
			return c, &ConfigurationError{Field: "Origins", Reason: "invalid origin " + origin}
		}
	}
	for _, raw := range c.URLs {
		if _, ok := normalizeURL(raw); !ok {
			return c, &ConfigurationError{Field: "URLs", Reason: "invalid URL " + raw}
		}
	}

	return c, nil
}

// tokenRequest returns the token endpoint request for the default scope.
func (c Config) tokenRequest() refresh.TokenRequest {
	return refresh.TokenRequest{
		TokenURL:     c.TokenURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RefreshToken: c.RefreshToken,
		Scope:        c.Scope,
		Resource:     append([]string(nil), c.Resource...),
		Audience:     c.Audience,
		ContentType:  c.ContentType,
	}
}
