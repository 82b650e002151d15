package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AmmannChristian/go-oidcx/internal/tlsconfig"
	"github.com/AmmannChristian/go-oidcx/oauth2client"
)

// Builder provides a fluent interface for constructing HTTP clients
// with optional OAuth2 authentication and TLS/mTLS support.
type Builder struct {
	// OAuth2 configuration
	tokenManager *oauth2client.TokenManager
	oauth2Config *oauth2client.Config
	oauth2Opts   []oauth2client.Option
	logger       oauth2client.Logger

	tls tlsconfig.Options

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         30 * time.Second, // Default 30s timeout
		followRedirects: true,
	}
}

// WithTokenManager sets the OAuth2 token manager for automatic authentication.
func (b *Builder) WithTokenManager(tm *oauth2client.TokenManager) *Builder {
	b.tokenManager = tm
	b.oauth2Config = nil
	return b
}

// WithOAuth2 enables OAuth2 authentication by creating a new TokenManager at Build time.
//
// Unless cfg.HTTPClient is set, token endpoint calls use the same TLS settings
// and timeout as the built client, without the OAuth2 transport.
// Configuration errors are returned by Build.
func (b *Builder) WithOAuth2(cfg oauth2client.Config, opts ...oauth2client.Option) *Builder {
	b.oauth2Config = &cfg
	b.oauth2Opts = opts
	b.tokenManager = nil
	return b
}

// WithLogger sets a logger for token failures and request replays.
func (b *Builder) WithLogger(logger oauth2client.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tls.CAFile = caFile
	b.tls.CertFile = certFile
	b.tls.KeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tls.InsecureSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
// This is useful for adding custom middleware or using a custom connection pool.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
//
// Returns:
//   - *http.Client: Configured HTTP client
//   - error: Error if configuration is invalid
func (b *Builder) Build() (*http.Client, error) {
	transport := b.baseTransport
	if transport == nil {
		var err error
		if transport, err = b.defaultTransport(); err != nil {
			return nil, err
		}
	}

	tm := b.tokenManager
	if b.oauth2Config != nil {
		cfg := *b.oauth2Config
		if cfg.HTTPClient == nil {
			cfg.HTTPClient = &http.Client{Transport: transport, Timeout: b.timeout}
		}

		var err error
		tm, err = oauth2client.NewTokenManager(cfg, b.oauth2Opts...)
		if err != nil {
			return nil, fmt.Errorf("httpclient: OAuth2 config failed: %w", err)
		}
	}

	// Wrap with OAuth2 transport if token manager is set
	if tm != nil {
		oauth2Transport := NewOAuth2Transport(tm, transport)
		oauth2Transport.Logger = b.logger
		transport = oauth2Transport
	}

	// Build HTTP client
	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	// Configure redirect policy
	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// defaultTransport clones http.DefaultTransport with the configured TLS
// settings. A DefaultTransport that is not an *http.Transport is used as is.
func (b *Builder) defaultTransport() (http.RoundTripper, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport, nil
	}

	tlsConfig, err := tlsconfig.Load(b.tls)
	if err != nil {
		return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
	}

	cloned := base.Clone()
	cloned.TLSClientConfig = tlsConfig
	return cloned, nil
}

// NewHTTPClient is a convenience function that creates a simple HTTP client with OAuth2 authentication.
// For more configuration options, use Builder instead.
//
// Example:
//
//	tm, err := oauth2client.NewTokenManager(oauth2client.Config{
//	    TokenURL:     tokenURL,
//	    ClientID:     clientID,
//	    ClientSecret: clientSecret,
//	    Origins:      []string{"https://api.example.com"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := httpclient.NewHTTPClient(tm)
//	resp, err := client.Get("https://api.example.com/data")
func NewHTTPClient(tm *oauth2client.TokenManager) *http.Client {
	transport := NewOAuth2Transport(tm, nil)
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
