package grpcclient

import (
	"errors"
	"fmt"

	"github.com/AmmannChristian/go-oidcx/internal/tlsconfig"
	"github.com/AmmannChristian/go-oidcx/oauth2client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Builder provides a fluent interface for constructing gRPC client connections
// with optional OAuth2 authentication and TLS/mTLS support.
type Builder struct {
	address string

	// OAuth2 configuration
	tokenManager *oauth2client.TokenManager
	oauth2Config *oauth2client.Config
	oauth2Opts   []oauth2client.Option

	tls tlsconfig.Options

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithOAuth2 authenticates every call with a token from a TokenManager built
// from cfg at Build time. Calls rejected with codes.Unauthenticated are retried
// once with a refreshed token.
func (b *Builder) WithOAuth2(cfg oauth2client.Config, opts ...oauth2client.Option) *Builder {
	b.oauth2Config = &cfg
	b.oauth2Opts = opts
	b.tokenManager = nil
	return b
}

// WithTokenManager authenticates every call with tokens from an existing TokenManager.
func (b *Builder) WithTokenManager(tm *oauth2client.TokenManager) *Builder {
	b.tokenManager = tm
	b.oauth2Config = nil
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (required)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tls = tlsconfig.Options{
		CAFile:     caFile,
		CertFile:   certFile,
		KeyFile:    keyFile,
		ServerName: serverName,
	}
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after OAuth2 and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection with the configured options.
//
// Returns:
//   - *grpc.ClientConn: gRPC connection, connected lazily on first use
//   - error: Error if the configuration is invalid
func (b *Builder) Build() (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}

	var opts []grpc.DialOption

	tm := b.tokenManager
	if b.oauth2Config != nil {
		var err error
		tm, err = oauth2client.NewTokenManager(*b.oauth2Config, b.oauth2Opts...)
		if err != nil {
			return nil, fmt.Errorf("grpcclient: OAuth2 config failed: %w", err)
		}
	}

	// Add OAuth2 interceptors if enabled
	if tm != nil {
		opts = append(opts,
			grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
			grpc.WithStreamInterceptor(tm.StreamClientInterceptor()),
		)
	}

	// Always TLS; without WithTLS the system roots are used, so a
	// plaintext connection needs an explicit dial option.
	tlsConfig, err := tlsconfig.Load(b.tls)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
	}
	opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))

	// Add custom dial options
	opts = append(opts, b.dialOpts...)

	// Create connection
	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}
