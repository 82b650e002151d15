// Package oauth2client keeps OAuth2/OIDC bearer tokens fresh for outbound gRPC and HTTP clients.
//
// A TokenManager holds the current access token for each scope it is asked
// about, classifies it against its expiry and decides what to do before a
// request goes out: a VALID token is used as is, a NEAR_EXPIRATION token is
// used while a background refresh replaces it, and an EXPIRED or missing token
// is replaced before the request is sent. Tokens come from a two-tier cache
// (package tokenstore) in front of the token endpoint (package refresh), so
// concurrent callers and cooperating processes share one refresh.
//
// # Features
//
//   - refresh_token and client_credentials grants, form or JSON bodies
//   - Bootstrap from a refresh token: client ID from "sub", token URL from "iss"
//   - Single-flight refresh per client and scope
//   - Local and shared (Redis, Valkey) token cache with TTL derived from expires_in
//   - gRPC unary and stream client interceptors that inject Bearer tokens
//   - token-refreshed events (EventSink) and optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	tm, err := oauth2client.NewTokenManager(oauth2client.Config{
//	    TokenURL:     "https://auth.example.com/oauth/v2/token",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    Scope:        "openid profile email",
//	    Origins:      []string{"https://api.example.com"},
//	}, oauth2client.WithLoggingEnabled())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
//	    grpc.WithStreamInterceptor(tm.StreamClientInterceptor()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := http.Client{Transport: httpclient.NewOAuth2Transport(tm, nil)}
//
// # Notes
//
//   - Configuration problems are reported by NewTokenManager as *ConfigurationError.
//   - Token endpoint failures match refresh.ErrRefresh; shared cache failures match
//     tokenstore.ErrBackendUnavailable unless Config.Store.FallbackOnBackendError is set.
//   - TokenManager is safe for concurrent use.
package oauth2client
