// Package refresh obtains access tokens from an OAuth2/OIDC identity provider.
//
// A TokenRequest describes one token endpoint call: the endpoint, the client,
// the grant material and the optional scope, resource and audience parameters.
// Fetcher performs the call and validates the response. Coordinator wraps a
// Fetcher so that concurrent refreshes for the same request fingerprint share a
// single outstanding call.
//
// # Grants
//
//   - refresh_token: used when TokenRequest.RefreshToken is set
//   - client_credentials: used otherwise
//
// # Response validation
//
//   - the status code must be exactly 200
//   - the JSON body must carry access_token
//   - token_type, when present, must be "bearer" (case-insensitive)
//
// All refresh failures satisfy errors.Is(err, ErrRefresh).
//
// # Quick Start
//
//	coordinator := refresh.NewCoordinator(refresh.NewFetcher(nil))
//	token, err := coordinator.Refresh(ctx, refresh.TokenRequest{
//	    TokenURL:     "https://auth.example.com/oauth/v2/token",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    Scope:        "openid",
//	})
package refresh
