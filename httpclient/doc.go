// Package httpclient offers HTTP client construction helpers with OAuth2 authentication and TLS/mTLS options.
//
// It provides a fluent Builder that creates an http.Client whose eligible requests carry a Bearer token
// managed by oauth2client.TokenManager, with configurable TLS (custom CA, mTLS, insecure for tests),
// timeouts, base transports and redirect handling. OAuth2Transport can wrap any RoundTripper.
//
// # Features
//
//   - Bearer injection only for configured origins, URLs or a custom predicate
//   - Expired tokens are refreshed before dispatch; near-expiry tokens in the background
//   - One replay with a fresh token on 401 (or the configured statuses)
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithOAuth2(oauth2client.Config{
//	        TokenURL:     "https://auth.example.com/oauth/v2/token",
//	        ClientID:     "client-id",
//	        ClientSecret: "client-secret",
//	        Scope:        "openid profile",
//	        Origins:      []string{"https://api.example.com"},
//	    }).
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get("https://api.example.com/data")
//
// Token endpoint calls use the same TLS transport unless Config.HTTPClient is set.
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewOAuth2Transport(tm, nil)
//	client := &http.Client{Transport: transport}
//
// Request bodies are buffered so a rejected request can be replayed.
package httpclient
