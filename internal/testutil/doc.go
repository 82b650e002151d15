// Package testutil provides test helpers for go-oidcx packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// a recording mock identity provider, HMAC-signed test JWTs, and self-signed certificates
// for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockIdP: token endpoint that records calls (form or JSON bodies) and answers through an IdPHandler
//   - JSONResponse, IssueTokens, Sequence: canned IdPHandlers
//   - CreateToken / CreateRefreshToken: sign test JWTs with TestSigningKey
//   - RoundTripFunc, StaticJSONResponse, NewResponse: inline http.RoundTripper stubs
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
package testutil
