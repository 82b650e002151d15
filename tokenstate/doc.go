// Package tokenstate classifies bearer tokens by freshness.
//
// Tokens are decoded without verifying their signature: the classifier only
// needs the exp claim to decide whether a token should be used as-is, refreshed
// in the background, or refreshed before the request is sent. Trust in the token
// comes from the authenticated channel to the identity provider that issued it,
// never from this decode.
//
// # States
//
//   - Expired: exp is within ExpiredWithin (default 10s) of now, or the token
//     is missing, undecodable or carries no exp claim
//   - NearExpiration: exp is within NearExpirationWithin (default 30s) of now
//   - Valid: everything else
//
// # Quick Start
//
//	switch tokenstate.Classify(token) {
//	case tokenstate.Expired:
//	    // refresh before sending
//	case tokenstate.NearExpiration:
//	    // send, refresh in the background
//	default:
//	    // send
//	}
//
// BootstrapClaims extracts iss and sub from a refresh token at construction
// time. It is a configuration convenience, not a trust boundary.
package tokenstate
