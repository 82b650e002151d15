// Package tokenstore caches access tokens in two tiers.
//
// A short-lived local tier sits in front of a shared tier (a Backend, for
// example Redis or Valkey) so that several processes using the same client
// credentials share one token. Entries in the shared tier expire after a TTL
// derived from the token's expires_in, 80% of it by default.
//
// On a miss in both tiers the Store asks its refresh.Refresher for a new token
// and writes it back. Concurrent misses for the same key result in one refresh.
//
// Shared backends live in the redisstore and valkeystore subpackages.
package tokenstore
