// Package services contains the catalog clients the reconciliation engine
// talks to: Spotify as the source of record and the YouTube Data API as the
// search-and-mutate target.
//
// Clients are constructed per invocation around an access token; no global
// state is held. Token acquisition and refresh happen outside this package.
package services
