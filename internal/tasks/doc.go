// Package tasks implements the playlist reconciliation engine.
//
// The core type is [Engine], which brings a Spotify playlist's track list
// over to a linked YouTube playlist: it pages the full source track list,
// consults prior resolution attempts to avoid redundant searches, resolves
// the remaining tracks through fuzzy search-and-score, and records every
// attempt as an append-only mapping row. [Engine.Check] is the read-only
// variant: it computes how far out of date the target playlist is without
// mutating anything.
//
// One Sync call is one sequential unit of work. The per-track loop is not
// parallelized; the bounding resource is the target catalog's request
// quota, and a token-bucket limiter paces the loop between tracks.
package tasks
