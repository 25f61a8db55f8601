// Package embed turns text into fixed-length vectors via a pluggable
// embedding model, with content-addressed caching and rate limiting.
//
// Model unavailability is an explicit condition: callers receive
// ErrUnavailable and decide their own fallback policy. Vectors are never
// fabricated to paper over a missing backend.
package embed
