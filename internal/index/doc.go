// Package index persists embedded chunks and answers top-K similarity
// queries. Two interchangeable backends implement the VectorIndex
// interface: a local persistent store for single-node use and an
// Elasticsearch index combining dense-vector and full-text scoring.
//
// An index moves through uninitialized, connected and ready states; reads
// and writes are accepted only when ready, and any backend failure is
// surfaced as ErrUnavailable instead of leaking transport errors from
// inside query paths.
package index
