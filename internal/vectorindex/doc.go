// Package vectorindex stores (vector, document id) pairs and answers
// k-nearest-neighbor queries by exhaustive scoring.
//
// Scores are inner products for the cosine and ip metrics and 1/(1+d) for
// l2. Results are ordered by descending score with ties broken by insertion
// order. Vectors are used as given: callers normalize them for cosine use.
//
// # Concurrency
//
// Writers (AddDocuments, Remove, Rebuild, Load) are serialized and publish a
// new immutable snapshot. Searches read the snapshot current when they start
// and run concurrently with each other and with writers.
//
// # Persistence
//
// Save writes two artifacts: a zstd-compressed binary blob of the vectors at
// Config.IndexPath and a SQLite sidecar at Config.MetadataPath mapping blob
// positions to document ids. Load restores both.
//
// # Degraded Mode
//
// When the backend is compiled out (novecindex build tag) or Config.Disabled
// is set, Available reports false. AddDocuments only tracks the document
// count, Search returns an empty slice, and Save/Load are no-ops. None of
// these paths return errors.
package vectorindex
