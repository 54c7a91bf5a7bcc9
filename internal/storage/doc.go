// Package storage provides SQLite-based persistence for embeddings and vector index metadata.
//
// The storage layer manages:
//   - Memoized embeddings keyed by content hash and model
//   - The document sidecar of the vector index (position -> document id)
//   - Key/value metadata describing a persisted index
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations
//   - embedding_cache: SHA-256 content hash + model -> float32 vector blob
//   - index_documents: vector position -> document id, with a removal tombstone
//   - index_meta: dimension, metric and counters of the persisted index
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(filepath.Join(cacheDir, "embeddings.db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.UpsertEmbedding(ctx, &storage.Embedding{
//	    Hash:      hash,
//	    Model:     "all-MiniLM-L6-v2",
//	    Vector:    storage.SerializeVector(vec),
//	    Dimension: len(vec),
//	})
//
// # Drivers
//
// The default build uses the pure Go driver (modernc.org/sqlite). Building with
// the sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// # Vector Encoding
//
// Vectors are stored as little-endian float32 blobs:
//
//	blob := storage.SerializeVector([]float32{0.1, 0.2})
//	vec := storage.DeserializeVector(blob)
//
// # Concurrency
//
// SQLite benefits from a single writer, so the pool is limited to one open
// connection and WAL mode is enabled for file-backed databases.
package storage
